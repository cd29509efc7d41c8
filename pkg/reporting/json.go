package reporting

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// ResultsSummary is the JSON-friendly projection of backtest.Results
type ResultsSummary struct {
	Label            string                    `json:"label,omitempty"`
	Interval         string                    `json:"interval,omitempty"`
	GeneratedAt      time.Time                 `json:"generated_at"`
	StartEquity      float64                   `json:"start_equity"`
	EndEquity        float64                   `json:"end_equity"`
	TotalReturn      float64                   `json:"total_return"`
	AnnualizedReturn float64                   `json:"annualized_return"`
	MaxDrawdown      float64                   `json:"max_drawdown"`
	SharpeRatio      float64                   `json:"sharpe_ratio"`
	SortinoRatio     float64                   `json:"sortino_ratio"`
	ProfitFactor     *float64                  `json:"profit_factor"`
	WinRate          float64                   `json:"win_rate"`
	TotalTrades      int                       `json:"total_trades"`
	MaxExposure      float64                   `json:"max_exposure"`
	AvgExposure      float64                   `json:"avg_exposure"`
	Turnover         float64                   `json:"turnover"`
	FilterTotals     types.FilterStatsReport   `json:"filter_totals"`
	FilterReports    []types.FilterStatsReport `json:"filter_reports"`
	Failures         map[string]string         `json:"failures,omitempty"`
}

// Summarize projects results for JSON output. An infinite profit factor becomes null.
func Summarize(results *backtest.Results, label, interval string) ResultsSummary {
	s := ResultsSummary{
		Label:            label,
		Interval:         interval,
		GeneratedAt:      time.Now().UTC(),
		StartEquity:      results.StartEquity,
		EndEquity:        results.EndEquity,
		TotalReturn:      results.TotalReturn,
		AnnualizedReturn: results.AnnualizedReturn,
		MaxDrawdown:      results.MaxDrawdown,
		SharpeRatio:      results.SharpeRatio,
		SortinoRatio:     results.SortinoRatio,
		WinRate:          results.WinRate,
		TotalTrades:      results.TotalTrades,
		MaxExposure:      results.MaxExposure,
		AvgExposure:      results.AvgExposure,
		Turnover:         results.Turnover,
		FilterTotals:     results.FilterTotals,
		FilterReports:    append([]types.FilterStatsReport(nil), results.FilterReports...),
	}
	if !math.IsInf(results.ProfitFactor, 0) {
		pf := results.ProfitFactor
		s.ProfitFactor = &pf
	}
	if len(results.Failures) > 0 {
		s.Failures = make(map[string]string, len(results.Failures))
		for sym, err := range results.Failures {
			s.Failures[sym] = err.Error()
		}
	}
	sort.Slice(s.FilterReports, func(i, j int) bool { return s.FilterReports[i].Symbol < s.FilterReports[j].Symbol })
	return s
}

// WriteJSON writes v as indented JSON to path, creating parent directories
func WriteJSON(v interface{}, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
