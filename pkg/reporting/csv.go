package reporting

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
)

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

var tradeCSVHeader = []string{
	"Symbol",
	"Entry_Time",
	"Exit_Time",
	"Entry_Price",
	"Exit_Price",
	"Quantity",
	"PnL",
	"Return_%",
	"Bars_Held",
	"Close_Reason",
	"Win_Loss",
}

// WriteTradesCSV writes one row per trade plus a trailing summary row.
// A path ending in .xlsx is delegated to the Excel writer.
func (r *DefaultCSVReporter) WriteTradesCSV(results *backtest.Results, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return WriteResultsXLSX(results, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tradeCSVHeader); err != nil {
		return err
	}

	var totalPnL, totalReturn float64
	for _, t := range results.Trades {
		totalPnL += t.PnL
		ret := 0.0
		if notional := t.EntryPrice * t.Quantity; notional > 0 {
			ret = t.PnL / notional * 100
		}
		totalReturn += ret

		winLoss := "W"
		if t.PnL <= 0 {
			winLoss = "L"
		}
		row := []string{
			t.Symbol,
			t.EntryTime.Format("2006-01-02 15:04:05"),
			t.ExitTime.Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(t.EntryPrice, 'f', 8, 64),
			strconv.FormatFloat(t.ExitPrice, 'f', 8, 64),
			strconv.FormatFloat(t.Quantity, 'f', 8, 64),
			fmt.Sprintf("%.2f", t.PnL),
			fmt.Sprintf("%.2f", ret),
			strconv.Itoa(t.BarsHeld),
			t.CloseReason,
			winLoss,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	avgReturn := 0.0
	if len(results.Trades) > 0 {
		avgReturn = totalReturn / float64(len(results.Trades))
	}
	summary := make([]string, len(tradeCSVHeader))
	summary[0] = "SUMMARY"
	summary[len(summary)-1] = fmt.Sprintf("total_pnl=%.2f; avg_trade_return=%.2f%%; total_trades=%d",
		totalPnL, avgReturn, len(results.Trades))
	if err := w.Write(summary); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}

// WriteTradesCSV is a convenience wrapper over the default CSV reporter
func WriteTradesCSV(results *backtest.Results, path string) error {
	return NewDefaultCSVReporter().WriteTradesCSV(results, path)
}
