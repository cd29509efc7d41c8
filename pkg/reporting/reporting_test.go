package reporting

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

func sampleResults() *backtest.Results {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	res := &backtest.Results{
		StartEquity: 10000,
		Trades: []types.TradeRecord{
			{Symbol: "BTCUSDT", EntryTime: t0, ExitTime: t0.Add(48 * time.Hour), EntryPrice: 100, ExitPrice: 110, Quantity: 10, PnL: 100, CloseReason: "chandelier_exit", BarsHeld: 2},
			{Symbol: "ETHUSDT", EntryTime: t0.Add(24 * time.Hour), ExitTime: t0.Add(72 * time.Hour), EntryPrice: 50, ExitPrice: 45, Quantity: 4, PnL: -20, CloseReason: "regime_bear", BarsHeld: 2},
		},
		EquityCurve: []backtest.EquityPoint{
			{Timestamp: t0, Equity: 10000, Exposure: 0},
			{Timestamp: t0.Add(24 * time.Hour), Equity: 10050, Exposure: 0.1},
			{Timestamp: t0.Add(48 * time.Hour), Equity: 10100, Exposure: 0.02},
			{Timestamp: t0.Add(72 * time.Hour), Equity: 10080, Exposure: 0},
		},
		FilterReports: []types.FilterStatsReport{
			{Symbol: "BTCUSDT", TotalBars: 4, Evaluated: 4, Entries: 1, CountsByReason: map[string]int{"regime": 2, "strength": 1}},
			{Symbol: "ETHUSDT", TotalBars: 4, Evaluated: 3, Entries: 1, Undersized: 1, CountsByReason: map[string]int{"squeeze": 2}},
		},
		FilterTotals: types.FilterStatsReport{
			Symbol: "ALL", TotalBars: 8, Evaluated: 7, Entries: 2, Undersized: 1,
			CountsByReason: map[string]int{"regime": 2, "strength": 1, "squeeze": 2},
		},
		Failures: map[string]error{"SOLUSDT": errors.New("actor panicked")},
	}
	res.UpdateMetrics()
	return res
}

func TestConsoleReporter_OutputsAllTables(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleReporterTo(&buf)
	res := sampleResults()

	r.OutputResultsWithContext(res, "portfolio", "1d")
	r.OutputTrades(res, 0)
	r.OutputFilterStats(res)

	out := buf.String()
	upper := strings.ToUpper(out)
	assert.Contains(t, upper, "BACKTEST RESULTS")
	assert.Contains(t, upper, "FILTER TELEMETRY")
	assert.Contains(t, out, "$10000.00")
	assert.Contains(t, out, "chandelier_exit")
	assert.Contains(t, out, "actor panicked")
	assert.Contains(t, upper, "SQUEEZE")
}

func TestConsoleReporter_TradeLimitKeepsMostRecent(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).OutputTrades(sampleResults(), 1)

	out := buf.String()
	assert.Contains(t, out, "regime_bear")
	assert.NotContains(t, out, "chandelier_exit")
}

func TestFormatRatio_Infinite(t *testing.T) {
	assert.Equal(t, "inf", formatRatio(math.Inf(1)))
	assert.Equal(t, "1.50", formatRatio(1.5))
}

func TestFilterReasons_SortedUnion(t *testing.T) {
	assert.Equal(t, []string{"regime", "squeeze", "strength"}, filterReasons(sampleResults()))
}

func TestWriteTradesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "trades.csv")
	require.NoError(t, WriteTradesCSV(sampleResults(), path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 4)
	assert.Equal(t, tradeCSVHeader, records[0])
	assert.Equal(t, "BTCUSDT", records[1][0])
	assert.Equal(t, "10.00", records[1][7])
	assert.Equal(t, "W", records[1][10])
	assert.Equal(t, "L", records[2][10])
	assert.Equal(t, "SUMMARY", records[3][0])
	assert.Contains(t, records[3][10], "total_trades=2")
}

func TestWriteResultsXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, WriteResultsXLSX(sampleResults(), path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	assert.Equal(t, []string{summarySheet, tradesSheet, filterSheet, equitySheet}, fx.GetSheetList())

	trades, err := fx.GetRows(tradesSheet)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	assert.Equal(t, "Symbol", trades[0][0])
	assert.Equal(t, "BTCUSDT", trades[1][0])
	assert.Equal(t, "regime_bear", trades[2][9])

	filters, err := fx.GetRows(filterSheet)
	require.NoError(t, err)
	require.Len(t, filters, 4)
	assert.Equal(t, []string{"Symbol", "Bars", "Evaluated", "Entries", "Undersized", "regime", "squeeze", "strength"}, filters[0])
	assert.Equal(t, "TOTAL", filters[3][0])

	equity, err := fx.GetRows(equitySheet)
	require.NoError(t, err)
	assert.Len(t, equity, 5)
}

func TestWriteResultsXLSX_InfiniteProfitFactor(t *testing.T) {
	res := sampleResults()
	res.Trades = res.Trades[:1]
	res.UpdateMetrics()
	require.True(t, math.IsInf(res.ProfitFactor, 1))

	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, WriteResultsXLSX(res, path))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()
	v, err := fx.GetCellValue(summarySheet, "B9")
	require.NoError(t, err)
	assert.Equal(t, "inf", v)
}

func TestSummarize_InfiniteProfitFactorIsNull(t *testing.T) {
	res := sampleResults()
	res.Trades = res.Trades[:1]
	res.UpdateMetrics()

	path := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, WriteJSON(Summarize(res, "portfolio", "1d"), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Nil(t, decoded["profit_factor"])
	assert.Equal(t, "portfolio", decoded["label"])
	assert.Equal(t, "actor panicked", decoded["failures"].(map[string]interface{})["SOLUSDT"])
}

func TestDefaultOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("results", "BTCUSDT_1d"), DefaultOutputDir(" btcusdt ", "1D"))
	assert.Equal(t, filepath.Join("results", "UNKNOWN_unknown"), DefaultOutputDir("", ""))
	assert.Equal(t, filepath.Join("out", "X_4h"), NewDefaultPathManager("out").GetDefaultOutputDir("x", "4h"))
}

func TestReportingManager_WritesEnabledOutputs(t *testing.T) {
	root := t.TempDir()
	var buf bytes.Buffer
	m := NewReportingManager(ReportingConfig{
		EnableConsole:   true,
		EnableFiles:     true,
		OutputDirectory: root,
		CSVEnabled:      true,
		ExcelEnabled:    true,
		JSONEnabled:     true,
		TradeRows:       10,
	}, &buf)

	dir, err := m.ReportResults(sampleResults(), "portfolio", "1d")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "PORTFOLIO_1d"), dir)
	for _, name := range []string{"trades.csv", "results.xlsx", "summary.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NotEmpty(t, buf.String())

	require.NoError(t, m.ReportConfig(map[string]string{"benchmark": "BTCUSDT"}, "portfolio", "1d"))
	assert.FileExists(t, filepath.Join(dir, "config.json"))
}

func TestReportingManager_FilesDisabled(t *testing.T) {
	var buf bytes.Buffer
	m := NewReportingManager(ReportingConfig{EnableConsole: true}, &buf)

	dir, err := m.ReportResults(sampleResults(), "portfolio", "1d")
	require.NoError(t, err)
	assert.Empty(t, dir)
}

func TestConsoleReporter_OutputComparison(t *testing.T) {
	var buf bytes.Buffer
	NewConsoleReporterTo(&buf).OutputComparison([]ComparisonRow{
		{Label: "risk_0.50pct", Results: sampleResults()},
		{Label: "risk_2.00pct", Err: errors.New("engine rejected config")},
	})

	out := buf.String()
	assert.Contains(t, out, "risk_0.50pct")
	assert.Contains(t, out, "engine rejected config")
	assert.Contains(t, strings.ToUpper(out), "RUN COMPARISON")
}
