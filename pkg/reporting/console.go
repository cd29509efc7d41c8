package reporting

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
)

// DefaultConsoleReporter renders results as go-pretty tables
type DefaultConsoleReporter struct {
	out io.Writer
}

// NewDefaultConsoleReporter creates a console reporter writing to stdout
func NewDefaultConsoleReporter() *DefaultConsoleReporter {
	return NewConsoleReporterTo(os.Stdout)
}

// NewConsoleReporterTo creates a console reporter writing to w
func NewConsoleReporterTo(w io.Writer) *DefaultConsoleReporter {
	return &DefaultConsoleReporter{out: w}
}

func (r *DefaultConsoleReporter) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetTitle(title)
	t.SetStyle(table.StyleRounded)
	return t
}

// OutputResults prints the headline metrics
func (r *DefaultConsoleReporter) OutputResults(results *backtest.Results) {
	r.OutputResultsWithContext(results, "", "")
}

// OutputResultsWithContext prints the headline metrics with a label and interval in the title
func (r *DefaultConsoleReporter) OutputResultsWithContext(results *backtest.Results, label, interval string) {
	title := "BACKTEST RESULTS"
	if label != "" {
		title = fmt.Sprintf("BACKTEST RESULTS %s %s", label, interval)
	}
	t := r.newTable(title)

	t.AppendRows([]table.Row{
		{"Initial Equity", fmt.Sprintf("$%.2f", results.StartEquity)},
		{"Final Equity", fmt.Sprintf("$%.2f", results.EndEquity)},
		{"Total Return", formatPercent(results.TotalReturn)},
		{"Annualized Return", formatPercent(results.AnnualizedReturn)},
		{"Max Drawdown", formatPercent(results.MaxDrawdown)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Sharpe Ratio", fmt.Sprintf("%.2f", results.SharpeRatio)},
		{"Sortino Ratio", fmt.Sprintf("%.2f", results.SortinoRatio)},
		{"Profit Factor", formatRatio(results.ProfitFactor)},
		{"Win Rate", fmt.Sprintf("%.1f%%", results.WinRate)},
		{"Trades", fmt.Sprintf("%d (%d won / %d lost)", results.TotalTrades, results.WinningTrades, results.LosingTrades)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Max Exposure", formatPercent(results.MaxExposure)},
		{"Avg Exposure", formatPercent(results.AvgExposure)},
		{"Turnover", fmt.Sprintf("$%.2f", results.Turnover)},
	})
	if len(results.Failures) > 0 {
		t.AppendSeparator()
		for _, sym := range sortedKeys(results.Failures) {
			t.AppendRow(table.Row{"Failed " + sym, results.Failures[sym].Error()})
		}
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, Align: text.AlignRight},
	})
	t.Render()
}

// OutputTrades prints the last limit trades (all when limit <= 0)
func (r *DefaultConsoleReporter) OutputTrades(results *backtest.Results, limit int) {
	trades := results.Trades
	if limit > 0 && len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	t := r.newTable("TRADES")
	t.AppendHeader(table.Row{"Symbol", "Entry", "Exit", "Entry Px", "Exit Px", "Qty", "PnL", "Bars", "Reason"})
	for _, tr := range trades {
		t.AppendRow(table.Row{
			tr.Symbol,
			tr.EntryTime.Format("2006-01-02 15:04"),
			tr.ExitTime.Format("2006-01-02 15:04"),
			fmt.Sprintf("%.4f", tr.EntryPrice),
			fmt.Sprintf("%.4f", tr.ExitPrice),
			fmt.Sprintf("%.6f", tr.Quantity),
			fmt.Sprintf("%.2f", tr.PnL),
			tr.BarsHeld,
			tr.CloseReason,
		})
	}
	total := 0.0
	for _, tr := range results.Trades {
		total += tr.PnL
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "Total", fmt.Sprintf("%.2f", total), "", ""})
	t.Render()
}

// OutputFilterStats prints per-symbol rejection counts plus the portfolio totals
func (r *DefaultConsoleReporter) OutputFilterStats(results *backtest.Results) {
	reasons := filterReasons(results)
	header := table.Row{"Symbol", "Bars", "Evaluated", "Entries", "Undersized"}
	for _, reason := range reasons {
		header = append(header, reason)
	}

	t := r.newTable("FILTER TELEMETRY")
	t.AppendHeader(header)
	for _, rep := range results.FilterReports {
		row := table.Row{rep.Symbol, rep.TotalBars, rep.Evaluated, rep.Entries, rep.Undersized}
		for _, reason := range reasons {
			row = append(row, rep.CountsByReason[reason])
		}
		t.AppendRow(row)
	}
	totals := results.FilterTotals
	footer := table.Row{"TOTAL", totals.TotalBars, totals.Evaluated, totals.Entries, totals.Undersized}
	for _, reason := range reasons {
		footer = append(footer, totals.CountsByReason[reason])
	}
	t.AppendFooter(footer)
	t.Render()
}

// ComparisonRow is one labelled run of a parameter sweep
type ComparisonRow struct {
	Label   string
	Results *backtest.Results
	Err     error
}

// OutputComparison prints one line per run, in the given order
func (r *DefaultConsoleReporter) OutputComparison(rows []ComparisonRow) {
	t := r.newTable("RUN COMPARISON")
	t.AppendHeader(table.Row{"Run", "Return", "Max DD", "Sharpe", "Sortino", "PF", "Trades", "Avg Exp"})
	for _, row := range rows {
		if row.Err != nil || row.Results == nil {
			msg := "no results"
			if row.Err != nil {
				msg = row.Err.Error()
			}
			t.AppendRow(table.Row{row.Label, msg})
			continue
		}
		res := row.Results
		t.AppendRow(table.Row{
			row.Label,
			formatPercent(res.TotalReturn),
			formatPercent(res.MaxDrawdown),
			fmt.Sprintf("%.2f", res.SharpeRatio),
			fmt.Sprintf("%.2f", res.SortinoRatio),
			formatRatio(res.ProfitFactor),
			res.TotalTrades,
			formatPercent(res.AvgExposure),
		})
	}
	t.Render()
}

// filterReasons is the sorted union of rejection reasons across all reports
func filterReasons(results *backtest.Results) []string {
	seen := make(map[string]bool)
	for _, rep := range results.FilterReports {
		for reason := range rep.CountsByReason {
			seen[reason] = true
		}
	}
	for reason := range results.FilterTotals.CountsByReason {
		seen[reason] = true
	}
	reasons := make([]string, 0, len(seen))
	for reason := range seen {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	return reasons
}

func sortedKeys(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func formatRatio(v float64) string {
	if math.IsInf(v, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", v)
}
