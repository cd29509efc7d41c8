package reporting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
)

const (
	summarySheet = "Summary"
	tradesSheet  = "Trades"
	filterSheet  = "Filter Stats"
	equitySheet  = "Equity"
)

// DefaultExcelReporter writes results workbooks
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteResultsXLSX writes Summary, Trades, Filter Stats and Equity sheets to path
func (r *DefaultExcelReporter) WriteResultsXLSX(results *backtest.Results, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), summarySheet); err != nil {
		return err
	}
	for _, name := range []string{tradesSheet, filterSheet, equitySheet} {
		if _, err := fx.NewSheet(name); err != nil {
			return err
		}
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, results, styles); err != nil {
		return err
	}
	if err := r.writeTradesSheet(fx, results, styles); err != nil {
		return err
	}
	if err := r.writeFilterSheet(fx, results, styles); err != nil {
		return err
	}
	if err := r.writeEquitySheet(fx, results, styles); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

// createExcelStyles registers the workbook's cell styles
func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	thin := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}
	right := &excelize.Alignment{Horizontal: "right"}

	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:   true,
			Size:   11,
			Color:  "FFFFFF",
			Family: "Calibri",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"2F4F4F"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	// NumFmt 7 is "$#,##0.00", 9 is "0%", 10 is "0.00%", 22 is "m/d/yy h:mm"
	if styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Alignment: right, Border: thin}); err != nil {
		return styles, err
	}
	if styles.PercentStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Alignment: right, Border: thin}); err != nil {
		return styles, err
	}
	if styles.NumberStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 4, Alignment: right, Border: thin}); err != nil {
		return styles, err
	}
	if styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: thin}); err != nil {
		return styles, err
	}
	if styles.DateStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 22, Border: thin}); err != nil {
		return styles, err
	}
	styles.RedCurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Font:      &excelize.Font{Color: "C00000"},
		Alignment: right,
		Border:    thin,
	})
	if err != nil {
		return styles, err
	}
	styles.GreenCurrencyStyle, err = fx.NewStyle(&excelize.Style{
		NumFmt:    7,
		Font:      &excelize.Font{Color: "008000"},
		Alignment: right,
		Border:    thin,
	})
	if err != nil {
		return styles, err
	}
	styles.SummaryLabelStyle, err = fx.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
		Border: thin,
	})
	return styles, err
}

func (r *DefaultExcelReporter) writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle); err != nil {
			return err
		}
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// writeRow writes values starting at column A of row, applying one style per column
func (r *DefaultExcelReporter) writeRow(fx *excelize.File, sheet string, row int, values []interface{}, colStyles []int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if i < len(colStyles) {
			if err := fx.SetCellStyle(sheet, cell, cell, colStyles[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, results *backtest.Results, styles ExcelStyles) error {
	if err := r.writeHeader(fx, summarySheet, []string{"Metric", "Value"}, styles); err != nil {
		return err
	}
	_ = fx.SetColWidth(summarySheet, "A", "A", 22)
	_ = fx.SetColWidth(summarySheet, "B", "B", 18)

	profitFactor := results.ProfitFactor
	if math.IsInf(profitFactor, 0) {
		profitFactor = 0
	}
	rows := []struct {
		label string
		value interface{}
		style int
	}{
		{"Initial Equity", results.StartEquity, styles.CurrencyStyle},
		{"Final Equity", results.EndEquity, styles.CurrencyStyle},
		{"Total Return", results.TotalReturn, styles.PercentStyle},
		{"Annualized Return", results.AnnualizedReturn, styles.PercentStyle},
		{"Max Drawdown", results.MaxDrawdown, styles.PercentStyle},
		{"Sharpe Ratio", results.SharpeRatio, styles.NumberStyle},
		{"Sortino Ratio", results.SortinoRatio, styles.NumberStyle},
		{"Profit Factor", profitFactor, styles.NumberStyle},
		{"Win Rate", results.WinRate / 100, styles.PercentStyle},
		{"Total Trades", results.TotalTrades, styles.BaseStyle},
		{"Winning Trades", results.WinningTrades, styles.BaseStyle},
		{"Losing Trades", results.LosingTrades, styles.BaseStyle},
		{"Max Exposure", results.MaxExposure, styles.PercentStyle},
		{"Avg Exposure", results.AvgExposure, styles.PercentStyle},
		{"Turnover", results.Turnover, styles.CurrencyStyle},
	}
	for i, row := range rows {
		if err := r.writeRow(fx, summarySheet, i+2, []interface{}{row.label, row.value}, []int{styles.SummaryLabelStyle, row.style}); err != nil {
			return err
		}
	}
	// excelize has no infinity; an all-winning run is labelled instead
	if math.IsInf(results.ProfitFactor, 1) {
		return fx.SetCellValue(summarySheet, "B9", "inf")
	}
	return nil
}

func (r *DefaultExcelReporter) writeTradesSheet(fx *excelize.File, results *backtest.Results, styles ExcelStyles) error {
	headers := []string{"Symbol", "Entry Time", "Exit Time", "Entry Price", "Exit Price", "Quantity", "PnL", "Return %", "Bars Held", "Close Reason"}
	if err := r.writeHeader(fx, tradesSheet, headers, styles); err != nil {
		return err
	}
	_ = fx.SetColWidth(tradesSheet, "A", "A", 12)
	_ = fx.SetColWidth(tradesSheet, "B", "C", 18)
	_ = fx.SetColWidth(tradesSheet, "D", "H", 13)
	_ = fx.SetColWidth(tradesSheet, "I", "I", 10)
	_ = fx.SetColWidth(tradesSheet, "J", "J", 20)

	for i, tr := range results.Trades {
		ret := 0.0
		if notional := tr.EntryPrice * tr.Quantity; notional > 0 {
			ret = tr.PnL / notional
		}
		pnlStyle := styles.GreenCurrencyStyle
		if tr.PnL < 0 {
			pnlStyle = styles.RedCurrencyStyle
		}
		values := []interface{}{
			tr.Symbol, tr.EntryTime, tr.ExitTime, tr.EntryPrice, tr.ExitPrice,
			tr.Quantity, tr.PnL, ret, tr.BarsHeld, tr.CloseReason,
		}
		colStyles := []int{
			styles.BaseStyle, styles.DateStyle, styles.DateStyle, styles.NumberStyle, styles.NumberStyle,
			styles.NumberStyle, pnlStyle, styles.PercentStyle, styles.BaseStyle, styles.BaseStyle,
		}
		if err := r.writeRow(fx, tradesSheet, i+2, values, colStyles); err != nil {
			return err
		}
	}
	if len(results.Trades) > 0 {
		last := fmt.Sprintf("J%d", len(results.Trades)+1)
		return fx.AutoFilter(tradesSheet, "A1:"+last, nil)
	}
	return nil
}

func (r *DefaultExcelReporter) writeFilterSheet(fx *excelize.File, results *backtest.Results, styles ExcelStyles) error {
	reasons := filterReasons(results)
	headers := append([]string{"Symbol", "Bars", "Evaluated", "Entries", "Undersized"}, reasons...)
	if err := r.writeHeader(fx, filterSheet, headers, styles); err != nil {
		return err
	}
	_ = fx.SetColWidth(filterSheet, "A", "A", 12)

	row := 2
	for _, rep := range results.FilterReports {
		values := []interface{}{rep.Symbol, rep.TotalBars, rep.Evaluated, rep.Entries, rep.Undersized}
		for _, reason := range reasons {
			values = append(values, rep.CountsByReason[reason])
		}
		if err := r.writeRow(fx, filterSheet, row, values, nil); err != nil {
			return err
		}
		row++
	}

	totals := results.FilterTotals
	values := []interface{}{"TOTAL", totals.TotalBars, totals.Evaluated, totals.Entries, totals.Undersized}
	for _, reason := range reasons {
		values = append(values, totals.CountsByReason[reason])
	}
	colStyles := make([]int, len(values))
	for i := range colStyles {
		colStyles[i] = styles.SummaryLabelStyle
	}
	return r.writeRow(fx, filterSheet, row, values, colStyles)
}

func (r *DefaultExcelReporter) writeEquitySheet(fx *excelize.File, results *backtest.Results, styles ExcelStyles) error {
	if err := r.writeHeader(fx, equitySheet, []string{"Timestamp", "Equity", "Exposure", "Drawdown"}, styles); err != nil {
		return err
	}
	_ = fx.SetColWidth(equitySheet, "A", "A", 18)
	_ = fx.SetColWidth(equitySheet, "B", "D", 14)

	peak := results.StartEquity
	colStyles := []int{styles.DateStyle, styles.CurrencyStyle, styles.PercentStyle, styles.PercentStyle}
	for i, p := range results.EquityCurve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - p.Equity) / peak
		}
		if err := r.writeRow(fx, equitySheet, i+2, []interface{}{p.Timestamp, p.Equity, p.Exposure, dd}, colStyles); err != nil {
			return err
		}
	}
	return nil
}

// WriteResultsXLSX is a convenience wrapper over the default Excel reporter
func WriteResultsXLSX(results *backtest.Results, path string) error {
	return NewDefaultExcelReporter().WriteResultsXLSX(results, path)
}
