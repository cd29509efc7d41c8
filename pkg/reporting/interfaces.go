// Package reporting renders backtest results to the console and to files
package reporting

import (
	"github.com/ducminhle1904/trend-engine/internal/backtest"
)

// ConsoleReporter defines interface for console output
type ConsoleReporter interface {
	OutputResults(results *backtest.Results)
	OutputResultsWithContext(results *backtest.Results, label, interval string)
	OutputTrades(results *backtest.Results, limit int)
	OutputFilterStats(results *backtest.Results)
	OutputComparison(rows []ComparisonRow)
}

// FileReporter defines interface for file output
type FileReporter interface {
	WriteTradesCSV(results *backtest.Results, path string) error
	WriteResultsXLSX(results *backtest.Results, path string) error
	WriteJSON(v interface{}, path string) error
}

// PathManager defines interface for output path management
type PathManager interface {
	GetDefaultOutputDir(label, interval string) string
	EnsureDirectoryExists(path string) error
}

// Reporter combines all reporting interfaces
type Reporter interface {
	ConsoleReporter
	FileReporter
	PathManager
}

// ExcelStyles holds Excel formatting styles
type ExcelStyles struct {
	HeaderStyle        int
	CurrencyStyle      int
	PercentStyle       int
	NumberStyle        int
	BaseStyle          int
	RedCurrencyStyle   int
	GreenCurrencyStyle int
	DateStyle          int
	SummaryLabelStyle  int
}

// ReportingConfig holds configuration for reporting
type ReportingConfig struct {
	EnableConsole   bool
	EnableFiles     bool
	OutputDirectory string
	ExcelEnabled    bool
	CSVEnabled      bool
	JSONEnabled     bool
	TradeRows       int
}
