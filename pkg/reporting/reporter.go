package reporting

import (
	"io"
	"path/filepath"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
)

// DefaultReporter implements the complete Reporter interface
type DefaultReporter struct {
	console *DefaultConsoleReporter
	csv     *DefaultCSVReporter
	excel   *DefaultExcelReporter
	paths   *DefaultPathManager
}

// NewDefaultReporter creates a reporter printing to out and writing files under root
func NewDefaultReporter(out io.Writer, root string) *DefaultReporter {
	return &DefaultReporter{
		console: NewConsoleReporterTo(out),
		csv:     NewDefaultCSVReporter(),
		excel:   NewDefaultExcelReporter(),
		paths:   NewDefaultPathManager(root),
	}
}

// Console output methods
func (r *DefaultReporter) OutputResults(results *backtest.Results) {
	r.console.OutputResults(results)
}

func (r *DefaultReporter) OutputResultsWithContext(results *backtest.Results, label, interval string) {
	r.console.OutputResultsWithContext(results, label, interval)
}

func (r *DefaultReporter) OutputTrades(results *backtest.Results, limit int) {
	r.console.OutputTrades(results, limit)
}

func (r *DefaultReporter) OutputFilterStats(results *backtest.Results) {
	r.console.OutputFilterStats(results)
}

func (r *DefaultReporter) OutputComparison(rows []ComparisonRow) {
	r.console.OutputComparison(rows)
}

// File output methods
func (r *DefaultReporter) WriteTradesCSV(results *backtest.Results, path string) error {
	return r.csv.WriteTradesCSV(results, path)
}

func (r *DefaultReporter) WriteResultsXLSX(results *backtest.Results, path string) error {
	return r.excel.WriteResultsXLSX(results, path)
}

func (r *DefaultReporter) WriteJSON(v interface{}, path string) error {
	return WriteJSON(v, path)
}

// Path management methods
func (r *DefaultReporter) GetDefaultOutputDir(label, interval string) string {
	return r.paths.GetDefaultOutputDir(label, interval)
}

func (r *DefaultReporter) EnsureDirectoryExists(path string) error {
	return r.paths.EnsureDirectoryExists(path)
}

// ReportingManager provides a high-level interface for all reporting needs
type ReportingManager struct {
	reporter Reporter
	config   ReportingConfig
}

// NewReportingManager creates a manager printing to out
func NewReportingManager(config ReportingConfig, out io.Writer) *ReportingManager {
	return &ReportingManager{
		reporter: NewDefaultReporter(out, config.OutputDirectory),
		config:   config,
	}
}

// ReportResults prints and writes results according to configuration.
// It returns the output directory used (empty when files are disabled).
func (m *ReportingManager) ReportResults(results *backtest.Results, label, interval string) (string, error) {
	if m.config.EnableConsole {
		m.reporter.OutputResultsWithContext(results, label, interval)
		if m.config.TradeRows != 0 {
			m.reporter.OutputTrades(results, m.config.TradeRows)
		}
		m.reporter.OutputFilterStats(results)
	}

	if !m.config.EnableFiles {
		return "", nil
	}
	outputDir := m.reporter.GetDefaultOutputDir(label, interval)

	if m.config.CSVEnabled {
		if err := m.reporter.WriteTradesCSV(results, filepath.Join(outputDir, "trades.csv")); err != nil {
			return outputDir, err
		}
	}
	if m.config.ExcelEnabled {
		if err := m.reporter.WriteResultsXLSX(results, filepath.Join(outputDir, "results.xlsx")); err != nil {
			return outputDir, err
		}
	}
	if m.config.JSONEnabled {
		if err := m.reporter.WriteJSON(Summarize(results, label, interval), filepath.Join(outputDir, "summary.json")); err != nil {
			return outputDir, err
		}
	}
	return outputDir, nil
}

// ReportComparison prints a sweep comparison when console output is enabled
func (m *ReportingManager) ReportComparison(rows []ComparisonRow) {
	if m.config.EnableConsole {
		m.reporter.OutputComparison(rows)
	}
}

// ReportConfig writes the configuration used for a run next to its results
func (m *ReportingManager) ReportConfig(config interface{}, label, interval string) error {
	if !m.config.EnableFiles || !m.config.JSONEnabled {
		return nil
	}
	outputDir := m.reporter.GetDefaultOutputDir(label, interval)
	return m.reporter.WriteJSON(config, filepath.Join(outputDir, "config.json"))
}
