package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// Logger writes structured per-instrument log lines
type Logger struct {
	symbol   string
	interval string
	logFile  *os.File
	logPath  string
	zl       zerolog.Logger
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// SetLevel sets the process-wide minimum level ("debug", "info", "warn", "error").
// An empty level means info.
func SetLevel(level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}

// New creates a logger writing JSON lines to w
func New(w io.Writer, symbol, interval string) *Logger {
	zl := zerolog.New(w).With().Timestamp().Str("symbol", symbol).Str("interval", interval).Logger()
	return &Logger{symbol: symbol, interval: interval, zl: zl}
}

// NewConsole creates a human-readable logger on stderr
func NewConsole(symbol, interval string) *Logger {
	return New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, symbol, interval)
}

// NewFile creates a logger appending to dir/<symbol>_<interval>_<date>.log
func NewFile(dir, symbol, interval string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.log", symbol, interval, time.Now().Format("2006-01-02"))
	logPath := filepath.Join(dir, filename)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(file, symbol, interval)
	l.logFile = file
	l.logPath = logPath
	l.Status("session started")
	return l, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// With returns a child logger for another instrument sharing the same sink
func (l *Logger) With(symbol string) *Logger {
	return &Logger{
		symbol:   symbol,
		interval: l.interval,
		logPath:  l.logPath,
		zl:       l.zl.With().Str("symbol", symbol).Logger(),
	}
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	var ev *zerolog.Event
	switch level {
	case LogLevelWarning:
		ev = l.zl.Warn()
	case LogLevelError:
		ev = l.zl.Error()
	case LogLevelTrade, LogLevelStatus:
		ev = l.zl.Info().Str("kind", string(level))
	default:
		ev = l.zl.Info()
	}
	ev.Msgf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs engine status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogEntry logs an emitted entry intent
func (l *Logger) LogEntry(intent types.OrderIntent, price float64) {
	l.zl.Info().
		Str("kind", string(LogLevelTrade)).
		Str("intent_id", intent.ID).
		Str("side", intent.Side.String()).
		Float64("quantity", intent.Quantity).
		Float64("price", price).
		Float64("atr", intent.ATR).
		Float64("risk", intent.RiskFraction).
		Bool("high_conviction", intent.HighConviction).
		Str("reason", intent.Reason).
		Msg("entry intent")
}

// LogExit logs an emitted close intent
func (l *Logger) LogExit(intent types.ClosePositionIntent, price, stop float64) {
	l.zl.Info().
		Str("kind", string(LogLevelTrade)).
		Str("intent_id", intent.ID).
		Float64("fraction", intent.Fraction).
		Float64("price", price).
		Float64("stop", stop).
		Str("reason", intent.Reason).
		Msg("exit intent")
}

// LogTrade logs a realized trade
func (l *Logger) LogTrade(rec types.TradeRecord) {
	l.zl.Info().
		Str("kind", string(LogLevelTrade)).
		Time("entry_time", rec.EntryTime).
		Time("exit_time", rec.ExitTime).
		Float64("entry_price", rec.EntryPrice).
		Float64("exit_price", rec.ExitPrice).
		Float64("quantity", rec.Quantity).
		Float64("pnl", rec.PnL).
		Int("bars_held", rec.BarsHeld).
		Str("reason", rec.CloseReason).
		Msg("trade closed")
}

// LogRejectionSummary logs the per-reason counts an actor collected
func (l *Logger) LogRejectionSummary(report types.FilterStatsReport) {
	reasons := make([]string, 0, len(report.CountsByReason))
	for r := range report.CountsByReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)

	counts := zerolog.Dict()
	for _, r := range reasons {
		counts.Int(r, report.CountsByReason[r])
	}
	l.zl.Info().
		Str("kind", string(LogLevelStatus)).
		Int("total_bars", report.TotalBars).
		Int("evaluated", report.Evaluated).
		Int("entries", report.Entries).
		Int("undersized", report.Undersized).
		Dict("reasons", counts).
		Msg("filter summary")
}

// LogError logs an error with context
func (l *Logger) LogError(context string, err error) {
	l.zl.Error().Err(err).Msg(context)
}

// Close closes the underlying log file, if any
func (l *Logger) Close() error {
	if l.logFile == nil {
		return nil
	}
	l.Status("session ended")
	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	return l.logPath
}
