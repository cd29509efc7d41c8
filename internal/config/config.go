// Package config loads the engine configuration: JSON over defaults, then
// environment overrides (optionally seeded from a .env file).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
	"github.com/ducminhle1904/trend-engine/internal/exits"
	"github.com/ducminhle1904/trend-engine/internal/filters"
	"github.com/ducminhle1904/trend-engine/internal/indicators"
	"github.com/ducminhle1904/trend-engine/internal/regime"
	"github.com/ducminhle1904/trend-engine/internal/risk"
	"github.com/ducminhle1904/trend-engine/internal/sizing"
	"github.com/ducminhle1904/trend-engine/internal/strategy"
	"github.com/ducminhle1904/trend-engine/internal/strength"
	"github.com/ducminhle1904/trend-engine/internal/universe"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// EngineConfig is the complete runtime configuration
type EngineConfig struct {
	// Instruments
	Benchmark          string   `json:"benchmark"`
	Symbols            []string `json:"symbols"`
	AllowSelfBenchmark bool     `json:"allow_self_benchmark"`
	Interval           string   `json:"interval"` // "1d", "4h", "15m"

	// Paths and logging
	DataRoot string `json:"data_root"`
	LogDir   string `json:"log_dir"`
	LogLevel string `json:"log_level"` // "debug", "info", "warn", "error"

	// Paper execution
	InitialEquity float64 `json:"initial_equity"`
	Commission    float64 `json:"commission"`
	FillAtClose   bool    `json:"fill_at_close"`
	EventBuffer   int     `json:"event_buffer"`

	Indicators indicators.Config `json:"indicators"`
	Strength   strength.Config   `json:"strength"`
	Regime     regime.Config     `json:"regime"`
	Filters    filters.Config    `json:"filters"`
	Exits      exits.Config      `json:"exits"`
	Sizing     sizing.Config     `json:"sizing"`
	Risk       risk.Config       `json:"risk"`
	Universe   universe.Config   `json:"universe"`
	Monitoring MonitoringConfig  `json:"monitoring"`
	Exchange   ExchangeConfig    `json:"exchange"`
	Telegram   TelegramConfig    `json:"telegram"`
}

// TelegramConfig enables live-session alerts. Credentials only come from the environment.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"-"`
	ChatID  string `json:"-"`
}

// MonitoringConfig controls the metrics and health endpoints
type MonitoringConfig struct {
	Enabled    bool           `json:"enabled"`
	Port       int            `json:"port"`
	StaleAfter types.Duration `json:"stale_after"` // health degrades when no bar arrives for this long
}

// ExchangeConfig contains Bybit settings for live mode. Credentials only come
// from the environment.
type ExchangeConfig struct {
	Name                string         `json:"name"`
	Category            string         `json:"category"` // "linear", "spot"
	Testnet             bool           `json:"testnet"`
	WarmupBars          int            `json:"warmup_bars"`
	FundingPollInterval types.Duration `json:"funding_poll_interval"`
	APIKey              string         `json:"-"`
	APISecret           string         `json:"-"`
}

// Default returns the default configuration
func Default() *EngineConfig {
	return &EngineConfig{
		Benchmark:     "BTCUSDT",
		Interval:      "1d",
		DataRoot:      "data",
		LogDir:        "logs",
		LogLevel:      "info",
		InitialEquity: 10000,
		Commission:    0.0005,
		EventBuffer:   256,
		Indicators:    indicators.DefaultConfig(),
		Strength:      strength.DefaultConfig(),
		Regime:        regime.DefaultConfig(),
		Filters:       filters.DefaultConfig(),
		Exits:         exits.DefaultConfig(),
		Sizing:        sizing.DefaultConfig(),
		Risk:          risk.DefaultConfig(),
		Monitoring: MonitoringConfig{
			Port:       9090,
			StaleAfter: types.Duration(48 * time.Hour),
		},
		Exchange: ExchangeConfig{
			Name:                "bybit",
			Category:            "linear",
			WarmupBars:          300,
			FundingPollInterval: types.Duration(time.Hour),
		},
	}
}

// Load reads a JSON config file over the defaults. A bare name is looked up
// in configs/ and gets a .json extension. An empty path returns the defaults.
func Load(path string) (*EngineConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	path = resolvePath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func resolvePath(path string) string {
	if !strings.ContainsAny(path, "/\\") {
		path = filepath.Join("configs", path)
	}
	if !strings.HasSuffix(path, ".json") {
		path += ".json"
	}
	return path
}

// Save writes the configuration as indented JSON
func (c *EngineConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadEnvFile loads variables from a .env file; a missing file is not an error
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("could not load environment file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from TREND_* variables and Bybit credentials
func (c *EngineConfig) ApplyEnv() {
	c.Benchmark = getEnv("TREND_BENCHMARK", c.Benchmark)
	if v := getEnv("TREND_SYMBOLS", ""); v != "" {
		c.Symbols = SplitSymbols(v)
	}
	c.AllowSelfBenchmark = getEnvBool("TREND_ALLOW_SELF_BENCHMARK", c.AllowSelfBenchmark)
	c.Interval = getEnv("TREND_INTERVAL", c.Interval)
	c.DataRoot = getEnv("TREND_DATA_ROOT", c.DataRoot)
	c.LogDir = getEnv("TREND_LOG_DIR", c.LogDir)
	c.LogLevel = getEnv("TREND_LOG_LEVEL", c.LogLevel)
	c.InitialEquity = getEnvFloat("TREND_INITIAL_EQUITY", c.InitialEquity)
	c.Commission = getEnvFloat("TREND_COMMISSION", c.Commission)
	c.Risk.BaseRisk = getEnvFloat("TREND_BASE_RISK", c.Risk.BaseRisk)

	c.Universe.Source = getEnv("TREND_UNIVERSE_SOURCE", c.Universe.Source)
	c.Universe.Path = getEnv("TREND_UNIVERSE_PATH", c.Universe.Path)
	c.Universe.RedisAddr = getEnv("TREND_REDIS_ADDR", c.Universe.RedisAddr)
	c.Universe.RedisPassword = getEnv("TREND_REDIS_PASSWORD", c.Universe.RedisPassword)

	c.Monitoring.Enabled = getEnvBool("TREND_MONITORING", c.Monitoring.Enabled)
	c.Monitoring.Port = getEnvInt("TREND_MONITORING_PORT", c.Monitoring.Port)

	c.Exchange.Testnet = getEnvBool("BYBIT_TESTNET", c.Exchange.Testnet)
	c.Exchange.FundingPollInterval = types.Duration(getEnvDuration("TREND_FUNDING_POLL_INTERVAL", c.Exchange.FundingPollInterval.Std()))
	c.Exchange.APIKey = getEnv("BYBIT_API_KEY", c.Exchange.APIKey)
	c.Exchange.APISecret = getEnv("BYBIT_API_SECRET", c.Exchange.APISecret)

	c.Telegram.Token = getEnv("TELEGRAM_TOKEN", c.Telegram.Token)
	c.Telegram.ChatID = getEnv("TELEGRAM_CHAT_ID", c.Telegram.ChatID)
	c.Telegram.Enabled = getEnvBool("TREND_TELEGRAM", c.Telegram.Enabled)
}

// Validate validates the configuration for consistency and correctness
func (c *EngineConfig) Validate() error {
	if c.Benchmark == "" {
		return fmt.Errorf("benchmark is required")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		if seen[s] {
			return fmt.Errorf("duplicate symbol %s", s)
		}
		seen[s] = true
	}
	if c.Interval == "" {
		return fmt.Errorf("interval is required")
	}
	if c.Commission < 0 || c.Commission >= 1 {
		return fmt.Errorf("commission must be in [0, 1), got %.6f", c.Commission)
	}
	if err := c.Regime.Validate(); err != nil {
		return fmt.Errorf("regime: %w", err)
	}
	if err := c.ActorConfig(c.Symbols[0]).Validate(); err != nil {
		return err
	}
	if err := c.Universe.Validate(); err != nil {
		return fmt.Errorf("universe: %w", err)
	}
	if c.Monitoring.Enabled && (c.Monitoring.Port <= 0 || c.Monitoring.Port > 65535) {
		return fmt.Errorf("monitoring port must be in 1-65535, got %d", c.Monitoring.Port)
	}
	if c.Exchange.WarmupBars < 0 {
		return fmt.Errorf("exchange warmup_bars must not be negative")
	}
	if c.Telegram.Enabled && (c.Telegram.Token == "" || c.Telegram.ChatID == "") {
		return fmt.Errorf("telegram alerts require TELEGRAM_TOKEN and TELEGRAM_CHAT_ID")
	}
	return nil
}

// ActorConfig returns the actor configuration for one symbol
func (c *EngineConfig) ActorConfig(symbol string) strategy.Config {
	return strategy.Config{
		Symbol:             symbol,
		Benchmark:          c.Benchmark,
		AllowSelfBenchmark: c.AllowSelfBenchmark,
		InitialEquity:      c.InitialEquity,
		Indicators:         c.Indicators,
		Strength:           c.Strength,
		Filters:            c.Filters,
		Exits:              c.Exits,
		Sizing:             c.Sizing,
		Risk:               c.Risk,
	}
}

// BacktestConfig returns the replay configuration
func (c *EngineConfig) BacktestConfig() backtest.Config {
	return backtest.Config{
		Symbols:     c.Symbols,
		Commission:  c.Commission,
		FillAtClose: c.FillAtClose,
		EventBuffer: c.EventBuffer,
		Regime:      c.Regime,
		Actor:       c.ActorConfig(""),
	}
}

// Summary returns a one-line description for logging
func (c *EngineConfig) Summary() string {
	return fmt.Sprintf("benchmark %s, %d symbols, interval %s, equity %.2f, base risk %.2f%%",
		c.Benchmark, len(c.Symbols), c.Interval, c.InitialEquity, c.Risk.BaseRisk*100)
}

// SplitSymbols parses a comma separated symbol list, upper-casing entries
func SplitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToUpper(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultVal
}
