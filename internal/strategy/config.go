package strategy

import (
	"fmt"

	"github.com/ducminhle1904/trend-engine/internal/exits"
	"github.com/ducminhle1904/trend-engine/internal/filters"
	"github.com/ducminhle1904/trend-engine/internal/indicators"
	"github.com/ducminhle1904/trend-engine/internal/risk"
	"github.com/ducminhle1904/trend-engine/internal/sizing"
	"github.com/ducminhle1904/trend-engine/internal/strength"
)

// Config is the full parameter set of one instrument actor
type Config struct {
	Symbol             string  `json:"symbol"`
	Benchmark          string  `json:"benchmark"`
	AllowSelfBenchmark bool    `json:"allow_self_benchmark"`
	InitialEquity      float64 `json:"initial_equity"`

	Indicators indicators.Config `json:"indicators"`
	Strength   strength.Config   `json:"strength"`
	Filters    filters.Config    `json:"filters"`
	Exits      exits.Config      `json:"exits"`
	Sizing     sizing.Config     `json:"sizing"`
	Risk       risk.Config       `json:"risk"`
}

// DefaultConfig returns defaults for one symbol against a benchmark
func DefaultConfig(symbol, benchmark string) Config {
	return Config{
		Symbol:        symbol,
		Benchmark:     benchmark,
		InitialEquity: 10000,
		Indicators:    indicators.DefaultConfig(),
		Strength:      strength.DefaultConfig(),
		Filters:       filters.DefaultConfig(),
		Exits:         exits.DefaultConfig(),
		Sizing:        sizing.DefaultConfig(),
		Risk:          risk.DefaultConfig(),
	}
}

// Validate validates the actor configuration
func (c Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if c.Benchmark == "" {
		return fmt.Errorf("benchmark is required")
	}
	if c.InitialEquity <= 0 {
		return fmt.Errorf("initial equity must be positive, got %.2f", c.InitialEquity)
	}
	if err := c.Indicators.Validate(); err != nil {
		return fmt.Errorf("indicators: %w", err)
	}
	if err := c.Strength.Validate(); err != nil {
		return fmt.Errorf("strength: %w", err)
	}
	if err := c.Filters.Validate(); err != nil {
		return fmt.Errorf("filters: %w", err)
	}
	if err := c.Exits.Validate(); err != nil {
		return fmt.Errorf("exits: %w", err)
	}
	if err := c.Sizing.Validate(); err != nil {
		return fmt.Errorf("sizing: %w", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	return nil
}

// IsSelfBenchmark reports whether the actor trades its own benchmark
func (c Config) IsSelfBenchmark() bool {
	return c.Symbol == c.Benchmark
}
