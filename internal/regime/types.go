package regime

import (
	"fmt"
	"time"
)

// RegimeType represents the benchmark's trend/volatility state
type RegimeType int

const (
	RegimeNotReady RegimeType = iota
	RegimeBullish
	RegimeBearish
	RegimeVolatile
)

func (r RegimeType) String() string {
	switch r {
	case RegimeNotReady:
		return "NOT_READY"
	case RegimeBullish:
		return "BULLISH"
	case RegimeBearish:
		return "BEARISH"
	case RegimeVolatile:
		return "VOLATILE"
	default:
		return "UNKNOWN"
	}
}

// State is an immutable snapshot of the benchmark regime. The zero value is
// "not ready", which every consumer treats as unfavorable.
type State struct {
	Type       RegimeType `json:"type"`
	Timestamp  time.Time  `json:"timestamp"`
	Close      float64    `json:"close"`
	SMA        float64    `json:"sma"`
	ATR        float64    `json:"atr"`
	ATRPercent float64    `json:"atr_percent"`
}

// Ready reports whether both trend and volatility inputs were available
func (s State) Ready() bool {
	return s.Type != RegimeNotReady
}

// IsFavorable is true only for a bullish, calm benchmark
func (s State) IsFavorable() bool {
	return s.Type == RegimeBullish
}

// RegimeChange represents a regime transition event
type RegimeChange struct {
	Timestamp    time.Time  `json:"timestamp"`
	OldRegime    RegimeType `json:"old_regime"`
	NewRegime    RegimeType `json:"new_regime"`
	TriggerPrice float64    `json:"trigger_price"`
}

// Config holds configuration parameters for regime classification
type Config struct {
	SMAPeriod     int     `json:"sma_period"`      // trend gate: close above this SMA
	ATRPeriod     int     `json:"atr_period"`      // volatility gate input
	MaxATRPercent float64 `json:"max_atr_percent"` // volatility ceiling, ATR / close
}

// DefaultConfig returns a 200 SMA trend gate and a 4% ATR ceiling
func DefaultConfig() Config {
	return Config{
		SMAPeriod:     200,
		ATRPeriod:     14,
		MaxATRPercent: 0.04,
	}
}

// Validate validates the regime configuration
func (c Config) Validate() error {
	if c.SMAPeriod < 1 {
		return fmt.Errorf("regime sma period must be at least 1, got %d", c.SMAPeriod)
	}
	if c.ATRPeriod < 1 {
		return fmt.Errorf("regime atr period must be at least 1, got %d", c.ATRPeriod)
	}
	if c.MaxATRPercent <= 0 || c.MaxATRPercent >= 1 {
		return fmt.Errorf("max atr percent must be between 0 and 1, got %.4f", c.MaxATRPercent)
	}
	return nil
}
