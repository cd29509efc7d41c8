// Package sizing turns risk budgets into order quantities.
package sizing

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

var (
	// ErrUndersized is returned when the rounded quantity is zero. It is not fatal.
	ErrUndersized = errors.New("order undersized after increment rounding")
	// ErrInvalidInput is returned for non-positive or non-finite inputs
	ErrInvalidInput = errors.New("invalid sizing input")
)

// Config holds position sizing parameters
type Config struct {
	StopMultiplier      float64 `json:"stop_multiplier"`       // risk distance in ATRs
	QuantityIncrement   float64 `json:"quantity_increment"`    // instrument lot step
	MaxNotionalFraction float64 `json:"max_notional_fraction"` // 0 disables the cap
}

// DefaultConfig returns the default sizing parameters
func DefaultConfig() Config {
	return Config{
		StopMultiplier:    3.0,
		QuantityIncrement: 0.001,
	}
}

// Validate validates the sizing configuration
func (c Config) Validate() error {
	if c.StopMultiplier <= 0 {
		return fmt.Errorf("stop multiplier must be positive, got %.4f", c.StopMultiplier)
	}
	if c.QuantityIncrement <= 0 {
		return fmt.Errorf("quantity increment must be positive, got %.8f", c.QuantityIncrement)
	}
	if c.MaxNotionalFraction < 0 {
		return fmt.Errorf("max notional fraction must be non-negative, got %.4f", c.MaxNotionalFraction)
	}
	return nil
}

// Sizer computes volatility-scaled quantities
type Sizer struct {
	cfg       Config
	increment decimal.Decimal
}

// NewSizer creates a sizer for one instrument
func NewSizer(cfg Config) (*Sizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{cfg: cfg, increment: decimal.NewFromFloat(cfg.QuantityIncrement)}, nil
}

// Size returns equity*risk / (atr*stopMultiplier), capped by the notional
// limit and floored to the quantity increment.
func (s *Sizer) Size(equity, price, atr, riskFraction float64) (float64, error) {
	for _, v := range []float64{equity, price, atr, riskFraction} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return 0, fmt.Errorf("%w: equity=%.4f price=%.8f atr=%.8f risk=%.4f", ErrInvalidInput, equity, price, atr, riskFraction)
		}
	}

	raw := decimal.NewFromFloat(equity).
		Mul(decimal.NewFromFloat(riskFraction)).
		Div(decimal.NewFromFloat(atr).Mul(decimal.NewFromFloat(s.cfg.StopMultiplier)))

	if s.cfg.MaxNotionalFraction > 0 {
		limit := decimal.NewFromFloat(equity).
			Mul(decimal.NewFromFloat(s.cfg.MaxNotionalFraction)).
			Div(decimal.NewFromFloat(price))
		raw = decimal.Min(raw, limit)
	}

	qty := raw.Div(s.increment).Floor().Mul(s.increment)
	if !qty.IsPositive() {
		return 0, fmt.Errorf("%w: raw=%s increment=%s", ErrUndersized, raw.StringFixed(8), s.increment.String())
	}
	f, _ := qty.Float64()
	return f, nil
}

// Increment returns the configured quantity step
func (s *Sizer) Increment() float64 {
	return s.cfg.QuantityIncrement
}
