// Package risk adapts the per-trade risk fraction to recent outcomes and the
// benchmark regime.
package risk

import "fmt"

// Config holds risk adaptation parameters
type Config struct {
	BaseRisk           float64 `json:"base_risk"`
	HighConvictionRisk float64 `json:"high_conviction_risk"`
	LosingStreak       int     `json:"losing_streak"` // outcomes considered by the floor
	FloorRisk          float64 `json:"floor_risk"`
	BearMultiplier     float64 `json:"bear_multiplier"`
}

// DefaultConfig returns the default risk parameters
func DefaultConfig() Config {
	return Config{
		BaseRisk:           0.02,
		HighConvictionRisk: 0.03,
		LosingStreak:       3,
		FloorRisk:          0.01,
		BearMultiplier:     0.5,
	}
}

// Validate validates the risk configuration
func (c Config) Validate() error {
	if c.BaseRisk <= 0 || c.BaseRisk > 1 {
		return fmt.Errorf("base risk must be within (0, 1], got %.4f", c.BaseRisk)
	}
	if c.HighConvictionRisk <= 0 || c.HighConvictionRisk > 1 {
		return fmt.Errorf("high conviction risk must be within (0, 1], got %.4f", c.HighConvictionRisk)
	}
	if c.LosingStreak < 1 {
		return fmt.Errorf("losing streak must be at least 1, got %d", c.LosingStreak)
	}
	if c.FloorRisk <= 0 || c.FloorRisk > c.BaseRisk {
		return fmt.Errorf("floor risk must be within (0, base risk], got %.4f", c.FloorRisk)
	}
	if c.BearMultiplier <= 0 || c.BearMultiplier > 1 {
		return fmt.Errorf("bear multiplier must be within (0, 1], got %.2f", c.BearMultiplier)
	}
	return nil
}

// Adapter selects the effective risk fraction for the next entry
type Adapter struct {
	cfg Config
}

// NewAdapter creates an adapter
func NewAdapter(cfg Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// NewHistory creates a trade history sized for this adapter's losing streak
func (a *Adapter) NewHistory() *TradeHistory {
	return NewTradeHistory(a.cfg.LosingStreak)
}

// EffectiveRisk applies, in precedence order: high conviction, losing-streak
// floor, unfavorable regime halving, base.
func (a *Adapter) EffectiveRisk(highConviction bool, history *TradeHistory, regimeFavorable bool) float64 {
	return EffectiveRisk(a.cfg.BaseRisk, a.cfg.HighConvictionRisk, highConviction, history, regimeFavorable, a.cfg.FloorRisk, a.cfg.BearMultiplier)
}

// EffectiveRisk is the stateless form of Adapter.EffectiveRisk
func EffectiveRisk(base, hc float64, highConviction bool, history *TradeHistory, regimeFavorable bool, floor, bearMultiplier float64) float64 {
	switch {
	case highConviction:
		return hc
	case history != nil && history.AllLosses():
		return floor
	case !regimeFavorable:
		return base * bearMultiplier
	default:
		return base
	}
}
