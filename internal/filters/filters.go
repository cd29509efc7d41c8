// Package filters implements the ordered, short-circuiting entry filter chain.
// The order of the chain decides which reason is attributed to a rejection.
package filters

import (
	"fmt"
	"time"

	"github.com/ducminhle1904/trend-engine/internal/regime"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// Reason is the code attached to every entry decision
type Reason string

const (
	ReasonEntrySignal       Reason = "entry_signal"
	ReasonNotReady          Reason = "not_ready"
	ReasonNotInUniverse     Reason = "not_in_universe"
	ReasonRegimeUnfavorable Reason = "regime_unfavorable"
	ReasonBelowTrend        Reason = "below_trend"
	ReasonWeakStrength      Reason = "weak_relative_strength"
	ReasonLowVolume         Reason = "low_volume"
	ReasonNoBreakout        Reason = "no_breakout"
	ReasonExhaustionCandle  Reason = "exhaustion_candle"
)

// Indicators is the slice of the indicator bank the chain reads
type Indicators interface {
	Ready() bool
	EMA() (float64, bool)
	ATR() (float64, bool)
	SMA() (float64, bool)
	VolumeSMA() (float64, bool)
}

// Membership answers universe eligibility
type Membership interface {
	IsActive(symbol string, ts time.Time) bool
}

// Strength answers relative strength; defined is false during warmup
type Strength interface {
	IsStrong() (strong bool, defined bool)
}

// Squeeze answers whether a recent compression makes this a high-conviction entry
type Squeeze interface {
	IsHighConviction() bool
}

// Candidate is everything a filter may look at for one bar
type Candidate struct {
	Bar        types.Bar
	Indicators Indicators
	Universe   Membership
	Regime     regime.State
	Strength   Strength
	Squeeze    Squeeze
}

// Filter is one step of the chain
type Filter interface {
	Name() string
	Evaluate(c *Candidate) (bool, Reason)
}

// Config holds entry filter thresholds
type Config struct {
	VolumeMultiplier  float64 `json:"volume_multiplier"`    // volume > multiplier * volume SMA
	TriggerMultiplier float64 `json:"trigger_multiplier"`   // close > EMA + trigger * ATR
	MaxUpperWickRatio float64 `json:"max_upper_wick_ratio"` // upper wick / range ceiling
	SqueezeMemory     int     `json:"squeeze_memory"`       // bars a squeeze stays remembered
}

// DefaultConfig returns the default entry thresholds
func DefaultConfig() Config {
	return Config{
		VolumeMultiplier:  1.5,
		TriggerMultiplier: 2.25,
		MaxUpperWickRatio: 0.3,
		SqueezeMemory:     5,
	}
}

// Validate validates the filter configuration
func (c Config) Validate() error {
	if c.VolumeMultiplier < 0 {
		return fmt.Errorf("volume multiplier must be non-negative, got %.2f", c.VolumeMultiplier)
	}
	if c.TriggerMultiplier < 0 {
		return fmt.Errorf("trigger multiplier must be non-negative, got %.2f", c.TriggerMultiplier)
	}
	if c.MaxUpperWickRatio <= 0 || c.MaxUpperWickRatio > 1 {
		return fmt.Errorf("max upper wick ratio must be in (0, 1], got %.2f", c.MaxUpperWickRatio)
	}
	if c.SqueezeMemory < 1 {
		return fmt.Errorf("squeeze memory must be at least 1, got %d", c.SqueezeMemory)
	}
	return nil
}

// WarmupFilter rejects every bar until the actor's own indicators are ready
type WarmupFilter struct{}

func (WarmupFilter) Name() string { return "warmup" }

func (WarmupFilter) Evaluate(c *Candidate) (bool, Reason) {
	if c.Indicators == nil || !c.Indicators.Ready() {
		return false, ReasonNotReady
	}
	return true, ""
}

// UniverseFilter rejects instruments outside the active snapshot
type UniverseFilter struct{}

func (UniverseFilter) Name() string { return "universe" }

func (UniverseFilter) Evaluate(c *Candidate) (bool, Reason) {
	if c.Universe == nil || !c.Universe.IsActive(c.Bar.Symbol, c.Bar.Timestamp) {
		return false, ReasonNotInUniverse
	}
	return true, ""
}

// RegimeFilter fails closed while the benchmark regime is unknown or was not
// published for the candidate bar's timestamp
type RegimeFilter struct{}

func (RegimeFilter) Name() string { return "regime" }

func (RegimeFilter) Evaluate(c *Candidate) (bool, Reason) {
	if !c.Regime.Ready() || !c.Regime.Timestamp.Equal(c.Bar.Timestamp) {
		return false, ReasonNotReady
	}
	if !c.Regime.IsFavorable() {
		return false, ReasonRegimeUnfavorable
	}
	return true, ""
}

// TrendFilter requires close above the long SMA
type TrendFilter struct{}

func (TrendFilter) Name() string { return "trend" }

func (TrendFilter) Evaluate(c *Candidate) (bool, Reason) {
	sma, ok := c.Indicators.SMA()
	if !ok {
		return false, ReasonNotReady
	}
	if c.Bar.Close <= sma {
		return false, ReasonBelowTrend
	}
	return true, ""
}

// RelativeStrengthFilter requires combined RS > 0; undefined RS is a failure
type RelativeStrengthFilter struct{}

func (RelativeStrengthFilter) Name() string { return "relative_strength" }

func (RelativeStrengthFilter) Evaluate(c *Candidate) (bool, Reason) {
	if c.Strength == nil {
		return false, ReasonNotReady
	}
	strong, defined := c.Strength.IsStrong()
	if !defined {
		return false, ReasonNotReady
	}
	if !strong {
		return false, ReasonWeakStrength
	}
	return true, ""
}

// VolumeFilter requires volume above a multiple of its average
type VolumeFilter struct {
	Multiplier float64
}

func (VolumeFilter) Name() string { return "volume" }

func (f VolumeFilter) Evaluate(c *Candidate) (bool, Reason) {
	avg, ok := c.Indicators.VolumeSMA()
	if !ok {
		return false, ReasonNotReady
	}
	if c.Bar.Volume <= f.Multiplier*avg {
		return false, ReasonLowVolume
	}
	return true, ""
}

// BreakoutFilter requires close above EMA + multiplier * ATR
type BreakoutFilter struct {
	Multiplier float64
}

func (BreakoutFilter) Name() string { return "breakout" }

func (f BreakoutFilter) Evaluate(c *Candidate) (bool, Reason) {
	ema, emaOK := c.Indicators.EMA()
	atr, atrOK := c.Indicators.ATR()
	if !emaOK || !atrOK {
		return false, ReasonNotReady
	}
	if c.Bar.Close <= ema+f.Multiplier*atr {
		return false, ReasonNoBreakout
	}
	return true, ""
}

// CandleQualityFilter rejects exhaustion candles with long upper wicks
type CandleQualityFilter struct {
	MaxUpperWickRatio float64
}

func (CandleQualityFilter) Name() string { return "candle_quality" }

func (f CandleQualityFilter) Evaluate(c *Candidate) (bool, Reason) {
	if c.Bar.UpperWickRatio() >= f.MaxUpperWickRatio {
		return false, ReasonExhaustionCandle
	}
	return true, ""
}
