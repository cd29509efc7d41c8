// Package regime classifies the benchmark instrument's trend and volatility
// state. One Classifier exists per benchmark; actors only ever see the
// immutable State values it publishes.
package regime

import (
	"github.com/ducminhle1904/trend-engine/internal/indicators"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// Classifier tracks the benchmark's long SMA and ATR
type Classifier struct {
	cfg        Config
	sma        *indicators.SMA
	atr        *indicators.ATR
	state      State
	lastChange *RegimeChange
}

// NewClassifier creates a new benchmark regime classifier
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{
		cfg: cfg,
		sma: indicators.NewSMA(cfg.SMAPeriod),
		atr: indicators.NewATR(cfg.ATRPeriod),
	}
}

// Update advances the classifier by one benchmark bar and returns the new state
func (c *Classifier) Update(bar types.Bar) State {
	c.sma.Update(bar.Close)
	c.atr.Update(bar.High, bar.Low, bar.Close)

	next := State{
		Type:      RegimeNotReady,
		Timestamp: bar.Timestamp,
		Close:     bar.Close,
	}

	sma, smaOK := c.sma.Value()
	atr, atrOK := c.atr.Value()
	if smaOK && atrOK && bar.Close > 0 {
		next.SMA = sma
		next.ATR = atr
		next.ATRPercent = atr / bar.Close
		next.Type = c.classify(bar.Close, sma, next.ATRPercent)
	}

	if next.Type != c.state.Type {
		c.lastChange = &RegimeChange{
			Timestamp:    bar.Timestamp,
			OldRegime:    c.state.Type,
			NewRegime:    next.Type,
			TriggerPrice: bar.Close,
		}
	} else {
		c.lastChange = nil
	}
	c.state = next
	return next
}

func (c *Classifier) classify(close, sma, atrPercent float64) RegimeType {
	if close <= sma {
		return RegimeBearish
	}
	if atrPercent >= c.cfg.MaxATRPercent {
		return RegimeVolatile
	}
	return RegimeBullish
}

// IsFavorable returns true only if close > SMA and ATR% < ceiling; false while warming up
func (c *Classifier) IsFavorable() bool {
	return c.state.IsFavorable()
}

// State returns the latest published snapshot
func (c *Classifier) State() State {
	return c.state
}

// LastChange returns the transition caused by the most recent Update, or nil
func (c *Classifier) LastChange() *RegimeChange {
	return c.lastChange
}
