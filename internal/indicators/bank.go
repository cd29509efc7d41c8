package indicators

import (
	"fmt"
	"math"
)

// Config holds the periods used by a Bank
type Config struct {
	EMAPeriod         int     `json:"ema_period"`
	ATRPeriod         int     `json:"atr_period"`
	TrendSMAPeriod    int     `json:"trend_sma_period"`
	BollingerPeriod   int     `json:"bollinger_period"`
	BollingerStdDev   float64 `json:"bollinger_std_dev"`
	VolumeSMAPeriod   int     `json:"volume_sma_period"`
	RSIPeriod         int     `json:"rsi_period"`
	KeltnerPeriod     int     `json:"keltner_period"`
	KeltnerMultiplier float64 `json:"keltner_multiplier"`
}

// DefaultConfig returns the default indicator periods
func DefaultConfig() Config {
	return Config{
		EMAPeriod:         20,
		ATRPeriod:         14,
		TrendSMAPeriod:    200,
		BollingerPeriod:   20,
		BollingerStdDev:   2.0,
		VolumeSMAPeriod:   20,
		RSIPeriod:         14,
		KeltnerPeriod:     20,
		KeltnerMultiplier: 1.5,
	}
}

// Validate validates the indicator configuration
func (c Config) Validate() error {
	periods := []struct {
		name string
		v    int
	}{
		{"ema_period", c.EMAPeriod},
		{"atr_period", c.ATRPeriod},
		{"trend_sma_period", c.TrendSMAPeriod},
		{"bollinger_period", c.BollingerPeriod},
		{"volume_sma_period", c.VolumeSMAPeriod},
		{"rsi_period", c.RSIPeriod},
		{"keltner_period", c.KeltnerPeriod},
	}
	for _, p := range periods {
		if p.v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", p.name, p.v)
		}
	}
	if c.BollingerStdDev <= 0 {
		return fmt.Errorf("bollinger_std_dev must be positive, got %.2f", c.BollingerStdDev)
	}
	if c.KeltnerMultiplier <= 0 {
		return fmt.Errorf("keltner_multiplier must be positive, got %.2f", c.KeltnerMultiplier)
	}
	return nil
}

// Bank holds every rolling indicator for one instrument. Update advances all
// of them by exactly one bar; accessors return ok=false until ready.
type Bank struct {
	ema       *EMA
	atr       *ATR
	sma       *SMA
	bollinger *BollingerBands
	volume    *SMA
	rsi       *RSI
	keltner   *KeltnerChannels
	bars      int
}

// NewBank creates an indicator bank from cfg
func NewBank(cfg Config) *Bank {
	return &Bank{
		ema:       NewEMA(cfg.EMAPeriod),
		atr:       NewATR(cfg.ATRPeriod),
		sma:       NewSMA(cfg.TrendSMAPeriod),
		bollinger: NewBollingerBands(cfg.BollingerPeriod, cfg.BollingerStdDev),
		volume:    NewSMA(cfg.VolumeSMAPeriod),
		rsi:       NewRSI(cfg.RSIPeriod),
		keltner:   NewKeltnerChannels(cfg.KeltnerPeriod, cfg.KeltnerMultiplier),
	}
}

// Update advances every indicator by one bar
func (b *Bank) Update(high, low, close, volume float64) {
	b.ema.Update(close)
	b.atr.Update(high, low, close)
	b.sma.Update(close)
	b.bollinger.Update(close)
	b.volume.Update(volume)
	b.rsi.Update(close)
	b.keltner.Update(high, low, close)
	b.bars++
}

// Bars returns the number of bars seen
func (b *Bank) Bars() int { return b.bars }

// EMA returns the breakout EMA
func (b *Bank) EMA() (float64, bool) { return b.ema.Value() }

// ATR returns the Wilder ATR
func (b *Bank) ATR() (float64, bool) { return b.atr.Value() }

// SMA returns the long trend SMA
func (b *Bank) SMA() (float64, bool) { return b.sma.Value() }

// VolumeSMA returns the volume average
func (b *Bank) VolumeSMA() (float64, bool) { return b.volume.Value() }

// RSI returns the momentum oscillator
func (b *Bank) RSI() (float64, bool) { return b.rsi.Value() }

// Bollinger returns the Bollinger bands
func (b *Bank) Bollinger() (upper, middle, lower float64, ok bool) { return b.bollinger.Bands() }

// Keltner returns the Keltner channel
func (b *Bank) Keltner() (upper, middle, lower float64, ok bool) { return b.keltner.Channel() }

// SqueezeOn reports whether the Bollinger bands sit inside the Keltner channel
func (b *Bank) SqueezeOn() (inside bool, ok bool) {
	bbUpper, _, bbLower, bbOK := b.Bollinger()
	kcUpper, _, kcLower, kcOK := b.Keltner()
	if !bbOK || !kcOK {
		return false, false
	}
	return bbUpper < kcUpper && bbLower > kcLower, true
}

// Ready reports whether every indicator the entry chain reads is ready
func (b *Bank) Ready() bool {
	return b.ema.IsReady() && b.atr.IsReady() && b.sma.IsReady() && b.volume.IsReady()
}

// RequiredBars returns the number of bars until Ready can first be true
func (b *Bank) RequiredBars() int {
	n := b.ema.GetRequiredPeriods()
	for _, p := range []int{b.atr.GetRequiredPeriods(), b.sma.GetRequiredPeriods(), b.volume.period} {
		if p > n {
			n = p
		}
	}
	return n
}

// CheckFinite returns an error if any ready indicator has overflowed to a non-finite value
func (b *Bank) CheckFinite() error {
	check := func(name string, v float64, ok bool) error {
		if ok && (math.IsNaN(v) || math.IsInf(v, 0)) {
			return fmt.Errorf("indicator %s overflowed: %v", name, v)
		}
		return nil
	}
	v, ok := b.EMA()
	if err := check("ema", v, ok); err != nil {
		return err
	}
	v, ok = b.ATR()
	if err := check("atr", v, ok); err != nil {
		return err
	}
	v, ok = b.SMA()
	if err := check("sma", v, ok); err != nil {
		return err
	}
	v, ok = b.VolumeSMA()
	if err := check("volume_sma", v, ok); err != nil {
		return err
	}
	v, ok = b.RSI()
	return check("rsi", v, ok)
}
