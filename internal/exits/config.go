package exits

import "fmt"

// Config holds exit trigger parameters. Optional triggers are disabled by a zero value.
type Config struct {
	ChandelierMultiplier float64 `json:"chandelier_multiplier"` // k in HH - k*ATR
	BreakevenTrigger     float64 `json:"breakeven_trigger"`     // m, in multiples of ATR at entry
	FeeBuffer            float64 `json:"fee_buffer"`            // breakeven stop = entry * (1 + buffer)
	TimeStopBars         int     `json:"time_stop_bars"`
	TimeStopEpsilon      float64 `json:"time_stop_epsilon"`
	ParabolicFraction    float64 `json:"parabolic_fraction"` // (close - EMA) / EMA
	OverboughtRSI        float64 `json:"overbought_rsi"`
	FundingDangerRate    float64 `json:"funding_danger_rate"`
	DeRiskFraction       float64 `json:"derisk_fraction"`
}

// DefaultConfig returns the default exit parameters
func DefaultConfig() Config {
	return Config{
		ChandelierMultiplier: 3.0,
		BreakevenTrigger:     1.5,
		FeeBuffer:            0.002,
		TimeStopBars:         30,
		TimeStopEpsilon:      0.01,
		ParabolicFraction:    0.25,
		OverboughtRSI:        80,
		FundingDangerRate:    0.001,
		DeRiskFraction:       0.5,
	}
}

// Validate validates the exit configuration
func (c Config) Validate() error {
	if c.ChandelierMultiplier <= 0 {
		return fmt.Errorf("chandelier multiplier must be positive, got %.2f", c.ChandelierMultiplier)
	}
	if c.BreakevenTrigger <= 0 {
		return fmt.Errorf("breakeven trigger must be positive, got %.2f", c.BreakevenTrigger)
	}
	if c.FeeBuffer < 0 {
		return fmt.Errorf("fee buffer must be non-negative, got %.4f", c.FeeBuffer)
	}
	if c.TimeStopBars < 0 {
		return fmt.Errorf("time stop bars must be non-negative, got %d", c.TimeStopBars)
	}
	if c.ParabolicFraction < 0 {
		return fmt.Errorf("parabolic fraction must be non-negative, got %.2f", c.ParabolicFraction)
	}
	if c.OverboughtRSI < 0 || c.OverboughtRSI > 100 {
		return fmt.Errorf("overbought RSI must be within [0, 100], got %.2f", c.OverboughtRSI)
	}
	if c.DeRiskFraction <= 0 || c.DeRiskFraction > 1 {
		return fmt.Errorf("de-risk fraction must be within (0, 1], got %.2f", c.DeRiskFraction)
	}
	return nil
}
