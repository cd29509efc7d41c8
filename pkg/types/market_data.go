package types

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV sample for one instrument
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Validate reports malformed bars (non-finite values, negative prices, inverted range)
func (b Bar) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}, {"volume", b.Volume}}
	for _, f := range fields {
		name, v := f.name, f.v
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bar %s@%s: %s is not finite", b.Symbol, b.Timestamp.Format(time.RFC3339), name)
		}
		if v < 0 {
			return fmt.Errorf("bar %s@%s: %s is negative (%.8f)", b.Symbol, b.Timestamp.Format(time.RFC3339), name, v)
		}
	}
	if b.High < b.Low {
		return fmt.Errorf("bar %s@%s: high (%.8f) below low (%.8f)", b.Symbol, b.Timestamp.Format(time.RFC3339), b.High, b.Low)
	}
	if b.Close <= 0 {
		return fmt.Errorf("bar %s@%s: close must be positive", b.Symbol, b.Timestamp.Format(time.RFC3339))
	}
	return nil
}

// UpperWickRatio returns (high - max(open, close)) / (high - low), 0 for a flat bar
func (b Bar) UpperWickRatio() float64 {
	rng := b.High - b.Low
	if rng <= 0 {
		return 0
	}
	return (b.High - math.Max(b.Open, b.Close)) / rng
}

// CarryCost is a funding-rate (or similar cost-of-carry) observation for one instrument
type CarryCost struct {
	Symbol    string
	Rate      float64
	Timestamp time.Time
}
