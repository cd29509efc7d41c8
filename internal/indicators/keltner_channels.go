package indicators

const (
	// DefaultKeltnerChannelPeriod is the default period for the Keltner Channel
	DefaultKeltnerChannelPeriod = 20
)

// KeltnerChannels represents the Keltner Channels technical indicator
// Uses EMA for the middle line and ATR (Average True Range) for the channel width
//
//	Middle Line = EMA(period, closings)
//	Upper Band = EMA(period, closings) + multiplier * ATR(period, highs, lows, closings)
//	Lower Band = EMA(period, closings) - multiplier * ATR(period, highs, lows, closings)
type KeltnerChannels struct {
	multiplier float64
	ema        *EMA
	atr        *ATR
}

// NewKeltnerChannels creates a new Keltner Channels indicator with custom parameters
func NewKeltnerChannels(period int, multiplier float64) *KeltnerChannels {
	return &KeltnerChannels{
		multiplier: multiplier,
		ema:        NewEMA(period),
		atr:        NewATR(period),
	}
}

// Update advances the channel by one bar
func (kc *KeltnerChannels) Update(high, low, close float64) {
	kc.ema.Update(close)
	kc.atr.Update(high, low, close)
}

// Channel returns upper, middle and lower; ok is false until EMA and ATR are ready
func (kc *KeltnerChannels) Channel() (upper, middle, lower float64, ok bool) {
	middle, emaOK := kc.ema.Value()
	atr, atrOK := kc.atr.Value()
	if !emaOK || !atrOK {
		return 0, 0, 0, false
	}
	return middle + kc.multiplier*atr, middle, middle - kc.multiplier*atr, true
}

// ResetState clears all accumulated state
func (kc *KeltnerChannels) ResetState() {
	kc.ema.ResetState()
	kc.atr.ResetState()
}
