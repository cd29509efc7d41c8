package regime

import (
	"testing"
	"time"

	"github.com/ducminhle1904/trend-engine/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(i int, close, spread float64) types.Bar {
	return types.Bar{
		Symbol:    "BTCUSDT",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Hour),
		Open:      close,
		High:      close + spread/2,
		Low:       close - spread/2,
		Close:     close,
		Volume:    1000,
	}
}

func smallConfig() Config {
	return Config{SMAPeriod: 5, ATRPeriod: 3, MaxATRPercent: 0.04}
}

func TestClassifier_FailsClosedDuringWarmup(t *testing.T) {
	c := NewClassifier(smallConfig())
	for i := 0; i < 4; i++ {
		state := c.Update(bar(i, 100+float64(i), 1))
		assert.False(t, state.Ready())
		assert.False(t, c.IsFavorable())
	}
}

func TestClassifier_Favorable(t *testing.T) {
	c := NewClassifier(smallConfig())
	var state State
	for i := 0; i < 6; i++ {
		state = c.Update(bar(i, 100+float64(i), 1))
	}

	require.True(t, state.Ready())
	assert.Equal(t, RegimeBullish, state.Type)
	assert.True(t, c.IsFavorable())
	assert.Greater(t, state.Close, state.SMA)
	assert.Less(t, state.ATRPercent, 0.04)
}

func TestClassifier_BearishBelowSMA(t *testing.T) {
	c := NewClassifier(smallConfig())
	var state State
	for i := 0; i < 6; i++ {
		state = c.Update(bar(i, 100-float64(i), 1))
	}

	assert.Equal(t, RegimeBearish, state.Type)
	assert.False(t, state.IsFavorable())
}

func TestClassifier_VolatileAboveCeiling(t *testing.T) {
	c := NewClassifier(smallConfig())
	var state State
	for i := 0; i < 6; i++ {
		state = c.Update(bar(i, 100+float64(i), 10))
	}

	assert.Equal(t, RegimeVolatile, state.Type)
	assert.False(t, c.IsFavorable())
}

func TestClassifier_RecordsRegimeChange(t *testing.T) {
	c := NewClassifier(smallConfig())
	for i := 0; i < 5; i++ {
		c.Update(bar(i, 100+float64(i), 1))
	}
	change := c.LastChange()
	require.NotNil(t, change)
	assert.Equal(t, RegimeNotReady, change.OldRegime)
	assert.Equal(t, RegimeBullish, change.NewRegime)

	c.Update(bar(5, 106, 1))
	assert.Nil(t, c.LastChange())
}

func TestZeroStateIsUnfavorable(t *testing.T) {
	var s State
	assert.False(t, s.Ready())
	assert.False(t, s.IsFavorable())
}
