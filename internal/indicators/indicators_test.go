package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEMA_NotReadyUntilPeriod(t *testing.T) {
	ema := NewEMA(3)

	ema.Update(1)
	ema.Update(2)
	_, ok := ema.Value()
	assert.False(t, ok)
	assert.False(t, ema.IsReady())

	ema.Update(3)
	value, ok := ema.Value()
	require.True(t, ok)
	assert.InDelta(t, 2.0, value, 1e-9) // seeded with SMA(1,2,3)
}

func TestEMA_IncrementalUpdate(t *testing.T) {
	ema := NewEMA(3) // alpha = 0.5
	for _, v := range []float64{1, 2, 3, 4} {
		ema.Update(v)
	}

	value, ok := ema.Value()
	require.True(t, ok)
	assert.InDelta(t, 3.0, value, 1e-9)
}

func TestEMA_ResetState(t *testing.T) {
	ema := NewEMA(2)
	ema.Update(5)
	ema.Update(7)
	require.True(t, ema.IsReady())

	ema.ResetState()
	assert.False(t, ema.IsReady())
}

func TestSMA_RollingWindow(t *testing.T) {
	sma := NewSMA(3)
	for _, v := range []float64{1, 2} {
		sma.Update(v)
	}
	_, ok := sma.Value()
	assert.False(t, ok)

	for _, v := range []float64{3, 4, 5} {
		sma.Update(v)
	}
	value, ok := sma.Value()
	require.True(t, ok)
	assert.InDelta(t, 4.0, value, 1e-9)
	assert.Equal(t, 3, sma.GetRequiredPeriods())
}

func TestSMA_ConsistentValues(t *testing.T) {
	sma := NewSMA(5)
	for i := 0; i < 10; i++ {
		sma.Update(100)
	}

	value, ok := sma.Value()
	require.True(t, ok)
	assert.Equal(t, 100.0, value)
}

func TestATR_WilderSmoothing(t *testing.T) {
	atr := NewATR(3)
	bars := [][3]float64{
		{10, 8, 9},   // TR 2 (first bar uses high-low)
		{11, 9, 10},  // TR 2
		{12, 9, 11},  // TR 3
		{13, 11, 12}, // TR 2
	}

	for i, b := range bars[:2] {
		atr.Update(b[0], b[1], b[2])
		_, ok := atr.Value()
		assert.False(t, ok, "bar %d should not be ready", i)
	}

	atr.Update(bars[2][0], bars[2][1], bars[2][2])
	value, ok := atr.Value()
	require.True(t, ok)
	assert.InDelta(t, 7.0/3.0, value, 1e-9)

	atr.Update(bars[3][0], bars[3][1], bars[3][2])
	value, ok = atr.Value()
	require.True(t, ok)
	assert.InDelta(t, 20.0/9.0, value, 1e-9)
}

func TestATR_GapUsesPreviousClose(t *testing.T) {
	assert.Equal(t, 5.0, trueRange(15, 14, 10))
	assert.Equal(t, 6.0, trueRange(10, 4, 8))
}

func TestBollingerBands_PopulationStdDev(t *testing.T) {
	bb := NewBollingerBands(8, 2.0)
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7} {
		bb.Update(v)
	}
	_, _, _, ok := bb.Bands()
	assert.False(t, ok)

	bb.Update(9)
	upper, middle, lower, ok := bb.Bands()
	require.True(t, ok)
	assert.InDelta(t, 5.0, middle, 1e-9)
	assert.InDelta(t, 9.0, upper, 1e-9)
	assert.InDelta(t, 1.0, lower, 1e-9)
}

func TestBollingerBands_FlatPrices(t *testing.T) {
	bb := NewBollingerBands(5, 2.0)
	for i := 0; i < 5; i++ {
		bb.Update(100)
	}

	upper, middle, lower, ok := bb.Bands()
	require.True(t, ok)
	assert.Equal(t, 100.0, upper)
	assert.Equal(t, 100.0, middle)
	assert.Equal(t, 100.0, lower)
}

func TestRSI_Values(t *testing.T) {
	tests := []struct {
		name     string
		period   int
		closes   []float64
		expected float64
	}{
		{"all gains", 3, []float64{1, 2, 3, 4}, 100},
		{"flat", 3, []float64{5, 5, 5, 5}, 50},
		{"balanced", 2, []float64{1, 2, 1}, 50},
		{"all losses", 3, []float64{4, 3, 2, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rsi := NewRSI(tt.period)
			for _, c := range tt.closes {
				rsi.Update(c)
			}
			value, ok := rsi.Value()
			require.True(t, ok)
			assert.InDelta(t, tt.expected, value, 1e-9)
		})
	}
}

func TestRSI_NotReady(t *testing.T) {
	rsi := NewRSI(3)
	for _, c := range []float64{1, 2, 3} {
		rsi.Update(c)
	}
	_, ok := rsi.Value()
	assert.False(t, ok)
	assert.Equal(t, 4, rsi.GetRequiredPeriods())
}

func TestKeltnerChannels(t *testing.T) {
	kc := NewKeltnerChannels(2, 1.5)
	kc.Update(11, 9, 10)
	_, _, _, ok := kc.Channel()
	assert.False(t, ok)

	kc.Update(11, 9, 10)
	upper, middle, lower, ok := kc.Channel()
	require.True(t, ok)
	assert.InDelta(t, 10.0, middle, 1e-9)
	assert.InDelta(t, 13.0, upper, 1e-9)
	assert.InDelta(t, 7.0, lower, 1e-9)
}

func TestBank_ReadinessAndAccessors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrendSMAPeriod = 30
	bank := NewBank(cfg)
	require.Equal(t, 30, bank.RequiredBars())

	for i := 0; i < 29; i++ {
		bank.Update(101, 99, 100, 1000)
		assert.False(t, bank.Ready(), "bar %d", i+1)
	}
	_, ok := bank.SMA()
	assert.False(t, ok)

	bank.Update(101, 99, 100, 1000)
	assert.True(t, bank.Ready())
	assert.Equal(t, 30, bank.Bars())

	sma, ok := bank.SMA()
	require.True(t, ok)
	assert.InDelta(t, 100.0, sma, 1e-9)

	atr, ok := bank.ATR()
	require.True(t, ok)
	assert.InDelta(t, 2.0, atr, 1e-9)

	vol, ok := bank.VolumeSMA()
	require.True(t, ok)
	assert.InDelta(t, 1000.0, vol, 1e-9)

	assert.NoError(t, bank.CheckFinite())
}

func TestBank_SqueezeOnFlatCloses(t *testing.T) {
	bank := NewBank(DefaultConfig())
	for i := 0; i < 25; i++ {
		bank.Update(101, 99, 100, 1000)
	}

	inside, ok := bank.SqueezeOn()
	require.True(t, ok)
	assert.True(t, inside)
}

func TestBank_CheckFiniteDetectsOverflow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrendSMAPeriod = 2
	cfg.EMAPeriod = 2
	cfg.ATRPeriod = 2
	cfg.VolumeSMAPeriod = 2
	bank := NewBank(cfg)

	bank.Update(math.MaxFloat64, 0, math.MaxFloat64, 1)
	bank.Update(math.MaxFloat64, 0, math.MaxFloat64, 1)

	assert.Error(t, bank.CheckFinite())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ATRPeriod = 0
	assert.ErrorContains(t, cfg.Validate(), "atr_period")
}
