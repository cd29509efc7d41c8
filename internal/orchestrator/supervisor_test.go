package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/trend-engine/internal/filters"
	"github.com/ducminhle1904/trend-engine/internal/indicators"
	"github.com/ducminhle1904/trend-engine/internal/regime"
	"github.com/ducminhle1904/trend-engine/internal/strategy"
	"github.com/ducminhle1904/trend-engine/internal/telemetry"
	"github.com/ducminhle1904/trend-engine/internal/universe"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type nopSink struct{}

func (nopSink) SubmitOrder(types.OrderIntent)         {}
func (nopSink) SubmitClose(types.ClosePositionIntent) {}

type panickingUniverse struct{}

func (panickingUniverse) IsActive(string, time.Time) bool { panic("universe unavailable") }

func shortIndicators() indicators.Config {
	cfg := indicators.DefaultConfig()
	cfg.EMAPeriod = 2
	cfg.ATRPeriod = 2
	cfg.TrendSMAPeriod = 2
	cfg.VolumeSMAPeriod = 2
	return cfg
}

func newActor(t *testing.T, symbol string, u filters.Membership) *strategy.Actor {
	t.Helper()
	cfg := strategy.DefaultConfig(symbol, "BTCUSDT")
	cfg.Indicators = shortIndicators()
	a, err := strategy.NewActor(cfg, strategy.Deps{Sink: nopSink{}, Universe: u})
	require.NoError(t, err)
	return a
}

func bar(symbol string, i int, close float64) types.Bar {
	return types.Bar{
		Symbol:    symbol,
		Timestamp: t0.Add(time.Duration(i) * time.Hour),
		Open:      close,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    100,
	}
}

func newSupervisor(t *testing.T, agg *telemetry.Aggregator) *Supervisor {
	t.Helper()
	rc := regime.DefaultConfig()
	rc.SMAPeriod = 2
	rc.ATRPeriod = 2
	s, err := NewSupervisor(DefaultConfig("BTCUSDT"), regime.NewClassifier(rc), agg, nil, nil)
	require.NoError(t, err)
	return s
}

func TestBenchmarkDeliveredFirst(t *testing.T) {
	ctx := context.Background()
	agg := telemetry.NewAggregator()
	s := newSupervisor(t, agg)

	eth := newActor(t, "ETHUSDT", universe.NewStaticMembership([]string{"ETHUSDT"}))
	require.NoError(t, s.Add(eth))
	require.NoError(t, s.Start(ctx))

	for i := 0; i < 3; i++ {
		// benchmark listed last on purpose
		require.NoError(t, s.DispatchStep(ctx, []types.Bar{bar("ETHUSDT", i, 50+float64(i)), bar("BTCUSDT", i, 100+float64(i))}))
	}
	require.NoError(t, s.Sync(ctx))

	st := eth.Regime()
	assert.Equal(t, t0.Add(2*time.Hour), st.Timestamp)
	assert.Equal(t, s.Regime(), st)
	assert.True(t, st.Ready())

	failures := s.Stop()
	assert.Empty(t, failures)

	reports := agg.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, 3, reports[0].TotalBars)
}

func TestStepWithoutBenchmarkPublishesNotReady(t *testing.T) {
	ctx := context.Background()
	s := newSupervisor(t, telemetry.NewAggregator())

	eth := newActor(t, "ETHUSDT", universe.NewStaticMembership([]string{"ETHUSDT"}))
	require.NoError(t, s.Add(eth))
	require.NoError(t, s.Start(ctx))
	defer s.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.DispatchStep(ctx, []types.Bar{bar("BTCUSDT", i, 100+float64(i)), bar("ETHUSDT", i, 50+float64(i))}))
	}
	require.NoError(t, s.Sync(ctx))
	require.True(t, eth.Regime().Ready())

	// benchmark missing from the step
	require.NoError(t, s.DispatchStep(ctx, []types.Bar{bar("ETHUSDT", 3, 53)}))
	require.NoError(t, s.Sync(ctx))
	st := eth.Regime()
	assert.False(t, st.Ready())
	assert.Equal(t, t0.Add(3*time.Hour), st.Timestamp)
	assert.Equal(t, s.Regime(), st)

	// malformed benchmark bar
	broken := bar("BTCUSDT", 4, 104)
	broken.High = 0
	require.NoError(t, s.DispatchStep(ctx, []types.Bar{broken, bar("ETHUSDT", 4, 54)}))
	require.NoError(t, s.Sync(ctx))
	st = eth.Regime()
	assert.False(t, st.Ready())
	assert.Equal(t, t0.Add(4*time.Hour), st.Timestamp)

	require.NoError(t, s.DispatchStep(ctx, []types.Bar{bar("BTCUSDT", 5, 105), bar("ETHUSDT", 5, 55)}))
	require.NoError(t, s.Sync(ctx))
	assert.True(t, eth.Regime().Ready())
	assert.True(t, s.Alive("ETHUSDT"))
}

func TestActorFailureIsolated(t *testing.T) {
	ctx := context.Background()
	agg := telemetry.NewAggregator()
	s := newSupervisor(t, agg)

	good := newActor(t, "ETHUSDT", universe.NewStaticMembership([]string{"ETHUSDT"}))
	bad := newActor(t, "SOLUSDT", panickingUniverse{})
	fatal := newActor(t, "XRPUSDT", universe.NewStaticMembership([]string{"XRPUSDT"}))
	require.NoError(t, s.Add(good))
	require.NoError(t, s.Add(bad))
	require.NoError(t, s.Add(fatal))
	require.NoError(t, s.Start(ctx))

	for i := 0; i < 5; i++ {
		bars := []types.Bar{
			bar("BTCUSDT", i, 100+float64(i)),
			bar("ETHUSDT", i, 50+float64(i)),
			bar("SOLUSDT", i, 20+float64(i)),
			bar("XRPUSDT", i, 1+float64(i)),
		}
		if i == 1 {
			bars[3].High = 0 // high below low
		}
		require.NoError(t, s.DispatchStep(ctx, bars))
	}
	require.NoError(t, s.Sync(ctx))

	assert.True(t, s.Alive("ETHUSDT"))
	assert.False(t, s.Alive("SOLUSDT"))
	assert.False(t, s.Alive("XRPUSDT"))

	failures := s.Stop()
	require.Len(t, failures, 2)
	assert.Contains(t, failures["SOLUSDT"].Error(), "panic")
	assert.Contains(t, failures["XRPUSDT"].Error(), "FATAL")

	reports := agg.Reports()
	require.Len(t, reports, 3)
	assert.Equal(t, "ETHUSDT", reports[0].Symbol)
	assert.Equal(t, 5, reports[0].TotalBars)
}

func TestAddAfterStartFails(t *testing.T) {
	s := newSupervisor(t, nil)
	require.NoError(t, s.Add(newActor(t, "ETHUSDT", universe.NewStaticMembership(nil))))
	assert.Error(t, s.Add(newActor(t, "ETHUSDT", universe.NewStaticMembership(nil))))

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Add(newActor(t, "ADAUSDT", universe.NewStaticMembership(nil))))
	s.Stop()
}

func TestDeliverFillUnknownSymbol(t *testing.T) {
	s := newSupervisor(t, nil)
	err := s.DeliverFill(context.Background(), types.Fill{Symbol: "NOPE"})
	assert.Error(t, err)
}

func TestNewSupervisorRequiresBenchmark(t *testing.T) {
	_, err := NewSupervisor(Config{}, regime.NewClassifier(regime.DefaultConfig()), nil, nil, nil)
	assert.Error(t, err)
}
