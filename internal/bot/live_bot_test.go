package bot

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
	"github.com/ducminhle1904/trend-engine/internal/exchange/bybit"
	"github.com/ducminhle1904/trend-engine/internal/monitoring"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

var day0 = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

func generateBenchmarkBars(n int) []types.Bar {
	bars := make([]types.Bar, n)
	prev := 999.5
	for i := range bars {
		c := 1000 + 0.5*float64(i)
		bars[i] = types.Bar{Symbol: "BTCUSDT", Timestamp: day0.AddDate(0, 0, i), Open: prev, High: c + 0.5, Low: prev - 0.5, Close: c, Volume: 5000}
		prev = c
	}
	return bars
}

// generateTrendBars rises steadily, spikes volume on spikeAt and gaps down 15% on dropAt
func generateTrendBars(n, spikeAt, dropAt int) []types.Bar {
	bars := make([]types.Bar, n)
	prev := 99.5
	for i := range bars {
		var open, high, low, c float64
		switch {
		case i < dropAt:
			open, c = prev, 100+0.5*float64(i)
			high, low = c+0.05, open-0.05
		case i == dropAt:
			open, c = prev, prev*0.85
			high, low = open+0.05, c-0.05
		default:
			open, c = prev, prev+0.01
			high, low = c+0.05, open-0.05
		}
		vol := 1000.0
		if i == spikeAt {
			vol = 3000
		}
		bars[i] = types.Bar{Symbol: "ETHUSDT", Timestamp: day0.AddDate(0, 0, i), Open: open, High: high, Low: low, Close: c, Volume: vol}
		prev = c
	}
	return bars
}

type fakeSource struct {
	series map[string][]types.Bar
	err    error
	calls  []int
}

func (f *fakeSource) FetchBars(_ context.Context, symbol string, _ bybit.KlineInterval, limit int) ([]types.Bar, error) {
	f.calls = append(f.calls, limit)
	if f.err != nil {
		return nil, f.err
	}
	return f.series[symbol], nil
}

// fakeStream sends its bars, then either returns err or waits for cancellation
type fakeStream struct {
	bars  []types.Bar
	err   error
	block bool
}

func (f *fakeStream) Run(ctx context.Context, out chan<- types.Bar) error {
	for _, b := range f.bars {
		select {
		case out <- b:
		case <-ctx.Done():
			return nil
		}
	}
	if f.block {
		<-ctx.Done()
		return nil
	}
	return f.err
}

type fakeCarry struct {
	mu      sync.Mutex
	emitted int
	obs     []types.CarryCost
}

func (f *fakeCarry) Run(ctx context.Context, emit func(types.CarryCost)) {
	for _, c := range f.obs {
		emit(c)
		f.mu.Lock()
		f.emitted++
		f.mu.Unlock()
	}
	<-ctx.Done()
}

type fakeNotifier struct {
	mu     sync.Mutex
	alerts []string
}

func (f *fakeNotifier) SendAlert(_ context.Context, level, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, level+": "+message)
	return nil
}

func newEngine(t *testing.T) *backtest.Engine {
	t.Helper()
	e, err := backtest.NewEngine(backtest.DefaultConfig("BTCUSDT", []string{"ETHUSDT"}), nil, nil)
	require.NoError(t, err)
	return e
}

// interleave emits, for every index, the traded bar before the benchmark bar
func interleave(a, b []types.Bar) []types.Bar {
	out := make([]types.Bar, 0, len(a)+len(b))
	for i := range a {
		out = append(out, a[i], b[i])
	}
	return out
}

func TestLiveBot_WarmupThenStreamMatchesReplay(t *testing.T) {
	const n, spikeAt, dropAt, warm = 250, 200, 231, 220
	eth := generateTrendBars(n, spikeAt, dropAt)
	btc := generateBenchmarkBars(n)

	source := &fakeSource{series: map[string][]types.Bar{"BTCUSDT": btc[:warm], "ETHUSDT": eth[:warm]}}
	stream := &fakeStream{bars: interleave(eth[warm:], btc[warm:])}
	health := monitoring.NewHealthChecker(time.Hour)
	notifier := &fakeNotifier{}
	var out bytes.Buffer

	b, err := NewLiveBot(newEngine(t), []string{"BTCUSDT", "ETHUSDT"}, Deps{
		Source:   source,
		Stream:   stream,
		Health:   health,
		Notifier: notifier,
		Out:      &out,
	}, Options{Interval: bybit.Interval1d, WarmupBars: warm, Environment: "testnet"})
	require.NoError(t, err)

	res, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{warm, warm}, source.calls)
	assert.Equal(t, n, b.Steps())
	assert.Len(t, res.EquityCurve, n)

	require.Len(t, res.Trades, 1)
	trade := res.Trades[0]
	assert.Equal(t, "chandelier_exit", trade.CloseReason)
	assert.Equal(t, eth[spikeAt+1].Open, trade.EntryPrice)
	assert.Equal(t, eth[dropAt+1].Timestamp, trade.ExitTime)
	assert.Equal(t, eth[dropAt+1].Open, trade.ExitPrice)

	assert.Equal(t, btc[n-1].Timestamp, health.Status(time.Now()).LastBar)
	assert.Contains(t, out.String(), "LIVE PAPER SESSION")
	require.Len(t, notifier.alerts, 2)
	assert.Contains(t, notifier.alerts[1], "success: live session ended: 250 steps, 1 trades")
}

func TestLiveBot_DropsBarsAlreadyCoveredByWarmup(t *testing.T) {
	const n = 30
	eth := generateTrendBars(n, n+1, n+1)
	btc := generateBenchmarkBars(n)

	source := &fakeSource{series: map[string][]types.Bar{"BTCUSDT": btc[:20], "ETHUSDT": eth[:20]}}
	// the stream replays the last warm-up bars before new ones
	stream := &fakeStream{bars: interleave(eth[18:], btc[18:])}

	b, err := NewLiveBot(newEngine(t), []string{"BTCUSDT", "ETHUSDT"}, Deps{Source: source, Stream: stream},
		Options{Interval: bybit.Interval1d, WarmupBars: 20})
	require.NoError(t, err)

	res, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.EquityCurve, n)
}

func TestLiveBot_IncompleteStepFlushedOnTimeout(t *testing.T) {
	btc := generateBenchmarkBars(3)
	eth := generateTrendBars(3, 10, 10)
	// ETH misses the last timestamp
	stream := &fakeStream{bars: []types.Bar{eth[0], btc[0], eth[1], btc[1], btc[2]}, block: true}
	health := monitoring.NewHealthChecker(time.Hour)

	b, err := NewLiveBot(newEngine(t), []string{"BTCUSDT", "ETHUSDT"}, Deps{Source: &fakeSource{}, Stream: stream, Health: health},
		Options{Interval: bybit.Interval1d, StepTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *backtest.Results, 1)
	go func() {
		res, err := b.Run(ctx)
		assert.NoError(t, err)
		done <- res
	}()

	require.Eventually(t, func() bool {
		return health.Status(time.Now()).LastBar.Equal(btc[2].Timestamp)
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case res := <-done:
		require.NotNil(t, res)
		assert.Len(t, res.EquityCurve, 3)
	case <-time.After(2 * time.Second):
		t.Fatal("live bot did not stop after cancellation")
	}
}

func TestLiveBot_WarmupErrorStopsSession(t *testing.T) {
	b, err := NewLiveBot(newEngine(t), []string{"BTCUSDT", "ETHUSDT"}, Deps{
		Source: &fakeSource{err: errors.New("connection reset")},
		Stream: &fakeStream{},
	}, Options{Interval: bybit.Interval1d, WarmupBars: 10})
	require.NoError(t, err)

	res, err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	require.NotNil(t, res)
	assert.Empty(t, res.EquityCurve)
}

func TestLiveBot_StreamErrorIsReturned(t *testing.T) {
	notifier := &fakeNotifier{}
	b, err := NewLiveBot(newEngine(t), []string{"BTCUSDT", "ETHUSDT"}, Deps{
		Source:   &fakeSource{},
		Stream:   &fakeStream{err: errors.New("handshake refused")},
		Notifier: notifier,
	}, Options{Interval: bybit.Interval1d})
	require.NoError(t, err)

	_, err = b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake refused")

	require.Len(t, notifier.alerts, 2)
	assert.Contains(t, notifier.alerts[0], "info: live session started: 2 symbols")
	assert.Contains(t, notifier.alerts[1], "error: live session stopped")
	assert.Contains(t, notifier.alerts[1], "handshake refused")
}

func TestLiveBot_CarryDeliveredAndCancelIsClean(t *testing.T) {
	carry := &fakeCarry{obs: []types.CarryCost{{Symbol: "ETHUSDT", Rate: 0.0001, Timestamp: day0}}}
	b, err := NewLiveBot(newEngine(t), []string{"BTCUSDT", "ETHUSDT"}, Deps{
		Source: &fakeSource{},
		Stream: &fakeStream{block: true},
		Carry:  carry,
	}, Options{Interval: bybit.Interval1d})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := b.Run(ctx)
		errc <- err
	}()

	require.Eventually(t, func() bool {
		carry.mu.Lock()
		defer carry.mu.Unlock()
		return carry.emitted == 1
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("live bot did not stop after cancellation")
	}
}

func TestNewLiveBot_Validation(t *testing.T) {
	_, err := NewLiveBot(nil, []string{"BTCUSDT"}, Deps{Source: &fakeSource{}, Stream: &fakeStream{}}, Options{})
	assert.Error(t, err)
	_, err = NewLiveBot(newEngine(t), []string{"BTCUSDT"}, Deps{Stream: &fakeStream{}}, Options{})
	assert.Error(t, err)
	_, err = NewLiveBot(newEngine(t), nil, Deps{Source: &fakeSource{}, Stream: &fakeStream{}}, Options{})
	assert.Error(t, err)
}

func TestStepBuffer(t *testing.T) {
	t1, t2, t3 := day0, day0.AddDate(0, 0, 1), day0.AddDate(0, 0, 2)
	bar := func(sym string, ts time.Time) types.Bar {
		return types.Bar{Symbol: sym, Timestamp: ts, Open: 1, High: 1, Low: 1, Close: 1}
	}

	t.Run("completes when every symbol reported", func(t *testing.T) {
		buf := newStepBuffer([]string{"BTCUSDT", "ETHUSDT"}, time.Time{})
		ready, opened := buf.add(bar("ETHUSDT", t1))
		assert.Empty(t, ready)
		assert.True(t, opened)
		assert.True(t, buf.pending())

		ready, opened = buf.add(bar("BTCUSDT", t1))
		assert.False(t, opened)
		require.Len(t, ready, 1)
		assert.Equal(t, "BTCUSDT", ready[0][0].Symbol)
		assert.Equal(t, "ETHUSDT", ready[0][1].Symbol)
		assert.False(t, buf.pending())
	})

	t.Run("newer timestamp flushes partial step", func(t *testing.T) {
		buf := newStepBuffer([]string{"BTCUSDT", "ETHUSDT"}, time.Time{})
		buf.add(bar("BTCUSDT", t1))
		ready, opened := buf.add(bar("BTCUSDT", t2))
		assert.True(t, opened)
		require.Len(t, ready, 1)
		assert.Len(t, ready[0], 1)
		assert.Equal(t, t1, ready[0][0].Timestamp)
		assert.True(t, buf.pending())
	})

	t.Run("stale and unknown bars are dropped", func(t *testing.T) {
		buf := newStepBuffer([]string{"BTCUSDT", "ETHUSDT"}, t1)
		ready, opened := buf.add(bar("BTCUSDT", t1))
		assert.Empty(t, ready)
		assert.False(t, opened)
		ready, _ = buf.add(bar("SOLUSDT", t2))
		assert.Empty(t, ready)
		assert.False(t, buf.pending())

		buf.add(bar("BTCUSDT", t3))
		ready, opened = buf.add(bar("ETHUSDT", t2))
		assert.Empty(t, ready)
		assert.False(t, opened)
	})

	t.Run("single symbol completes immediately", func(t *testing.T) {
		buf := newStepBuffer([]string{"BTCUSDT"}, time.Time{})
		ready, opened := buf.add(bar("BTCUSDT", t1))
		assert.True(t, opened)
		assert.Len(t, ready, 1)
		assert.Nil(t, buf.flush())
	})
}
