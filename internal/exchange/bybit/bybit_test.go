package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	engerrors "github.com/ducminhle1904/trend-engine/internal/errors"
	"github.com/ducminhle1904/trend-engine/internal/safety"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

func serverResponse(t *testing.T, body string) *bybit_api.ServerResponse {
	t.Helper()
	var resp bybit_api.ServerResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	return &resp
}

func TestParseKlineResponse(t *testing.T) {
	resp := serverResponse(t, `{"retCode":0,"retMsg":"OK","result":{"symbol":"BTCUSDT","category":"linear","list":[
		["1704153600000","42300","42900","42100","42800","1500","64000000"],
		["1704067200000","42000","42500","41800","42300","1200","50000000"],
		["bad"]
	]}}`)

	klines, err := parseKlineResponse(resp)
	require.NoError(t, err)
	require.Len(t, klines, 2)
	assert.Equal(t, 42800.0, klines[0].ClosePrice)

	// newest first in, oldest first out, forming bar dropped
	bars := closedBars("BTCUSDT", klines)
	require.Len(t, bars, 1)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), bars[0].Timestamp)
	assert.Equal(t, 42300.0, bars[0].Close)
	assert.NoError(t, bars[0].Validate())
}

func TestParseResponseErrors(t *testing.T) {
	_, err := parseKlineResponse("not a response")
	assert.Error(t, err)

	resp := serverResponse(t, `{"retCode":10006,"retMsg":"Too many visits","result":{}}`)
	_, err = parseKlineResponse(resp)
	require.Error(t, err)
	assert.True(t, IsRateLimitError(err))
	assert.True(t, IsRetryableError(err))
}

func TestParseFundingRateResponse(t *testing.T) {
	resp := serverResponse(t, `{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[
		{"symbol":"ETHUSDT","fundingRate":"0.00125","nextFundingTime":"1704096000000"}
	]}}`)
	rate, next, err := parseFundingRateResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, 0.00125, rate)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), next)

	empty := serverResponse(t, `{"retCode":0,"retMsg":"OK","result":{"category":"spot","list":[{"symbol":"ETHUSDT"}]}}`)
	_, _, err = parseFundingRateResponse(empty)
	assert.Error(t, err)
}

func TestParseInterval(t *testing.T) {
	iv, err := ParseInterval("1d")
	require.NoError(t, err)
	assert.Equal(t, Interval1d, iv)

	iv, err = ParseInterval("4H")
	require.NoError(t, err)
	assert.Equal(t, Interval4h, iv)

	_, err = ParseInterval("7m")
	assert.Error(t, err)
}

func TestParseKlineMessage(t *testing.T) {
	msg := `{"topic":"kline.D.SOLUSDT","type":"snapshot","ts":1704153600000,"data":[
		{"start":1704067200000,"open":"100","high":"110","low":"95","close":"105","volume":"1000","confirm":true},
		{"start":1704153600000,"open":"105","high":"106","low":"104","close":"105.5","volume":"10","confirm":false}
	]}`
	bars, err := ParseKlineMessage([]byte(msg))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, types.Bar{
		Symbol:    "SOLUSDT",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Open:      100,
		High:      110,
		Low:       95,
		Close:     105,
		Volume:    1000,
	}, bars[0])

	bars, err = ParseKlineMessage([]byte(`{"success":true,"ret_msg":"pong","op":"ping"}`))
	require.NoError(t, err)
	assert.Empty(t, bars)

	_, err = ParseKlineMessage([]byte(`{"success":false,"ret_msg":"invalid topic","op":"subscribe"}`))
	assert.Error(t, err)

	_, err = ParseKlineMessage([]byte(`{`))
	assert.Error(t, err)
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), "op", fastRetry(), func() error {
		calls++
		if calls < 3 {
			return NewBybitError(ErrCodeRateLimitExceeded, "slow down")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = Retry(context.Background(), "op", fastRetry(), func() error {
		calls++
		return NewBybitError(ErrCodeInvalidAPIKey, "bad key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "auth errors are not retried")

	err = Retry(context.Background(), "op", fastRetry(), func() error {
		return errors.New("connection reset")
	})
	var engErr *engerrors.EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, engerrors.ErrorCategoryNetwork, engErr.Category)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Retry(ctx, "op", fastRetry(), func() error { return nil }), context.Canceled)
}

func TestClientCall_BreakerCountsOnlyTransientFailures(t *testing.T) {
	c := &Client{
		retry:   fastRetry(),
		limiter: safety.NewRateLimiter("test", 100, 1000),
		breaker: safety.NewCircuitBreaker("test", safety.CircuitBreakerConfig{FailureThreshold: 3, Timeout: time.Hour}),
	}
	ctx := context.Background()

	calls := 0
	for i := 0; i < 5; i++ {
		err := c.call(ctx, "op", func() error {
			calls++
			return NewBybitError(ErrCodeSymbolNotFound, "unknown symbol")
		})
		var bybitErr *BybitError
		require.ErrorAs(t, err, &bybitErr)
	}
	assert.Equal(t, 5, calls)
	assert.Equal(t, safety.StateClosed, c.breaker.State())

	calls = 0
	err := c.call(ctx, "op", func() error {
		calls++
		return errors.New("connection reset")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, safety.StateOpen, c.breaker.State())

	calls = 0
	err = c.call(ctx, "op", func() error { calls++; return nil })
	assert.ErrorIs(t, err, safety.ErrCircuitOpen)
	assert.Zero(t, calls)
}

type fakeFunding map[string]float64

func (f fakeFunding) GetFundingRate(_ context.Context, symbol string) (float64, time.Time, error) {
	rate, ok := f[symbol]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unknown symbol %s", symbol)
	}
	return rate, time.Time{}, nil
}

func TestFundingPoller(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	p := NewFundingPoller(fakeFunding{"ETHUSDT": 0.0002, "SOLUSDT": 0.0015}, []string{"ETHUSDT", "XRPUSDT", "SOLUSDT"}, time.Hour, nil)
	p.now = func() time.Time { return now }

	got := p.Poll(context.Background())
	require.Len(t, got, 2)
	assert.Equal(t, types.CarryCost{Symbol: "ETHUSDT", Rate: 0.0002, Timestamp: now}, got[0])
	assert.Equal(t, "SOLUSDT", got[1].Symbol)

	ctx, cancel := context.WithCancel(context.Background())
	var emitted []types.CarryCost
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx, func(c types.CarryCost) {
			emitted = append(emitted, c)
			if len(emitted) == 2 {
				cancel()
			}
		})
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("poller did not stop")
	}
	assert.Len(t, emitted, 2)
}

func TestKlineStream(t *testing.T) {
	subscribed := make(chan map[string]interface{}, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]interface{}
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub

		frames := []string{
			`{"success":true,"ret_msg":"","op":"subscribe"}`,
			`{"topic":"kline.D.ETHUSDT","data":[{"start":1704067200000,"open":"1","high":"2","low":"0.5","close":"1.5","volume":"3","confirm":false}]}`,
			`{"topic":"kline.D.ETHUSDT","data":[{"start":1704067200000,"open":"1","high":"2","low":"0.5","close":"1.8","volume":"4","confirm":true}]}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	stream := NewKlineStream("ws"+strings.TrimPrefix(srv.URL, "http"), Interval1d, []string{"ETHUSDT"}, nil)
	var connected atomic.Bool
	stream.OnConnect(func(v bool) {
		if v {
			connected.Store(true)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan types.Bar, 4)
	done := make(chan error, 1)
	go func() { done <- stream.Run(ctx, out) }()

	select {
	case sub := <-subscribed:
		assert.Equal(t, "subscribe", sub["op"])
		assert.Equal(t, []interface{}{"kline.D.ETHUSDT"}, sub["args"])
	case <-time.After(5 * time.Second):
		t.Fatal("no subscription received")
	}

	select {
	case b := <-out:
		assert.Equal(t, "ETHUSDT", b.Symbol)
		assert.Equal(t, 1.8, b.Close)
	case <-time.After(5 * time.Second):
		t.Fatal("no bar received")
	}
	assert.True(t, connected.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t, MainnetLinearStream, NewClient(Config{}).StreamURL())
	assert.Equal(t, TestnetSpotStream, NewClient(Config{Category: "spot", Testnet: true}).StreamURL())
	assert.Equal(t, "linear", NewClient(Config{}).Category())
}

func TestFetchRange_PagesBackwardsAndDropsFormingBar(t *testing.T) {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var all []Kline
	for i := 0; i < 10; i++ {
		p := 100 + float64(i)
		all = append(all, Kline{StartTime: day.AddDate(0, 0, i), OpenPrice: p, HighPrice: p + 1, LowPrice: p - 1, ClosePrice: p + 0.5, Volume: 10})
	}

	var requests []time.Time
	page := func(_ context.Context, end time.Time) ([]Kline, error) {
		requests = append(requests, end)
		var out []Kline
		for i := len(all) - 1; i >= 0 && len(out) < 4; i-- {
			if !all[i].StartTime.After(end) {
				out = append(out, all[i])
			}
		}
		return out, nil
	}

	now := day.AddDate(0, 0, 9).Add(12 * time.Hour)
	bars, err := fetchRange(context.Background(), page, "ETHUSDT", Interval1d, day.AddDate(0, 0, 1), day.AddDate(0, 0, 9), now)
	require.NoError(t, err)

	require.Len(t, bars, 8)
	assert.Equal(t, day.AddDate(0, 0, 1), bars[0].Timestamp)
	assert.Equal(t, day.AddDate(0, 0, 8), bars[7].Timestamp)
	assert.Equal(t, "ETHUSDT", bars[0].Symbol)
	assert.Len(t, requests, 3)
}

func TestKlineIntervalDuration(t *testing.T) {
	assert.Equal(t, 4*time.Hour, Interval4h.Duration())
	assert.Equal(t, 24*time.Hour, Interval1d.Duration())
	assert.Equal(t, 15*time.Minute, Interval15m.Duration())
}
