package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ducminhle1904/trend-engine/internal/logger"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// KlineStream subscribes to public kline topics and emits closed bars
type KlineStream struct {
	url            string
	interval       KlineInterval
	symbols        []string
	logger         *logger.Logger
	pingInterval   time.Duration
	reconnectDelay time.Duration
	onConnect      func(bool)
}

// NewKlineStream creates a stream for symbols on the given endpoint
func NewKlineStream(url string, interval KlineInterval, symbols []string, log *logger.Logger) *KlineStream {
	if log == nil {
		log = logger.Nop()
	}
	return &KlineStream{
		url:            url,
		interval:       interval,
		symbols:        symbols,
		logger:         log,
		pingInterval:   20 * time.Second,
		reconnectDelay: 5 * time.Second,
	}
}

// OnConnect registers a callback invoked with the connection state
func (s *KlineStream) OnConnect(fn func(connected bool)) {
	s.onConnect = fn
}

func (s *KlineStream) setConnected(v bool) {
	if s.onConnect != nil {
		s.onConnect(v)
	}
}

// Topics returns the subscription topics, one per symbol
func (s *KlineStream) Topics() []string {
	topics := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		topics = append(topics, fmt.Sprintf("kline.%s.%s", s.interval, sym))
	}
	return topics
}

// Run keeps a session open, reconnecting after failures, until ctx is done.
// Closed bars are sent to out in the order received.
func (s *KlineStream) Run(ctx context.Context, out chan<- types.Bar) error {
	for {
		err := s.session(ctx, out)
		s.setConnected(false)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warning("kline stream disconnected: %v; reconnecting in %s", err, s.reconnectDelay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *KlineStream) session(ctx context.Context, out chan<- types.Bar) error {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.url, err)
	}

	var writeMu sync.Mutex
	write := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-sessionCtx.Done()
		conn.Close()
	}()

	if err := write(map[string]interface{}{"op": "subscribe", "args": s.Topics()}); err != nil {
		return fmt.Errorf("failed to send subscribe message: %w", err)
	}
	s.setConnected(true)
	s.logger.Info("subscribed to %s", strings.Join(s.Topics(), ", "))

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sessionCtx.Done():
				return
			case <-ticker.C:
				if err := write(map[string]string{"op": "ping"}); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		bars, err := ParseKlineMessage(message)
		if err != nil {
			s.logger.Warning("dropping kline message: %v", err)
			continue
		}
		for _, b := range bars {
			select {
			case out <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

type klineMessage struct {
	Topic   string `json:"topic"`
	Op      string `json:"op"`
	Success *bool  `json:"success"`
	RetMsg  string `json:"ret_msg"`
	Data    []struct {
		Start   int64  `json:"start"`
		Open    string `json:"open"`
		High    string `json:"high"`
		Low     string `json:"low"`
		Close   string `json:"close"`
		Volume  string `json:"volume"`
		Confirm bool   `json:"confirm"`
	} `json:"data"`
}

// ParseKlineMessage extracts confirmed (closed) bars from a kline push.
// Control frames (subscribe acks, pongs) yield no bars; a rejected
// subscription is an error.
func ParseKlineMessage(message []byte) ([]types.Bar, error) {
	var msg klineMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return nil, fmt.Errorf("invalid kline message: %w", err)
	}
	if msg.Op != "" {
		if msg.Success != nil && !*msg.Success {
			return nil, fmt.Errorf("%s rejected: %s", msg.Op, msg.RetMsg)
		}
		return nil, nil
	}
	if !strings.HasPrefix(msg.Topic, "kline.") {
		return nil, nil
	}
	parts := strings.Split(msg.Topic, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("unexpected topic %q", msg.Topic)
	}
	symbol := parts[2]

	var bars []types.Bar
	for _, d := range msg.Data {
		if !d.Confirm {
			continue
		}
		bars = append(bars, types.Bar{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(d.Start).UTC(),
			Open:      parseFloat64(d.Open),
			High:      parseFloat64(d.High),
			Low:       parseFloat64(d.Low),
			Close:     parseFloat64(d.Close),
			Volume:    parseFloat64(d.Volume),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}
