package bybit

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// Duration returns the length of one kline
func (iv KlineInterval) Duration() time.Duration {
	switch iv {
	case Interval1d:
		return 24 * time.Hour
	case Interval1w:
		return 7 * 24 * time.Hour
	}
	minutes, err := strconv.Atoi(string(iv))
	if err != nil {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}

type klinePage func(ctx context.Context, end time.Time) ([]Kline, error)

// FetchRange downloads every closed bar starting in [start, end], oldest first.
// Pages are requested backwards from end since Bybit returns newest first.
func (c *Client) FetchRange(ctx context.Context, symbol string, interval KlineInterval, start, end time.Time) ([]types.Bar, error) {
	page := func(ctx context.Context, pageEnd time.Time) ([]Kline, error) {
		return c.GetKlines(ctx, KlineParams{Symbol: symbol, Interval: interval, End: &pageEnd, Limit: 1000})
	}
	return fetchRange(ctx, page, symbol, interval, start, end, time.Now())
}

func fetchRange(ctx context.Context, page klinePage, symbol string, interval KlineInterval,
	start, end, now time.Time) ([]types.Bar, error) {

	byStart := make(map[int64]Kline)
	cursor := end
	for !cursor.Before(start) {
		klines, err := page(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if len(klines) == 0 {
			break
		}

		oldest := klines[0].StartTime
		for _, k := range klines {
			if k.StartTime.Before(oldest) {
				oldest = k.StartTime
			}
			if k.StartTime.Before(start) || k.StartTime.After(end) {
				continue
			}
			// still forming
			if k.StartTime.Add(interval.Duration()).After(now) {
				continue
			}
			byStart[k.StartTime.UnixMilli()] = k
		}

		next := oldest.Add(-time.Millisecond)
		if !next.Before(cursor) {
			break
		}
		cursor = next
	}

	bars := make([]types.Bar, 0, len(byStart))
	for _, k := range byStart {
		bars = append(bars, k.Bar(symbol))
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
	return bars, nil
}
