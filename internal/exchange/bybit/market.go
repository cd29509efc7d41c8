package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// KlineInterval represents the time interval for kline data
type KlineInterval string

const (
	Interval1m  KlineInterval = "1"
	Interval3m  KlineInterval = "3"
	Interval5m  KlineInterval = "5"
	Interval15m KlineInterval = "15"
	Interval30m KlineInterval = "30"
	Interval1h  KlineInterval = "60"
	Interval2h  KlineInterval = "120"
	Interval4h  KlineInterval = "240"
	Interval6h  KlineInterval = "360"
	Interval12h KlineInterval = "720"
	Interval1d  KlineInterval = "D"
	Interval1w  KlineInterval = "W"
)

var intervalNames = map[string]KlineInterval{
	"1m": Interval1m, "3m": Interval3m, "5m": Interval5m, "15m": Interval15m, "30m": Interval30m,
	"1h": Interval1h, "2h": Interval2h, "4h": Interval4h, "6h": Interval6h, "12h": Interval12h,
	"1d": Interval1d, "1w": Interval1w,
}

// ParseInterval maps "5m", "4h", "1d" style intervals to Bybit interval codes
func ParseInterval(s string) (KlineInterval, error) {
	if iv, ok := intervalNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return iv, nil
	}
	return "", fmt.Errorf("unsupported interval %q", s)
}

// Kline represents a single kline/candlestick data point
type Kline struct {
	StartTime  time.Time
	OpenPrice  float64
	HighPrice  float64
	LowPrice   float64
	ClosePrice float64
	Volume     float64
	Turnover   float64
}

// Bar converts the kline into an engine bar
func (k Kline) Bar(symbol string) types.Bar {
	return types.Bar{
		Symbol:    symbol,
		Timestamp: k.StartTime,
		Open:      k.OpenPrice,
		High:      k.HighPrice,
		Low:       k.LowPrice,
		Close:     k.ClosePrice,
		Volume:    k.Volume,
	}
}

// KlineParams holds parameters for fetching kline data
type KlineParams struct {
	Category string        // "spot", "linear", "inverse"
	Symbol   string        // Trading pair symbol (e.g., "BTCUSDT")
	Interval KlineInterval // Time interval
	Start    *time.Time    // Start time (optional)
	End      *time.Time    // End time (optional)
	Limit    int           // Number of records to return (max 1000, default 200)
}

// GetKlines fetches kline/candlestick data from Bybit, newest first
func (c *Client) GetKlines(ctx context.Context, params KlineParams) ([]Kline, error) {
	if params.Category == "" {
		params.Category = c.category
	}
	if params.Limit == 0 {
		params.Limit = 200
	}
	if params.Limit > 1000 {
		params.Limit = 1000
	}

	reqParams := map[string]interface{}{
		"category": params.Category,
		"symbol":   params.Symbol,
		"interval": string(params.Interval),
		"limit":    params.Limit,
	}
	if params.Start != nil {
		reqParams["start"] = params.Start.UnixMilli()
	}
	if params.End != nil {
		reqParams["end"] = params.End.UnixMilli()
	}

	var klines []Kline
	err := c.call(ctx, "GetKlines", func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(reqParams).GetMarketKline(ctx)
		if err != nil {
			return err
		}
		klines, err = parseKlineResponse(result)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get klines for %s: %w", params.Symbol, err)
	}
	return klines, nil
}

// FetchBars returns up to limit closed bars in chronological order. The
// newest kline is still forming and is dropped.
func (c *Client) FetchBars(ctx context.Context, symbol string, interval KlineInterval, limit int) ([]types.Bar, error) {
	klines, err := c.GetKlines(ctx, KlineParams{Symbol: symbol, Interval: interval, Limit: limit + 1})
	if err != nil {
		return nil, err
	}
	return closedBars(symbol, klines), nil
}

func closedBars(symbol string, klines []Kline) []types.Bar {
	sort.Slice(klines, func(i, j int) bool { return klines[i].StartTime.Before(klines[j].StartTime) })
	if len(klines) > 0 {
		klines = klines[:len(klines)-1]
	}
	bars := make([]types.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, k.Bar(symbol))
	}
	return bars
}

// GetFundingRate gets the current funding rate and next funding time for a derivatives symbol
func (c *Client) GetFundingRate(ctx context.Context, symbol string) (float64, time.Time, error) {
	params := map[string]interface{}{
		"category": c.category,
		"symbol":   symbol,
	}

	var rate float64
	var next time.Time
	err := c.call(ctx, "GetFundingRate", func() error {
		result, err := c.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
		if err != nil {
			return err
		}
		rate, next, err = parseFundingRateResponse(result)
		return err
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to get funding rate for %s: %w", symbol, err)
	}
	return rate, next, nil
}

// decodeResult checks the return code and decodes the result payload into v
func decodeResult(response interface{}, v interface{}) error {
	serverResp, ok := response.(*bybit_api.ServerResponse)
	if !ok {
		return fmt.Errorf("invalid response type %T", response)
	}
	if err := ParseAPIError(serverResp.RetCode, serverResp.RetMsg); err != nil {
		return err
	}

	resultBytes, err := json.Marshal(serverResp.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, v); err != nil {
		return fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return nil
}

// parseKlineResponse parses the API response into Kline structs
func parseKlineResponse(response interface{}) ([]Kline, error) {
	var klineResult struct {
		Symbol   string     `json:"symbol"`
		Category string     `json:"category"`
		List     [][]string `json:"list"`
	}
	if err := decodeResult(response, &klineResult); err != nil {
		return nil, err
	}

	klines := make([]Kline, 0, len(klineResult.List))
	for _, item := range klineResult.List {
		if len(item) < 7 {
			continue
		}
		// [startTime, openPrice, highPrice, lowPrice, closePrice, volume, turnover]
		klines = append(klines, Kline{
			StartTime:  parseTimestamp(item[0]),
			OpenPrice:  parseFloat64(item[1]),
			HighPrice:  parseFloat64(item[2]),
			LowPrice:   parseFloat64(item[3]),
			ClosePrice: parseFloat64(item[4]),
			Volume:     parseFloat64(item[5]),
			Turnover:   parseFloat64(item[6]),
		})
	}
	return klines, nil
}

// parseFundingRateResponse parses funding rate from a ticker response
func parseFundingRateResponse(response interface{}) (float64, time.Time, error) {
	var tickerResult struct {
		Category string `json:"category"`
		List     []struct {
			Symbol          string `json:"symbol"`
			FundingRate     string `json:"fundingRate"`
			NextFundingTime string `json:"nextFundingTime"`
		} `json:"list"`
	}
	if err := decodeResult(response, &tickerResult); err != nil {
		return 0, time.Time{}, err
	}
	if len(tickerResult.List) == 0 {
		return 0, time.Time{}, NewBybitError(ErrCodeSymbolNotFound, "no ticker data found")
	}
	ticker := tickerResult.List[0]
	if ticker.FundingRate == "" {
		return 0, time.Time{}, NewBybitError(ErrCodeInvalidParameter, "ticker has no funding rate", ticker.Symbol)
	}
	return parseFloat64(ticker.FundingRate), parseTimestamp(ticker.NextFundingTime), nil
}

func parseFloat64(s string) float64 {
	if s == "" {
		return 0
	}
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

// parseTimestamp converts a milliseconds timestamp to UTC time
func parseTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	msec, _ := strconv.ParseInt(ts, 10, 64)
	return time.UnixMilli(msec).UTC()
}
