// Package bybit reads Bybit public market data: klines for indicator
// warm-up, a kline WebSocket stream for live bars and funding rates as the
// cost-of-carry feed.
package bybit

import (
	"context"
	"time"

	bybit_api "github.com/bybit-exchange/bybit.go.api"

	"github.com/ducminhle1904/trend-engine/internal/safety"
)

// Public WebSocket endpoints for derivatives market data
const (
	MainnetLinearStream = "wss://stream.bybit.com/v5/public/linear"
	TestnetLinearStream = "wss://stream-testnet.bybit.com/v5/public/linear"
	MainnetSpotStream   = "wss://stream.bybit.com/v5/public/spot"
	TestnetSpotStream   = "wss://stream-testnet.bybit.com/v5/public/spot"
)

// Client wraps the Bybit API client
type Client struct {
	httpClient *bybit_api.Client
	category   string
	testnet    bool
	retry      RetryConfig
	limiter    *safety.RateLimiter
	breaker    *safety.CircuitBreaker
}

// Config holds the configuration for the Bybit client. Market data endpoints
// work without credentials.
type Config struct {
	APIKey    string
	APISecret string
	Category  string // "linear" or "spot"
	Testnet   bool
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	baseURL := bybit_api.MAINNET
	if config.Testnet {
		baseURL = bybit_api.TESTNET
	}
	if config.Category == "" {
		config.Category = "linear"
	}

	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		httpClient: httpClient,
		category:   config.Category,
		testnet:    config.Testnet,
		retry:      DefaultRetryConfig(),
		limiter:    safety.NewRateLimiter("bybit-rest", 10, 10),
		breaker: safety.NewCircuitBreaker("bybit-rest", safety.CircuitBreakerConfig{
			FailureThreshold: 5,
			Timeout:          30 * time.Second,
		}),
	}
}

// call runs one REST request under the rate limiter and circuit breaker,
// retrying transient failures. Only transient failures count against the breaker.
func (c *Client) call(ctx context.Context, operation string, fn func() error) error {
	return Retry(ctx, operation, c.retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		var apiErr error
		err := c.breaker.Call(func() error {
			err := fn()
			if err != nil && !IsRetryableError(err) {
				apiErr = err
				return nil
			}
			return err
		})
		if apiErr != nil {
			return apiErr
		}
		return err
	})
}

// Category returns the product category requested by default
func (c *Client) Category() string {
	return c.category
}

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.testnet {
		return "testnet"
	}
	return "mainnet"
}

// StreamURL returns the public kline stream endpoint for the client's category and environment
func (c *Client) StreamURL() string {
	switch {
	case c.category == "spot" && c.testnet:
		return TestnetSpotStream
	case c.category == "spot":
		return MainnetSpotStream
	case c.testnet:
		return TestnetLinearStream
	default:
		return MainnetLinearStream
	}
}
