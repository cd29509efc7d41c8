package bybit

import (
	"context"
	"math"
	"math/rand"
	"time"

	engerrors "github.com/ducminhle1904/trend-engine/internal/errors"
)

// RetryConfig holds configuration for retry mechanisms
type RetryConfig struct {
	MaxRetries    int           `json:"maxRetries"`
	InitialDelay  time.Duration `json:"initialDelay"`
	MaxDelay      time.Duration `json:"maxDelay"`
	BackoffFactor float64       `json:"backoffFactor"`
	JitterEnabled bool          `json:"jitterEnabled"`
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2.0,
		JitterEnabled: true,
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. Exhaustion is reported as a NETWORK engine error.
func Retry(ctx context.Context, operation string, config RetryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == config.MaxRetries || !IsRetryableError(err) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(calculateDelay(attempt, config)):
		}
	}

	if IsRetryableError(lastErr) {
		return engerrors.NewNetworkError("bybit", operation, lastErr)
	}
	return WrapAPIError(operation, lastErr)
}

// calculateDelay calculates the delay for a retry attempt with exponential backoff
func calculateDelay(attempt int, config RetryConfig) time.Duration {
	delay := time.Duration(float64(config.InitialDelay) * math.Pow(config.BackoffFactor, float64(attempt)))
	if delay > config.MaxDelay {
		delay = config.MaxDelay
	}
	if config.JitterEnabled {
		delay += time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
	}
	return delay
}
