package bybit

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ducminhle1904/trend-engine/internal/safety"
)

// BybitError represents a Bybit API error with additional context
type BybitError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *BybitError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("Bybit API error %d: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("Bybit API error %d: %s", e.Code, e.Message)
}

// Bybit error codes the market data client cares about
const (
	ErrCodeInvalidAPIKey     = 10003
	ErrCodeInvalidSignature  = 10004
	ErrCodeInvalidTimestamp  = 10005
	ErrCodeRateLimitExceeded = 10006
	ErrCodeInvalidParameter  = 10001
	ErrCodeSymbolNotFound    = 110009
)

// IsRetryableError reports whether an error should be retried. API errors
// are retried on rate limiting and gateway failures; transport errors are
// always retried; context errors never are.
func IsRetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, safety.ErrCircuitOpen) {
		return false
	}
	var bybitErr *BybitError
	if !errors.As(err, &bybitErr) {
		return true
	}
	switch bybitErr.Code {
	case ErrCodeRateLimitExceeded,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// IsRateLimitError checks if the error is due to rate limiting
func IsRateLimitError(err error) bool {
	var bybitErr *BybitError
	return errors.As(err, &bybitErr) && bybitErr.Code == ErrCodeRateLimitExceeded
}

// NewBybitError creates a new BybitError
func NewBybitError(code int, message string, details ...string) *BybitError {
	err := &BybitError{Code: code, Message: message}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// ParseAPIError converts a non-zero return code into a BybitError
func ParseAPIError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return NewBybitError(retCode, retMsg)
}

// WrapAPIError wraps a generic error with the failed operation
func WrapAPIError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s failed: %w", operation, err)
}
