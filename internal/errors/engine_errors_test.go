package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMalformed = errors.New("high below low")

func TestFatalWrapping(t *testing.T) {
	err := NewFatalError("actor", "HandleBar", errMalformed)
	wrapped := fmt.Errorf("ETHUSDT: %w", err)

	assert.True(t, IsFatal(wrapped))
	assert.True(t, errors.Is(wrapped, errMalformed))

	var ee *EngineError
	require.True(t, errors.As(wrapped, &ee))
	assert.Equal(t, ErrorCategoryFatal, ee.Category)
	assert.Equal(t, "[FATAL:actor] HandleBar: operation failed: high below low", ee.Error())
}

func TestNonFatalCategories(t *testing.T) {
	assert.False(t, IsFatal(NewSizingError("sizer", "Size", errors.New("undersized"))))
	assert.False(t, IsFatal(NewDataError("csv", "Load", errors.New("bad row"))))
	assert.False(t, IsFatal(errors.New("plain")))
	assert.True(t, IsFatal(NewConfigurationError("config", "Validate", "bad risk")))
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		msg  string
		want ErrorCategory
	}{
		{"dial tcp: connection refused", ErrorCategoryNetwork},
		{"context deadline exceeded", ErrorCategoryTimeout},
		{"429 too many requests", ErrorCategoryRateLimit},
		{"unexpected kline payload", ErrorCategoryData},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			got := CategorizeError(errors.New(tt.msg), "bybit", "GetKlines")
			assert.Equal(t, tt.want, got.Category)
		})
	}

	assert.True(t, CategorizeError(errors.New("dial tcp"), "ws", "Dial").IsRetryable())
	assert.Nil(t, CategorizeError(nil, "x", "y"))
}

func TestWithContext(t *testing.T) {
	err := NewEngineError(ErrorCategoryData, "universe", "Load", "overlap").WithContext("version", "v2")
	assert.Equal(t, "v2", err.Context["version"])
}
