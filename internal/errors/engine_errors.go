package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory classifies engine errors
type ErrorCategory string

const (
	// Stops the owning actor
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Skipped and counted, never stops an actor
	ErrorCategoryWarmup ErrorCategory = "WARMUP"
	ErrorCategorySizing ErrorCategory = "SIZING"
	ErrorCategoryData   ErrorCategory = "DATA"

	// Collaborator I/O, usually retried
	ErrorCategoryNetwork   ErrorCategory = "NETWORK"
	ErrorCategoryTimeout   ErrorCategory = "TIMEOUT"
	ErrorCategoryRateLimit ErrorCategory = "RATE_LIMIT"
)

// EngineError is a categorized error with context
type EngineError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
	if e.Underlying != nil {
		fmt.Fprintf(&b, ": %v", e.Underlying)
	}
	return b.String()
}

// Unwrap returns the underlying error for error unwrapping
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether the error must stop the actor that raised it
func (e *EngineError) IsFatal() bool {
	return e.Category == ErrorCategoryFatal || e.Category == ErrorCategoryConfiguration
}

// IsRetryable reports whether a collaborator call may be retried
func (e *EngineError) IsRetryable() bool {
	switch e.Category {
	case ErrorCategoryNetwork, ErrorCategoryTimeout, ErrorCategoryRateLimit:
		return true
	default:
		return false
	}
}

// WithContext adds context information to the error
func (e *EngineError) WithContext(key string, value interface{}) *EngineError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewEngineError creates a new categorized error
func NewEngineError(category ErrorCategory, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with engine error context
func WrapError(err error, category ErrorCategory, component, operation string) *EngineError {
	if err == nil {
		return nil
	}
	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
	}
}

// IsFatal reports whether any EngineError in err's chain is fatal
func IsFatal(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.IsFatal()
	}
	return false
}

// CategorizeError classifies a collaborator error by its message
func CategorizeError(err error, component, operation string) *EngineError {
	if err == nil {
		return nil
	}
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "context deadline exceeded"):
		return WrapError(err, ErrorCategoryTimeout, component, operation)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return WrapError(err, ErrorCategoryRateLimit, component, operation)
	case strings.Contains(msg, "connection") || strings.Contains(msg, "network") ||
		strings.Contains(msg, "dns") || strings.Contains(msg, "dial"):
		return WrapError(err, ErrorCategoryNetwork, component, operation)
	default:
		return WrapError(err, ErrorCategoryData, component, operation)
	}
}

// Common error constructors
func NewFatalError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryFatal, component, operation)
}

func NewDataError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryData, component, operation)
}

func NewSizingError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategorySizing, component, operation)
}

func NewConfigurationError(component, operation, message string) *EngineError {
	return NewEngineError(ErrorCategoryConfiguration, component, operation, message)
}

func NewNetworkError(component, operation string, err error) *EngineError {
	return WrapError(err, ErrorCategoryNetwork, component, operation)
}
