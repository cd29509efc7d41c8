// Package notifications sends operator alerts for live sessions.
package notifications

import "context"

// Alert levels
const (
	LevelInfo    = "info"
	LevelWarning = "warning"
	LevelError   = "error"
	LevelSuccess = "success"
)

// Notifier defines the interface for notification services
type Notifier interface {
	// SendAlert sends an alert with the specified level and message
	SendAlert(ctx context.Context, level, message string) error
}
