package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports feed freshness and actor failures over HTTP
type HealthChecker struct {
	mu           sync.RWMutex
	lastBar      time.Time
	lastRegime   string
	isConnected  bool
	activeActors int
	errors       []string
	staleAfter   time.Duration
}

type HealthStatus struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	LastBar      time.Time `json:"last_bar"`
	Regime       string    `json:"regime"`
	IsConnected  bool      `json:"is_connected"`
	ActiveActors int       `json:"active_actors"`
	Uptime       string    `json:"uptime"`
	Errors       []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a checker that degrades when no bar arrived within staleAfter
func NewHealthChecker(staleAfter time.Duration) *HealthChecker {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &HealthChecker{
		errors:     make([]string, 0),
		staleAfter: staleAfter,
	}
}

// RecordBar marks feed activity
func (h *HealthChecker) RecordBar(ts time.Time, regime string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastBar = ts
	h.lastRegime = regime
}

// SetConnected records the market data connection state
func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

// SetActiveActors records how many actors are running
func (h *HealthChecker) SetActiveActors(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeActors = n
}

// RecordFailure keeps an actor failure message for the health report
func (h *HealthChecker) RecordFailure(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
}

// Status builds the current health report
func (h *HealthChecker) Status(now time.Time) HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	if !h.isConnected || now.Sub(h.lastBar) > h.staleAfter {
		status = "degraded"
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
	}

	return HealthStatus{
		Status:       status,
		Timestamp:    now,
		LastBar:      h.lastBar,
		Regime:       h.lastRegime,
		IsConnected:  h.isConnected,
		ActiveActors: h.activeActors,
		Uptime:       now.Sub(startTime).String(),
		Errors:       append([]string(nil), h.errors...),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health := h.Status(time.Now())

	w.Header().Set("Content-Type", "application/json")
	switch health.Status {
	case "degraded":
		w.WriteHeader(http.StatusServiceUnavailable)
	case "unhealthy":
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(health)
}
