package safety

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the guarded function while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the state of a circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// String returns the string representation of the circuit breaker state
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for a circuit breaker
type CircuitBreakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SuccessThreshold int           // half-open successes before closing
	Timeout          time.Duration // open period before a trial call
}

// CircuitBreaker opens after consecutive failures and lets a trial call
// through once the timeout has passed
type CircuitBreaker struct {
	name          string
	config        CircuitBreakerConfig
	state         CircuitBreakerState
	failures      int
	successes     int
	nextAttempt   time.Time
	now           func() time.Time
	onStateChange func(from, to CircuitBreakerState)
	mutex         sync.Mutex
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(name string, config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{name: name, config: config, now: time.Now}
}

// SetStateChangeCallback sets a callback invoked on every transition, under the breaker's lock
func (cb *CircuitBreaker) SetStateChangeCallback(callback func(from, to CircuitBreakerState)) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	cb.onStateChange = callback
}

// Call executes fn with circuit breaker protection
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.canExecute() {
		return fmt.Errorf("%s: %w", cb.name, ErrCircuitOpen)
	}
	err := fn()
	cb.record(err)
	return err
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) canExecute() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen {
		if cb.now().Before(cb.nextAttempt) {
			return false
		}
		cb.setState(StateHalfOpen)
	}
	return true
}

func (cb *CircuitBreaker) record(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if err != nil {
		cb.successes = 0
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.nextAttempt = cb.now().Add(cb.config.Timeout)
			cb.setState(StateOpen)
		}
		return
	}

	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.successes = 0
			cb.setState(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) setState(to CircuitBreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}
