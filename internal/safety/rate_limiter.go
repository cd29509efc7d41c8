// Package safety guards calls to external services: a token bucket bounds the
// request rate and a circuit breaker fails fast while a service keeps failing.
package safety

import (
	"context"
	"math"
	"sync"
	"time"
)

// RateLimiter implements token bucket rate limiting
type RateLimiter struct {
	name       string
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
	mutex      sync.Mutex
}

// NewRateLimiter creates a full bucket of capacity tokens refilled at
// refillRate tokens per second
func NewRateLimiter(name string, capacity int, refillRate float64) *RateLimiter {
	if capacity < 1 {
		capacity = 1
	}
	if refillRate <= 0 {
		refillRate = 1
	}
	rl := &RateLimiter{
		name:       name,
		capacity:   float64(capacity),
		tokens:     float64(capacity),
		refillRate: refillRate,
		now:        time.Now,
	}
	rl.lastRefill = rl.now()
	return rl
}

// Allow takes one token if available
func (rl *RateLimiter) Allow() bool {
	_, ok := rl.reserve()
	return ok
}

// Wait blocks until a token is available or ctx is done
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait, ok := rl.reserve()
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve takes a token, or reports how long until one is available
func (rl *RateLimiter) reserve() (time.Duration, bool) {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.lastRefill); elapsed > 0 {
		rl.tokens = math.Min(rl.capacity, rl.tokens+elapsed.Seconds()*rl.refillRate)
		rl.lastRefill = now
	}
	if rl.tokens >= 1 {
		rl.tokens--
		return 0, true
	}
	missing := 1 - rl.tokens
	return time.Duration(missing / rl.refillRate * float64(time.Second)), false
}

// RateLimiterStats holds statistics about a rate limiter
type RateLimiterStats struct {
	Name       string
	Capacity   int
	Tokens     float64
	RefillRate float64
}

// GetStats returns current statistics about the rate limiter
func (rl *RateLimiter) GetStats() RateLimiterStats {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()
	return RateLimiterStats{
		Name:       rl.name,
		Capacity:   int(rl.capacity),
		Tokens:     rl.tokens,
		RefillRate: rl.refillRate,
	}
}
