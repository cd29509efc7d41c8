// Package strength compares an instrument's performance against a benchmark
// over a short and a long horizon.
package strength

import (
	"fmt"
	"sort"
	"time"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// Config holds relative-strength horizons and weights
type Config struct {
	ShortHorizon types.Duration `json:"short_horizon"` // e.g. "480h" (20 daily bars)
	LongHorizon  types.Duration `json:"long_horizon"`  // e.g. "1440h" (60 daily bars)
	ShortWeight  float64        `json:"short_weight"`
	LongWeight   float64        `json:"long_weight"`
	MaxSamples   int            `json:"max_samples"`
}

// DefaultConfig returns 20/60 day horizons weighted 0.4/0.6
func DefaultConfig() Config {
	return Config{
		ShortHorizon: types.Duration(20 * 24 * time.Hour),
		LongHorizon:  types.Duration(60 * 24 * time.Hour),
		ShortWeight:  0.4,
		LongWeight:   0.6,
		MaxSamples:   4096,
	}
}

// Validate validates the relative-strength configuration
func (c Config) Validate() error {
	if c.ShortHorizon <= 0 || c.LongHorizon <= 0 {
		return fmt.Errorf("relative strength horizons must be positive")
	}
	if c.ShortHorizon > c.LongHorizon {
		return fmt.Errorf("short horizon (%s) must not exceed long horizon (%s)", c.ShortHorizon.Std(), c.LongHorizon.Std())
	}
	if c.ShortWeight < 0 || c.LongWeight < 0 || c.ShortWeight+c.LongWeight == 0 {
		return fmt.Errorf("relative strength weights must be non-negative and not both zero")
	}
	if c.MaxSamples < 2 {
		return fmt.Errorf("max samples must be at least 2, got %d", c.MaxSamples)
	}
	return nil
}

type sample struct {
	ts    time.Time
	price float64
}

// series is a bounded, timestamp-ordered price history
type series struct {
	samples    []sample
	keep       time.Duration
	maxSamples int
}

func (s *series) add(ts time.Time, price float64) {
	if n := len(s.samples); n > 0 {
		last := s.samples[n-1].ts
		if ts.Equal(last) {
			s.samples[n-1].price = price
			return
		}
		if ts.Before(last) {
			return
		}
	}
	s.samples = append(s.samples, sample{ts: ts, price: price})

	// keep exactly one sample at or before the long-horizon cutoff
	cutoff := ts.Add(-s.keep)
	drop := 0
	for drop+1 < len(s.samples) && !s.samples[drop+1].ts.After(cutoff) {
		drop++
	}
	if over := len(s.samples) - drop - s.maxSamples; over > 0 {
		drop += over
	}
	if drop > 0 {
		s.samples = append(s.samples[:0], s.samples[drop:]...)
	}
}

func (s *series) latest() (time.Time, bool) {
	if len(s.samples) == 0 {
		return time.Time{}, false
	}
	return s.samples[len(s.samples)-1].ts, true
}

func (s *series) spans(h time.Duration) bool {
	n := len(s.samples)
	return n >= 2 && s.samples[n-1].ts.Sub(s.samples[0].ts) >= h
}

// horizonReturn uses the earliest and latest samples inside [latest-h, latest]
func (s *series) horizonReturn(h time.Duration) (float64, bool) {
	n := len(s.samples)
	if n < 2 {
		return 0, false
	}
	latest := s.samples[n-1]
	cutoff := latest.ts.Add(-h)
	i := sort.Search(n, func(i int) bool { return !s.samples[i].ts.Before(cutoff) })
	if i >= n-1 || s.samples[i].price <= 0 {
		return 0, false
	}
	return latest.price/s.samples[i].price - 1, true
}

// Tracker holds symbol and benchmark histories for one actor
type Tracker struct {
	cfg       Config
	symbol    series
	benchmark series
}

// NewTracker creates a relative-strength tracker
func NewTracker(cfg Config) *Tracker {
	keep := cfg.LongHorizon.Std()
	return &Tracker{
		cfg:       cfg,
		symbol:    series{keep: keep, maxSamples: cfg.MaxSamples},
		benchmark: series{keep: keep, maxSamples: cfg.MaxSamples},
	}
}

// UpdateSymbol records an instrument close
func (t *Tracker) UpdateSymbol(ts time.Time, price float64) {
	t.symbol.add(ts, price)
}

// UpdateBenchmark records a benchmark close
func (t *Tracker) UpdateBenchmark(ts time.Time, price float64) {
	t.benchmark.add(ts, price)
}

// RS returns symbol return minus benchmark return over horizon h
func (t *Tracker) RS(h time.Duration) (float64, bool) {
	sym, ok := t.symbol.horizonReturn(h)
	if !ok {
		return 0, false
	}
	bench, ok := t.benchmark.horizonReturn(h)
	if !ok {
		return 0, false
	}
	return sym - bench, true
}

// Combined returns w_short*RS(short) + w_long*RS(long). It is undefined until
// both histories span the long horizon, and whenever the latest benchmark
// sample is not from the same timestamp as the latest symbol sample.
func (t *Tracker) Combined() (float64, bool) {
	if !t.Aligned() {
		return 0, false
	}
	long := t.cfg.LongHorizon.Std()
	if !t.symbol.spans(long) || !t.benchmark.spans(long) {
		return 0, false
	}
	rsShort, ok := t.RS(t.cfg.ShortHorizon.Std())
	if !ok {
		return 0, false
	}
	rsLong, ok := t.RS(long)
	if !ok {
		return 0, false
	}
	return t.cfg.ShortWeight*rsShort + t.cfg.LongWeight*rsLong, true
}

// Aligned reports whether both histories end at the same timestamp
func (t *Tracker) Aligned() bool {
	sym, ok := t.symbol.latest()
	if !ok {
		return false
	}
	bench, ok := t.benchmark.latest()
	return ok && bench.Equal(sym)
}

// IsStrong reports combined RS > 0; defined is false while RS is undefined
func (t *Tracker) IsStrong() (strong bool, defined bool) {
	rs, ok := t.Combined()
	if !ok {
		return false, false
	}
	return rs > 0, true
}
