// Package telemetry counts entry decisions per actor and merges them at shutdown.
package telemetry

import (
	"sort"
	"sync"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// FilterStats is owned by a single actor and is not safe for concurrent use
type FilterStats struct {
	symbol     string
	totalBars  int
	evaluated  int
	entries    int
	undersized int
	byReason   map[string]int
}

// NewFilterStats creates empty counters for one instrument
func NewFilterStats(symbol string) *FilterStats {
	return &FilterStats{symbol: symbol, byReason: make(map[string]int)}
}

// Observe counts one bar seen by the actor, whether or not the chain ran on it
func (s *FilterStats) Observe() {
	s.totalBars++
}

// Record counts one entry decision under its reason. pass means an entry
// intent was emitted, so it is only recorded once sizing succeeded.
func (s *FilterStats) Record(reason string, pass bool) {
	s.evaluated++
	s.byReason[reason]++
	if pass {
		s.entries++
	}
}

// RecordUndersized counts an entry signal the sizer could not fill. It is
// neither an entry nor a filter rejection.
func (s *FilterStats) RecordUndersized() {
	s.evaluated++
	s.undersized++
}

// TotalBars returns how many bars were seen
func (s *FilterStats) TotalBars() int { return s.totalBars }

// Evaluated returns how many bars reached an entry decision
func (s *FilterStats) Evaluated() int { return s.evaluated }

// Entries returns how many entry intents were emitted
func (s *FilterStats) Entries() int { return s.entries }

// Count returns the count for one reason
func (s *FilterStats) Count(reason string) int { return s.byReason[reason] }

// AllRejected is true when bars were evaluated and none became an entry
func (s *FilterStats) AllRejected() bool {
	return s.evaluated > 0 && s.entries == 0
}

// Report snapshots the counters
func (s *FilterStats) Report() types.FilterStatsReport {
	counts := make(map[string]int, len(s.byReason))
	for k, v := range s.byReason {
		counts[k] = v
	}
	return types.FilterStatsReport{
		Symbol:         s.symbol,
		TotalBars:      s.totalBars,
		Evaluated:      s.evaluated,
		Entries:        s.entries,
		Undersized:     s.undersized,
		CountsByReason: counts,
	}
}

// Aggregator collects actor reports; safe for concurrent use
type Aggregator struct {
	mu      sync.Mutex
	reports map[string]types.FilterStatsReport
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{reports: make(map[string]types.FilterStatsReport)}
}

// Merge adds a report; a repeated symbol accumulates
func (a *Aggregator) Merge(r types.FilterStatsReport) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cur, ok := a.reports[r.Symbol]
	if !ok {
		cur = types.FilterStatsReport{Symbol: r.Symbol, CountsByReason: make(map[string]int)}
	}
	cur.TotalBars += r.TotalBars
	cur.Evaluated += r.Evaluated
	cur.Entries += r.Entries
	cur.Undersized += r.Undersized
	for k, v := range r.CountsByReason {
		cur.CountsByReason[k] += v
	}
	a.reports[r.Symbol] = cur
}

// Reports returns per-symbol reports sorted by symbol
func (a *Aggregator) Reports() []types.FilterStatsReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]types.FilterStatsReport, 0, len(a.reports))
	for _, r := range a.reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Totals sums every report into one, keyed by reason
func (a *Aggregator) Totals() types.FilterStatsReport {
	total := types.FilterStatsReport{Symbol: "ALL", CountsByReason: make(map[string]int)}
	for _, r := range a.Reports() {
		total.TotalBars += r.TotalBars
		total.Evaluated += r.Evaluated
		total.Entries += r.Entries
		total.Undersized += r.Undersized
		for k, v := range r.CountsByReason {
			total.CountsByReason[k] += v
		}
	}
	return total
}
