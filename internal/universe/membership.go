package universe

import "time"

// Membership is an actor-local cursor over shared, immutable snapshots.
// The cursor only moves forward, so membership can change only when a bar
// crosses the current window's end.
type Membership struct {
	snapshots []Snapshot
	idx       int
}

// NewMembership creates a cursor over prepared snapshots (see Prepare)
func NewMembership(snapshots []Snapshot) *Membership {
	return &Membership{snapshots: snapshots}
}

// NewStaticMembership admits the given symbols forever
func NewStaticMembership(symbols []string) *Membership {
	return NewMembership([]Snapshot{NewSnapshot("static", time.Time{}, time.Time{}, symbols)})
}

// IsActive advances the window if ts crossed the rebalance boundary, then checks membership.
// Timestamps before the first window or inside a gap are inactive.
func (m *Membership) IsActive(symbol string, ts time.Time) bool {
	m.advance(ts)
	if m.idx >= len(m.snapshots) {
		return false
	}
	current := m.snapshots[m.idx]
	if !current.covers(ts) {
		return false
	}
	return current.Contains(symbol)
}

func (m *Membership) advance(ts time.Time) {
	for m.idx < len(m.snapshots) {
		end := m.snapshots[m.idx].End
		if end.IsZero() || ts.Before(end) {
			return
		}
		m.idx++
	}
}

// Current returns the active window, if any
func (m *Membership) Current() (Snapshot, bool) {
	if m.idx >= len(m.snapshots) {
		return Snapshot{}, false
	}
	return m.snapshots[m.idx], true
}
