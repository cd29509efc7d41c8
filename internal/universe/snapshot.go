// Package universe decides which instruments are eligible to trade. Eligibility
// comes from precomputed, versioned snapshots that only change at window
// boundaries.
package universe

import (
	"fmt"
	"sort"
	"time"
)

// Snapshot is the eligible-instrument set for one time window [Start, End).
// A zero End means the window never closes.
type Snapshot struct {
	Version string    `json:"version"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Symbols []string  `json:"symbols"`

	set map[string]struct{}
}

// NewSnapshot builds a snapshot with its membership index
func NewSnapshot(version string, start, end time.Time, symbols []string) Snapshot {
	s := Snapshot{Version: version, Start: start, End: end, Symbols: append([]string(nil), symbols...)}
	s.index()
	return s
}

func (s *Snapshot) index() {
	s.set = make(map[string]struct{}, len(s.Symbols))
	for _, sym := range s.Symbols {
		s.set[sym] = struct{}{}
	}
}

// Contains reports set membership
func (s Snapshot) Contains(symbol string) bool {
	if s.set == nil {
		for _, sym := range s.Symbols {
			if sym == symbol {
				return true
			}
		}
		return false
	}
	_, ok := s.set[symbol]
	return ok
}

// covers reports whether ts falls inside [Start, End)
func (s Snapshot) covers(ts time.Time) bool {
	if ts.Before(s.Start) {
		return false
	}
	return s.End.IsZero() || ts.Before(s.End)
}

// Prepare sorts snapshots by start, builds their indexes and rejects overlaps
func Prepare(snaps []Snapshot) ([]Snapshot, error) {
	out := make([]Snapshot, len(snaps))
	copy(out, snaps)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })

	for i := range out {
		if !out[i].End.IsZero() && !out[i].End.After(out[i].Start) {
			return nil, fmt.Errorf("universe window %d (%s): end %s is not after start %s",
				i, out[i].Version, out[i].End.Format(time.RFC3339), out[i].Start.Format(time.RFC3339))
		}
		if i > 0 {
			prev := out[i-1]
			if prev.End.IsZero() || out[i].Start.Before(prev.End) {
				return nil, fmt.Errorf("universe windows %s and %s overlap", prev.Version, out[i].Version)
			}
		}
		out[i].index()
	}
	return out, nil
}
