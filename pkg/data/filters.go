package data

import (
	"fmt"
	"sort"
	"time"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// DefaultDataFilter implements DataFilter for common filtering operations
type DefaultDataFilter struct{}

// NewDefaultDataFilter creates a new default data filter
func NewDefaultDataFilter() *DefaultDataFilter {
	return &DefaultDataFilter{}
}

// FilterByPeriod keeps bars within period of the latest bar
func (f *DefaultDataFilter) FilterByPeriod(data []types.Bar, period time.Duration) []types.Bar {
	if period <= 0 || len(data) == 0 {
		return data
	}
	cutoff := data[len(data)-1].Timestamp.Add(-period)
	idx := sort.Search(len(data), func(i int) bool { return !data[i].Timestamp.Before(cutoff) })
	return data[idx:]
}

// FilterByDateRange keeps bars inside [start, end]; a zero bound is open
func (f *DefaultDataFilter) FilterByDateRange(data []types.Bar, start, end time.Time) []types.Bar {
	var filtered []types.Bar
	for _, bar := range data {
		if !start.IsZero() && bar.Timestamp.Before(start) {
			continue
		}
		if !end.IsZero() && bar.Timestamp.After(end) {
			continue
		}
		filtered = append(filtered, bar)
	}
	return filtered
}

// ValidateTimeSequence ensures strictly increasing timestamps
func (f *DefaultDataFilter) ValidateTimeSequence(data []types.Bar) error {
	for i := 1; i < len(data); i++ {
		if data[i].Timestamp.Before(data[i-1].Timestamp) {
			return fmt.Errorf("data not in chronological order at index %d: %s comes after %s",
				i, data[i].Timestamp.Format(time.RFC3339), data[i-1].Timestamp.Format(time.RFC3339))
		}
		if data[i].Timestamp.Equal(data[i-1].Timestamp) {
			return fmt.Errorf("duplicate timestamp at index %d: %s", i, data[i].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// SortAndDedupe returns a chronologically sorted copy keeping the first bar per timestamp
func (f *DefaultDataFilter) SortAndDedupe(data []types.Bar) []types.Bar {
	sorted := make([]types.Bar, len(data))
	copy(sorted, data)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	out := sorted[:0]
	for i, bar := range sorted {
		if i > 0 && bar.Timestamp.Equal(sorted[i-1].Timestamp) {
			continue
		}
		out = append(out, bar)
	}
	return out
}
