package data

import (
	"fmt"
	"sort"
	"time"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// DataManager combines provider, filter and locator
type DataManager struct {
	provider DataProvider
	filter   *DefaultDataFilter
	locator  FileLocator
}

// NewDataManager creates a data manager with a cached CSV provider
func NewDataManager(format CSVColumnMapping) *DataManager {
	return &DataManager{
		provider: NewCachedProvider(NewCSVProviderWithFormat(format)),
		filter:   NewDefaultDataFilter(),
		locator:  NewDefaultFileLocator(),
	}
}

// NewDataManagerWithProvider creates a data manager with a custom provider
func NewDataManagerWithProvider(provider DataProvider) *DataManager {
	return &DataManager{
		provider: provider,
		filter:   NewDefaultDataFilter(),
		locator:  NewDefaultFileLocator(),
	}
}

// LoadSeries loads, sorts and range-filters the bars of every symbol
func (dm *DataManager) LoadSeries(dataRoot, exchange, interval string, symbols []string, start, end time.Time) (map[string][]types.Bar, error) {
	out := make(map[string][]types.Bar, len(symbols))
	for _, sym := range symbols {
		path := dm.locator.FindDataFile(dataRoot, exchange, sym, interval)
		if path == "" {
			return nil, fmt.Errorf("no data file for %s %s under %s", sym, interval, dataRoot)
		}
		bars, err := dm.provider.LoadData(sym, path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", sym, err)
		}
		bars = dm.filter.FilterByDateRange(dm.filter.SortAndDedupe(bars), start, end)
		if err := dm.provider.ValidateData(bars); err != nil {
			return nil, fmt.Errorf("validate %s: %w", sym, err)
		}
		out[sym] = bars
	}
	return out, nil
}

// MergeSteps interleaves per-symbol series into timestamp-ordered steps.
// Each step holds every bar sharing one timestamp, sorted by symbol.
func MergeSteps(series map[string][]types.Bar) [][]types.Bar {
	byTime := make(map[int64][]types.Bar)
	for _, bars := range series {
		for _, b := range bars {
			k := b.Timestamp.UnixNano()
			byTime[k] = append(byTime[k], b)
		}
	}

	keys := make([]int64, 0, len(byTime))
	for k := range byTime {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	steps := make([][]types.Bar, 0, len(keys))
	for _, k := range keys {
		step := byTime[k]
		sort.Slice(step, func(i, j int) bool { return step[i].Symbol < step[j].Symbol })
		steps = append(steps, step)
	}
	return steps
}
