package data

import (
	"time"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// DataProvider loads historical bars for one instrument from a source
type DataProvider interface {
	// LoadData loads bars for symbol from the specified source
	LoadData(symbol, source string) ([]types.Bar, error)

	// ValidateData validates the integrity of the loaded bars
	ValidateData(data []types.Bar) error

	// GetName returns the name of the data provider
	GetName() string
}

// DataCache caches loaded bars by key
type DataCache interface {
	Get(key string) ([]types.Bar, bool)
	Set(key string, data []types.Bar)
	Clear()
	Size() int
}

// DataFilter filters and orders bar series
type DataFilter interface {
	// FilterByPeriod keeps the trailing period of data
	FilterByPeriod(data []types.Bar, period time.Duration) []types.Bar

	// FilterByDateRange keeps bars inside [start, end]
	FilterByDateRange(data []types.Bar, start, end time.Time) []types.Bar

	// ValidateTimeSequence ensures strictly increasing timestamps
	ValidateTimeSequence(data []types.Bar) error
}

// CSVColumnMapping defines the column positions for different CSV formats
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	MinColumns   int
	DateFormat   string // empty means unix milliseconds
}

// Predefined CSV formats
var (
	DefaultCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		MinColumns:   6,
		DateFormat:   "2006-01-02 15:04:05",
	}

	// BybitCSVFormat matches kline exports keyed by start time in milliseconds
	BybitCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		MinColumns:   6,
	}
)

// FileLocator finds data files on disk
type FileLocator interface {
	// FindDataFile returns the bar file for symbol, or "" when none exists
	FindDataFile(dataRoot, exchange, symbol, interval string) string
}
