package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// CSVProvider implements DataProvider for CSV files
type CSVProvider struct {
	format CSVColumnMapping
}

// NewCSVProvider creates a new CSV data provider with default format
func NewCSVProvider() *CSVProvider {
	return &CSVProvider{format: DefaultCSVFormat}
}

// NewCSVProviderWithFormat creates a new CSV data provider with custom format
func NewCSVProviderWithFormat(format CSVColumnMapping) *CSVProvider {
	return &CSVProvider{format: format}
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData loads bars from a CSV file with a header row
func (p *CSVProvider) LoadData(symbol, source string) ([]types.Bar, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return p.Read(symbol, file)
}

// Read parses CSV bars from r. Rows that fail to parse or validate are skipped.
func (p *CSVProvider) Read(symbol string, r io.Reader) ([]types.Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading CSV header: %w", err)
	}

	var bars []types.Bar
	lineNum := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum, err)
		}
		lineNum++

		bar, err := p.parseRecord(symbol, record)
		if err != nil {
			log.Warn().Str("symbol", symbol).Int("line", lineNum).Err(err).Msg("skipping CSV row")
			continue
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (p *CSVProvider) parseRecord(symbol string, record []string) (types.Bar, error) {
	f := p.format
	if len(record) < f.MinColumns {
		return types.Bar{}, fmt.Errorf("insufficient columns (expected %d, got %d)", f.MinColumns, len(record))
	}

	ts, err := p.parseTimestamp(strings.TrimSpace(record[f.TimestampCol]))
	if err != nil {
		return types.Bar{}, err
	}

	cols := []struct {
		name string
		idx  int
	}{{"open", f.OpenCol}, {"high", f.HighCol}, {"low", f.LowCol}, {"close", f.CloseCol}, {"volume", f.VolumeCol}}
	var vals [5]float64
	for i, c := range cols {
		v, err := strconv.ParseFloat(strings.TrimSpace(record[c.idx]), 64)
		if err != nil {
			return types.Bar{}, fmt.Errorf("invalid %s '%s': %w", c.name, record[c.idx], err)
		}
		vals[i] = v
	}

	bar := types.Bar{
		Symbol:    symbol,
		Timestamp: ts,
		Open:      vals[0],
		High:      vals[1],
		Low:       vals[2],
		Close:     vals[3],
		Volume:    vals[4],
	}
	if err := bar.Validate(); err != nil {
		return types.Bar{}, err
	}
	return bar, nil
}

func (p *CSVProvider) parseTimestamp(s string) (time.Time, error) {
	if p.format.DateFormat == "" {
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid millisecond timestamp '%s': %w", s, err)
		}
		return time.UnixMilli(ms).UTC(), nil
	}
	ts, err := time.Parse(p.format.DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp '%s': %w", s, err)
	}
	return ts, nil
}

// ValidateData validates the integrity of loaded bars
func (p *CSVProvider) ValidateData(data []types.Bar) error {
	if len(data) == 0 {
		return fmt.Errorf("no data provided")
	}
	for i, bar := range data {
		if err := bar.Validate(); err != nil {
			return fmt.Errorf("invalid bar at index %d: %w", i, err)
		}
		if i > 0 && !bar.Timestamp.After(data[i-1].Timestamp) {
			return fmt.Errorf("invalid timestamp sequence at index %d: timestamps must be strictly increasing", i)
		}
	}
	return nil
}
