package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// LoadCarryCSV reads funding-rate history from a CSV file with a header row
// and columns timestamp,symbol,rate. Timestamps are RFC3339 or unix
// milliseconds. Malformed rows are skipped; the result is sorted by time.
func LoadCarryCSV(path string) ([]types.CarryCost, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCarryCSV(f)
}

// ReadCarryCSV is LoadCarryCSV over an io.Reader
func ReadCarryCSV(r io.Reader) ([]types.CarryCost, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading carry CSV header: %w", err)
	}

	var out []types.CarryCost
	lineNum := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("error reading carry CSV at line %d: %w", lineNum, err)
		}
		lineNum++

		c, err := parseCarryRecord(record)
		if err != nil {
			log.Warn().Int("line", lineNum).Err(err).Msg("skipping carry row")
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func parseCarryRecord(record []string) (types.CarryCost, error) {
	if len(record) < 3 {
		return types.CarryCost{}, fmt.Errorf("insufficient columns (expected 3, got %d)", len(record))
	}

	raw := strings.TrimSpace(record[0])
	var ts time.Time
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		ts = time.UnixMilli(ms).UTC()
	} else if ts, err = time.Parse(time.RFC3339, raw); err != nil {
		return types.CarryCost{}, fmt.Errorf("invalid timestamp '%s'", raw)
	}

	symbol := strings.ToUpper(strings.TrimSpace(record[1]))
	if symbol == "" {
		return types.CarryCost{}, fmt.Errorf("missing symbol")
	}

	rate, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
	if err != nil || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return types.CarryCost{}, fmt.Errorf("invalid rate '%s'", record[2])
	}
	return types.CarryCost{Symbol: symbol, Rate: rate, Timestamp: ts}, nil
}
