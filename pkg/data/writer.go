package data

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// WriteBarsCSV writes bars with a header row in the column layout of format,
// so the file reads back with NewCSVProviderWithFormat(format)
func WriteBarsCSV(path string, bars []types.Bar, format CSVColumnMapping) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	width := format.MinColumns
	for _, col := range []int{format.TimestampCol, format.OpenCol, format.HighCol, format.LowCol, format.CloseCol, format.VolumeCol} {
		if col+1 > width {
			width = col + 1
		}
	}
	header := make([]string, width)
	header[format.TimestampCol] = "timestamp"
	header[format.OpenCol] = "open"
	header[format.HighCol] = "high"
	header[format.LowCol] = "low"
	header[format.CloseCol] = "close"
	header[format.VolumeCol] = "volume"

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, b := range bars {
		record := make([]string, width)
		if format.DateFormat == "" {
			record[format.TimestampCol] = strconv.FormatInt(b.Timestamp.UnixMilli(), 10)
		} else {
			record[format.TimestampCol] = b.Timestamp.UTC().Format(format.DateFormat)
		}
		record[format.OpenCol] = strconv.FormatFloat(b.Open, 'f', -1, 64)
		record[format.HighCol] = strconv.FormatFloat(b.High, 'f', -1, 64)
		record[format.LowCol] = strconv.FormatFloat(b.Low, 'f', -1, 64)
		record[format.CloseCol] = strconv.FormatFloat(b.Close, 'f', -1, 64)
		record[format.VolumeCol] = strconv.FormatFloat(b.Volume, 'f', -1, 64)
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
