package data

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

const candlesFile = "candles.csv"

// exchangeCategories are the product categories searched, in order, under an
// exchange directory
var exchangeCategories = map[string][]string{
	"bybit": {"linear", "spot", "inverse"},
}

var unitMinutes = map[byte]int{'m': 1, 'h': 60, 'd': 24 * 60, 'w': 7 * 24 * 60}

// IntervalMinutes returns the bar length in minutes of "15m", "4h", "1d" or
// "1w" style intervals. Bare minute counts and the Bybit "D"/"W" codes are
// accepted as well.
func IntervalMinutes(interval string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(interval))
	switch s {
	case "d":
		s = "1d"
	case "w":
		s = "1w"
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	per, ok := unitMinutes[s[len(s)-1]]
	if !ok {
		return 0, fmt.Errorf("invalid interval %q: unknown unit", interval)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid interval %q", interval)
	}
	return n * per, nil
}

// CandlesPath is {root}/{exchange}/{category}/{SYMBOL}/{minutes}/candles.csv,
// the layout written by the downloader
func CandlesPath(root, exchange, category, symbol, interval string) (string, error) {
	minutes, err := IntervalMinutes(interval)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, strings.ToLower(exchange), category, strings.ToUpper(symbol),
		strconv.Itoa(minutes), candlesFile), nil
}

// DefaultFileLocator finds bar files on the local file system
type DefaultFileLocator struct{}

// NewDefaultFileLocator creates a new default file locator
func NewDefaultFileLocator() *DefaultFileLocator {
	return &DefaultFileLocator{}
}

// candidates lists every path FindDataFile tries, in priority order
func (f *DefaultFileLocator) candidates(dataRoot, exchange, symbol, interval string) []string {
	symbol = strings.ToUpper(symbol)
	paths := []string{
		filepath.Join(dataRoot, symbol+"_"+interval+".csv"),
		filepath.Join(dataRoot, symbol+".csv"),
	}
	categories, ok := exchangeCategories[strings.ToLower(exchange)]
	if !ok {
		categories = []string{"linear", "spot", "inverse", "futures"}
	}
	for _, category := range categories {
		if p, err := CandlesPath(dataRoot, exchange, category, symbol, interval); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

// FindDataFile returns the first existing bar file for symbol. Flat files
// ({root}/{SYMBOL}_{interval}.csv, {root}/{SYMBOL}.csv) win over the exchange
// layout (see CandlesPath). Returns empty string if no file is found.
func (f *DefaultFileLocator) FindDataFile(dataRoot, exchange, symbol, interval string) string {
	paths := f.candidates(dataRoot, exchange, symbol, interval)
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	log.Warn().Str("exchange", exchange).Str("symbol", symbol).Str("interval", interval).
		Strs("attempted", paths).Msg("no data file found")
	return ""
}
