package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ducminhle1904/trend-engine/pkg/types"
)

const sampleCSV = `timestamp,open,high,low,close,volume
2024-01-01 00:00:00,100,101,99,100.5,1000
2024-01-01 00:05:00,100.5,102,100,101.5,1200
2024-01-01 00:10:00,bad,102,100,101.5,1200
2024-01-01 00:15:00,101.5,100,103,102,900
2024-01-01 00:20:00,101.5,103,101,102.5,1100
`

func TestCSVProviderReadSkipsBadRows(t *testing.T) {
	p := NewCSVProvider()
	bars, err := p.Read("BTCUSDT", strings.NewReader(sampleCSV))
	require.NoError(t, err)

	// row 3 has a non-numeric open, row 4 has high below low
	require.Len(t, bars, 3)
	assert.Equal(t, "BTCUSDT", bars[0].Symbol)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 20, 0, 0, time.UTC), bars[2].Timestamp)
	assert.NoError(t, p.ValidateData(bars))
}

func TestCSVProviderMillisecondTimestamps(t *testing.T) {
	csv := "start,open,high,low,close,volume\n1704067200000,1,2,0.5,1.5,10\n"
	bars, err := NewCSVProviderWithFormat(BybitCSVFormat).Read("ETHUSDT", strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.True(t, bars[0].Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCSVProviderEmptyInput(t *testing.T) {
	bars, err := NewCSVProvider().Read("X", strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestValidateDataRejectsDisorder(t *testing.T) {
	p := NewCSVProvider()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []types.Bar{
		{Symbol: "A", Timestamp: t0.Add(time.Minute), Open: 1, High: 1, Low: 1, Close: 1},
		{Symbol: "A", Timestamp: t0, Open: 1, High: 1, Low: 1, Close: 1},
	}
	assert.Error(t, p.ValidateData(bars))
	assert.Error(t, p.ValidateData(nil))
}

func bar(sym string, ts time.Time, c float64) types.Bar {
	return types.Bar{Symbol: sym, Timestamp: ts, Open: c, High: c, Low: c, Close: c, Volume: 1}
}

func TestDataFilter(t *testing.T) {
	f := NewDefaultDataFilter()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var bars []types.Bar
	for i := 0; i < 10; i++ {
		bars = append(bars, bar("A", t0.Add(time.Duration(i)*time.Hour), float64(i+1)))
	}

	trailing := f.FilterByPeriod(bars, 3*time.Hour)
	require.Len(t, trailing, 4)
	assert.Equal(t, 7.0, trailing[0].Close)

	ranged := f.FilterByDateRange(bars, t0.Add(2*time.Hour), t0.Add(4*time.Hour))
	require.Len(t, ranged, 3)
	assert.Len(t, f.FilterByDateRange(bars, time.Time{}, time.Time{}), 10)

	shuffled := []types.Bar{bars[2], bars[0], bars[1], bars[0]}
	clean := f.SortAndDedupe(shuffled)
	require.Len(t, clean, 3)
	assert.NoError(t, f.ValidateTimeSequence(clean))
	assert.Error(t, f.ValidateTimeSequence(shuffled))
}

func TestMergeSteps(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := map[string][]types.Bar{
		"ETHUSDT": {bar("ETHUSDT", t0, 1), bar("ETHUSDT", t0.Add(time.Minute), 2)},
		"BTCUSDT": {bar("BTCUSDT", t0, 10), bar("BTCUSDT", t0.Add(2*time.Minute), 11)},
	}

	steps := MergeSteps(series)
	require.Len(t, steps, 3)
	require.Len(t, steps[0], 2)
	assert.Equal(t, "BTCUSDT", steps[0][0].Symbol)
	assert.Equal(t, "ETHUSDT", steps[0][1].Symbol)
	assert.Equal(t, "ETHUSDT", steps[1][0].Symbol)
	assert.Equal(t, "BTCUSDT", steps[2][0].Symbol)
}

func TestIntervalMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"5m", 5}, {"4h", 240}, {"1d", 1440}, {"1w", 10080}, {"60", 60}, {"D", 1440}, {" 15M ", 15},
	}
	for _, tt := range tests {
		got, err := IntervalMinutes(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	for _, bad := range []string{"", "h", "0m", "-1h", "5y", "abc"} {
		_, err := IntervalMinutes(bad)
		assert.Error(t, err, bad)
	}
}

func TestCandlesPath(t *testing.T) {
	p, err := CandlesPath("root", "Bybit", "linear", "ethusdt", "4h")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("root", "bybit", "linear", "ETHUSDT", "240", "candles.csv"), p)

	_, err = CandlesPath("root", "bybit", "linear", "ETHUSDT", "4x")
	assert.Error(t, err)
}

func TestFileLocatorAndManager(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "BTCUSDT_5m.csv"), []byte(sampleCSV), 0o644))

	nested := filepath.Join(root, "bybit", "linear", "ETHUSDT", "5")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "candles.csv"), []byte(sampleCSV), 0o644))

	loc := NewDefaultFileLocator()
	assert.Equal(t, filepath.Join(root, "BTCUSDT_5m.csv"), loc.FindDataFile(root, "bybit", "btcusdt", "5m"))
	assert.Equal(t, filepath.Join(nested, "candles.csv"), loc.FindDataFile(root, "bybit", "ETHUSDT", "5m"))
	assert.Empty(t, loc.FindDataFile(root, "bybit", "SOLUSDT", "5m"))

	dm := NewDataManager(DefaultCSVFormat)
	series, err := dm.LoadSeries(root, "bybit", "5m", []string{"BTCUSDT", "ETHUSDT"}, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, series["BTCUSDT"], 3)
	assert.Len(t, series["ETHUSDT"], 3)
	assert.Equal(t, "ETHUSDT", series["ETHUSDT"][0].Symbol)

	_, err = dm.LoadSeries(root, "bybit", "5m", []string{"SOLUSDT"}, time.Time{}, time.Time{})
	assert.Error(t, err)
}

func TestCachedProviderReusesResult(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "A.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	cp := NewCachedProvider(NewCSVProvider())
	first, err := cp.LoadData("A", path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	second, err := cp.LoadData("A", path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReadCarryCSV(t *testing.T) {
	input := `timestamp,symbol,rate
2024-01-02T08:00:00Z,ethusdt,0.0001
1704096000000,BTCUSDT,-0.0002
bad,BTCUSDT,0.1
2024-01-03T00:00:00Z,,0.1
2024-01-03T00:00:00Z,BTCUSDT,NaN
2024-01-03T00:00:00Z,BTCUSDT
`
	carry, err := ReadCarryCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, carry, 2)

	assert.Equal(t, "BTCUSDT", carry[0].Symbol)
	assert.Equal(t, -0.0002, carry[0].Rate)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), carry[0].Timestamp)
	assert.Equal(t, "ETHUSDT", carry[1].Symbol)
	assert.Equal(t, 0.0001, carry[1].Rate)
}

func TestLoadCarryCSV_MissingFile(t *testing.T) {
	_, err := LoadCarryCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestWriteBarsCSV_ReadsBack(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []types.Bar{
		{Symbol: "ETHUSDT", Timestamp: t0, Open: 100, High: 101.25, Low: 99, Close: 100.5, Volume: 1000},
		{Symbol: "ETHUSDT", Timestamp: t0.Add(24 * time.Hour), Open: 100.5, High: 103, Low: 100, Close: 102, Volume: 0.125},
	}

	for name, format := range map[string]CSVColumnMapping{"default": DefaultCSVFormat, "bybit": BybitCSVFormat} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", "candles.csv")
			require.NoError(t, WriteBarsCSV(path, bars, format))

			got, err := NewCSVProviderWithFormat(format).LoadData("ETHUSDT", path)
			require.NoError(t, err)
			require.Len(t, got, 2)
			for i := range bars {
				assert.True(t, bars[i].Timestamp.Equal(got[i].Timestamp))
				assert.Equal(t, bars[i].High, got[i].High)
				assert.Equal(t, bars[i].Volume, got[i].Volume)
			}
		})
	}
}
