package indicators

import "math"

// ATR represents the Average True Range with Wilder's smoothing:
//
//	atr = atr_prev + (tr - atr_prev) / period
//
// The first value is the mean of the first period true ranges.
type ATR struct {
	period    int
	value     float64
	seedSum   float64
	count     int
	lastClose float64
	hasPrev   bool
}

// NewATR creates a new ATR indicator
func NewATR(period int) *ATR {
	if period < 1 {
		period = 1
	}
	return &ATR{period: period}
}

// Update advances the ATR by one bar
func (a *ATR) Update(high, low, close float64) {
	tr := high - low
	if a.hasPrev {
		tr = trueRange(high, low, a.lastClose)
	}
	a.lastClose = close
	a.hasPrev = true

	a.count++
	if a.count <= a.period {
		a.seedSum += tr
		if a.count == a.period {
			a.value = a.seedSum / float64(a.period)
		}
		return
	}
	a.value += (tr - a.value) / float64(a.period)
}

// trueRange = max(High-Low, abs(High-PrevClose), abs(Low-PrevClose))
func trueRange(high, low, prevClose float64) float64 {
	hl := high - low
	hc := math.Abs(high - prevClose)
	lc := math.Abs(low - prevClose)
	return math.Max(hl, math.Max(hc, lc))
}

// Value returns the current ATR; ok is false until period bars were seen
func (a *ATR) Value() (float64, bool) {
	if !a.IsReady() {
		return 0, false
	}
	return a.value, true
}

// IsReady returns whether the ATR has its minimum sample count
func (a *ATR) IsReady() bool {
	return a.count >= a.period
}

// GetRequiredPeriods returns the minimum number of bars needed
func (a *ATR) GetRequiredPeriods() int {
	return a.period
}

// ResetState clears all accumulated state
func (a *ATR) ResetState() {
	a.value = 0
	a.seedSum = 0
	a.count = 0
	a.lastClose = 0
	a.hasPrev = false
}
