package indicators

import "math"

// BollingerBands represents the Bollinger Bands indicator.
// Bands are middle ± stdDevMultiple * population standard deviation.
type BollingerBands struct {
	period         int
	stdDevMultiple float64
	win            *window
}

// NewBollingerBands creates a new BollingerBands instance with the given period and standard deviation multiplier
func NewBollingerBands(period int, stdDev float64) *BollingerBands {
	if period < 1 {
		period = 1
	}
	return &BollingerBands{
		period:         period,
		stdDevMultiple: stdDev,
		win:            newWindow(period),
	}
}

// Update advances the bands by one close
func (bb *BollingerBands) Update(close float64) {
	bb.win.push(close)
}

// Bands returns upper, middle and lower; ok is false until the window is full
func (bb *BollingerBands) Bands() (upper, middle, lower float64, ok bool) {
	if !bb.win.isFull() {
		return 0, 0, 0, false
	}

	sum := 0.0
	bb.win.each(func(v float64) { sum += v })
	middle = sum / float64(bb.period)

	variance := 0.0
	bb.win.each(func(v float64) {
		d := v - middle
		variance += d * d
	})
	stdDev := math.Sqrt(variance / float64(bb.period))

	upper = middle + bb.stdDevMultiple*stdDev
	lower = middle - bb.stdDevMultiple*stdDev
	return upper, middle, lower, true
}

// IsReady returns whether the window is full
func (bb *BollingerBands) IsReady() bool {
	return bb.win.isFull()
}

// ResetState clears all accumulated state
func (bb *BollingerBands) ResetState() {
	bb.win.reset()
}
