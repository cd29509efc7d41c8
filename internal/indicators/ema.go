package indicators

// EMA represents the Exponential Moving Average technical indicator.
// The first value is the SMA of the first period samples; after that
// EMA = value*alpha + previous*(1-alpha) with alpha = 2/(period+1).
type EMA struct {
	period  int
	alpha   float64
	value   float64
	seedSum float64
	count   int
}

// NewEMA creates a new EMA indicator
func NewEMA(period int) *EMA {
	if period < 1 {
		period = 1
	}
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

// Update advances the EMA by one sample
func (e *EMA) Update(v float64) {
	e.count++
	if e.count <= e.period {
		e.seedSum += v
		if e.count == e.period {
			e.value = e.seedSum / float64(e.period)
		}
		return
	}
	e.value = v*e.alpha + e.value*(1-e.alpha)
}

// Value returns the current EMA; ok is false until period samples were seen
func (e *EMA) Value() (float64, bool) {
	if !e.IsReady() {
		return 0, false
	}
	return e.value, true
}

// IsReady returns whether the EMA has its minimum sample count
func (e *EMA) IsReady() bool {
	return e.count >= e.period
}

// GetRequiredPeriods returns the minimum number of samples needed
func (e *EMA) GetRequiredPeriods() int {
	return e.period
}

// ResetState clears all accumulated state
func (e *EMA) ResetState() {
	e.value = 0
	e.seedSum = 0
	e.count = 0
}
