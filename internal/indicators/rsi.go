package indicators

// RSI calculates the Relative Strength Index with Wilder's smoothing
type RSI struct {
	period    int
	avgGain   float64
	avgLoss   float64
	lastClose float64
	changes   int
	started   bool
}

// NewRSI creates a new RSI instance with the given period
func NewRSI(period int) *RSI {
	if period < 1 {
		period = 1
	}
	return &RSI{period: period}
}

// Update advances the RSI by one close
func (r *RSI) Update(close float64) {
	if !r.started {
		r.lastClose = close
		r.started = true
		return
	}

	change := close - r.lastClose
	r.lastClose = close
	gain, loss := 0.0, 0.0
	if change > 0 {
		gain = change
	} else {
		loss = -change
	}

	r.changes++
	p := float64(r.period)
	if r.changes <= r.period {
		// seed with simple averages of the first period changes
		r.avgGain += gain / p
		r.avgLoss += loss / p
		return
	}
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

// Value returns the RSI in [0, 100]; ok is false until period+1 closes were seen
func (r *RSI) Value() (float64, bool) {
	if !r.IsReady() {
		return 0, false
	}
	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return 50, true
		}
		return 100, true
	}
	rs := r.avgGain / r.avgLoss
	return 100 - (100 / (1 + rs)), true
}

// IsReady returns whether the RSI has its minimum sample count
func (r *RSI) IsReady() bool {
	return r.changes >= r.period
}

// GetRequiredPeriods returns the minimum number of closes needed
func (r *RSI) GetRequiredPeriods() int {
	return r.period + 1
}

// ResetState clears all accumulated state
func (r *RSI) ResetState() {
	*r = RSI{period: r.period}
}
