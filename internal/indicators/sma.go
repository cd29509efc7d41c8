package indicators

// SMA represents the Simple Moving Average over the last period samples
type SMA struct {
	period int
	win    *window
	sum    float64
}

// NewSMA creates a new SMA indicator
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		win:    newWindow(period),
	}
}

// Update advances the SMA by one sample
func (s *SMA) Update(v float64) {
	evicted, full := s.win.push(v)
	if full {
		s.sum -= evicted
	}
	s.sum += v
}

// Value returns the current average; ok is false until the window is full
func (s *SMA) Value() (float64, bool) {
	if !s.win.isFull() {
		return 0, false
	}
	return s.sum / float64(s.period), true
}

// IsReady returns whether the window is full
func (s *SMA) IsReady() bool {
	return s.win.isFull()
}

// GetRequiredPeriods returns the minimum number of samples needed
func (s *SMA) GetRequiredPeriods() int {
	return s.period
}

// ResetState clears all accumulated state
func (s *SMA) ResetState() {
	s.win.reset()
	s.sum = 0
}
