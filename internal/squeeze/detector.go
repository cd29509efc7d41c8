// Package squeeze remembers recent volatility-compression events.
package squeeze

// DefaultMemory is the number of bars a squeeze stays remembered
const DefaultMemory = 5

// Detector is a fixed-size ring of "bands inside channel" flags
type Detector struct {
	ring []bool
	head int
	n    int
}

// NewDetector creates a detector that remembers the last size bars
func NewDetector(size int) *Detector {
	if size < 1 {
		size = 1
	}
	return &Detector{ring: make([]bool, size)}
}

// Record pushes the current bar's flag, expiring the oldest one when full
func (d *Detector) Record(inside bool) {
	d.ring[d.head] = inside
	d.head = (d.head + 1) % len(d.ring)
	if d.n < len(d.ring) {
		d.n++
	}
}

// IsHighConviction is true if any remembered bar was in a squeeze
func (d *Detector) IsHighConviction() bool {
	for i := 0; i < d.n; i++ {
		if d.ring[i] {
			return true
		}
	}
	return false
}

// Size returns the memory length
func (d *Detector) Size() int {
	return len(d.ring)
}
