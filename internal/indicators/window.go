package indicators

// window is a fixed-capacity FIFO of float64 samples
type window struct {
	buf  []float64
	head int
	n    int
}

func newWindow(size int) *window {
	if size < 1 {
		size = 1
	}
	return &window{buf: make([]float64, size)}
}

// push appends v and returns the evicted sample (if the window was full)
func (w *window) push(v float64) (evicted float64, full bool) {
	if w.n == len(w.buf) {
		evicted = w.buf[w.head]
		full = true
	} else {
		w.n++
	}
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	return evicted, full
}

func (w *window) len() int { return w.n }

func (w *window) isFull() bool { return w.n == len(w.buf) }

// each visits samples oldest first
func (w *window) each(fn func(v float64)) {
	start := (w.head - w.n + len(w.buf)) % len(w.buf)
	for i := 0; i < w.n; i++ {
		fn(w.buf[(start+i)%len(w.buf)])
	}
}

func (w *window) reset() {
	w.head = 0
	w.n = 0
}
