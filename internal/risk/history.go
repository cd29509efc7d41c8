package risk

// TradeHistory is a fixed window of the most recent realized trade PnLs
type TradeHistory struct {
	pnl  []float64
	head int
	n    int
}

// NewTradeHistory creates a window holding the last size outcomes
func NewTradeHistory(size int) *TradeHistory {
	if size < 1 {
		size = 1
	}
	return &TradeHistory{pnl: make([]float64, size)}
}

// Record appends a realized PnL, dropping the oldest when full
func (h *TradeHistory) Record(pnl float64) {
	h.pnl[h.head] = pnl
	h.head = (h.head + 1) % len(h.pnl)
	if h.n < len(h.pnl) {
		h.n++
	}
}

// Len returns how many outcomes are held
func (h *TradeHistory) Len() int {
	return h.n
}

// Full reports whether the window holds its capacity
func (h *TradeHistory) Full() bool {
	return h.n == len(h.pnl)
}

// AllLosses is true only for a full window of strictly negative outcomes
func (h *TradeHistory) AllLosses() bool {
	if !h.Full() {
		return false
	}
	for _, p := range h.pnl {
		if p >= 0 {
			return false
		}
	}
	return true
}

// Recent returns outcomes oldest first
func (h *TradeHistory) Recent() []float64 {
	out := make([]float64, 0, h.n)
	start := (h.head - h.n + len(h.pnl)) % len(h.pnl)
	for i := 0; i < h.n; i++ {
		out = append(out, h.pnl[(start+i)%len(h.pnl)])
	}
	return out
}
