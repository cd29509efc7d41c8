package types

import "time"

// Side is the direction of an order
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// OrderIntent asks the execution collaborator to open exposure
type OrderIntent struct {
	ID             string
	Symbol         string
	Side           Side
	Quantity       float64
	Reason         string
	HighConviction bool
	RiskFraction   float64
	ATR            float64
	Timestamp      time.Time
}

// ClosePositionIntent asks the execution collaborator to reduce or flatten a position.
// Fraction is in (0, 1]; 1 closes everything.
type ClosePositionIntent struct {
	ID        string
	Symbol    string
	Reason    string
	Fraction  float64
	Timestamp time.Time
}

// Fill confirms execution of a previously emitted intent
type Fill struct {
	IntentID   string
	Symbol     string
	Side       Side
	Quantity   float64
	Price      float64
	Commission float64
	Timestamp  time.Time
}

// TradeRecord is the realized outcome of a closed (or partially closed) trade
type TradeRecord struct {
	Symbol      string
	EntryTime   time.Time
	ExitTime    time.Time
	EntryPrice  float64
	ExitPrice   float64
	Quantity    float64
	PnL         float64
	CloseReason string
	BarsHeld    int
}

// FilterStatsReport is emitted by every actor when it stops. TotalBars counts
// every bar the actor saw; Evaluated counts the bars that reached an entry
// decision (rejections, entries and undersized signals).
type FilterStatsReport struct {
	Symbol         string
	TotalBars      int
	Evaluated      int
	Entries        int
	Undersized     int
	CountsByReason map[string]int
}

// IntentSink is the fire-and-forget order submission boundary
type IntentSink interface {
	SubmitOrder(intent OrderIntent)
	SubmitClose(intent ClosePositionIntent)
}
