package strategy

import (
	"sync"

	"github.com/ducminhle1904/trend-engine/internal/regime"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// EventKind identifies what an Event carries
type EventKind int

const (
	EventBar EventKind = iota
	EventBenchmark
	EventFill
	EventCarry
	EventSync
)

func (k EventKind) String() string {
	switch k {
	case EventBar:
		return "BAR"
	case EventBenchmark:
		return "BENCHMARK"
	case EventFill:
		return "FILL"
	case EventCarry:
		return "CARRY"
	case EventSync:
		return "SYNC"
	default:
		return "UNKNOWN"
	}
}

// Event is one message on an actor's channel
type Event struct {
	Kind   EventKind
	Bar    types.Bar
	Regime regime.State
	Fill   types.Fill
	Carry  types.CarryCost
	Ack    *sync.WaitGroup
}

// BarEvent wraps an instrument bar
func BarEvent(b types.Bar) Event {
	return Event{Kind: EventBar, Bar: b}
}

// BenchmarkEvent wraps a benchmark bar together with the regime it produced
func BenchmarkEvent(b types.Bar, st regime.State) Event {
	return Event{Kind: EventBenchmark, Bar: b, Regime: st}
}

// MissingBenchmarkEvent publishes a regime for a timestamp that had no usable
// benchmark bar. Bar is left zero so no benchmark price is recorded.
func MissingBenchmarkEvent(st regime.State) Event {
	return Event{Kind: EventBenchmark, Regime: st}
}

// FillEvent wraps an execution report
func FillEvent(f types.Fill) Event {
	return Event{Kind: EventFill, Fill: f}
}

// CarryEvent wraps a funding-rate observation
func CarryEvent(c types.CarryCost) Event {
	return Event{Kind: EventCarry, Carry: c}
}

// SyncEvent asks the actor to acknowledge that every earlier event was handled
func SyncEvent(ack *sync.WaitGroup) Event {
	return Event{Kind: EventSync, Ack: ack}
}
