// Package exits implements the per-position exit state machine.
//
// While a position is open every bar first updates the running extremes, then
// the triggers are evaluated in a fixed priority order and the first one that
// fires names the exit:
//
//	chandelier_exit > breakeven_stop > time_stop > parabolic_take_profit >
//	overbought_exhaustion > funding_derisk
package exits

import (
	"math"
	"time"
)

// Reason identifies the trigger that closed (or reduced) a position
type Reason string

const (
	ReasonChandelier  Reason = "chandelier_exit"
	ReasonBreakeven   Reason = "breakeven_stop"
	ReasonTimeStop    Reason = "time_stop"
	ReasonParabolic   Reason = "parabolic_take_profit"
	ReasonOverbought  Reason = "overbought_exhaustion"
	ReasonFundingRisk Reason = "funding_derisk"
)

// State of the machine
type State int

const (
	StateFlat State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "OPEN"
	}
	return "FLAT"
}

// Position is the open long exposure of one instrument
type Position struct {
	Symbol         string
	EntryPrice     float64
	EntryTime      time.Time
	Quantity       float64
	InitialQty     float64
	ATRAtEntry     float64
	HighConviction bool

	HighestHigh    float64
	LowestLow      float64
	BarsHeld       int
	BreakevenArmed bool
	RSIWasAbove    bool
	DeRisked       bool
}

// Inputs are the per-bar indicator readings the triggers need.
// A false ok flag means the reading is unavailable and its trigger is skipped.
type Inputs struct {
	ATR     float64
	ATROK   bool
	EMA     float64
	EMAOK   bool
	RSI     float64
	RSIOK   bool
	Carry   float64
	CarryOK bool
	Close   float64
	High    float64
	Low     float64
}

// Exit is a fired trigger; Fraction is the share of the position to close
type Exit struct {
	Reason   Reason
	Fraction float64
	Stop     float64
}

// Machine is the FLAT -> OPEN -> FLAT state machine for one instrument
type Machine struct {
	cfg Config
	pos *Position
}

// NewMachine creates a flat machine
func NewMachine(cfg Config) *Machine {
	return &Machine{cfg: cfg}
}

// State returns FLAT or OPEN
func (m *Machine) State() State {
	if m.pos == nil {
		return StateFlat
	}
	return StateOpen
}

// Position returns the open position, nil when flat
func (m *Machine) Position() *Position {
	return m.pos
}

// Open transitions FLAT -> OPEN on an entry fill. A second open while a
// position exists is ignored and reported as false.
func (m *Machine) Open(symbol string, price, qty, atrAtEntry float64, ts time.Time, highConviction bool) bool {
	if m.pos != nil || qty <= 0 {
		return false
	}
	m.pos = &Position{
		Symbol:         symbol,
		EntryPrice:     price,
		EntryTime:      ts,
		Quantity:       qty,
		InitialQty:     qty,
		ATRAtEntry:     atrAtEntry,
		HighConviction: highConviction,
		HighestHigh:    price,
		LowestLow:      price,
	}
	return true
}

// Reduce applies an exit fill. It returns true when the position is now flat.
func (m *Machine) Reduce(qty float64) bool {
	if m.pos == nil {
		return true
	}
	m.pos.Quantity -= qty
	if m.pos.Quantity <= m.pos.InitialQty*1e-9 {
		m.pos = nil
		return true
	}
	return false
}

// Observe updates extremes, bars held, breakeven arming and RSI crossing
// state without evaluating triggers.
func (m *Machine) Observe(in Inputs) {
	p := m.pos
	if p == nil {
		return
	}
	p.HighestHigh = math.Max(p.HighestHigh, in.High)
	p.LowestLow = math.Min(p.LowestLow, in.Low)
	p.BarsHeld++
	if !p.BreakevenArmed && p.ATRAtEntry > 0 && in.Close-p.EntryPrice >= m.cfg.BreakevenTrigger*p.ATRAtEntry {
		p.BreakevenArmed = true
	}
}

// Check evaluates triggers in priority order against the latest observation
func (m *Machine) Check(in Inputs) (Exit, bool) {
	p := m.pos
	if p == nil {
		return Exit{}, false
	}

	rsiFired := false
	if m.cfg.OverboughtRSI > 0 && in.RSIOK {
		rsiFired = p.RSIWasAbove && in.RSI < m.cfg.OverboughtRSI
		if in.RSI > m.cfg.OverboughtRSI {
			p.RSIWasAbove = true
		}
	}

	if in.ATROK {
		stop := m.ChandelierStop(in.ATR)
		if in.Close < stop {
			return Exit{Reason: ReasonChandelier, Fraction: 1, Stop: stop}, true
		}
	}

	if p.BreakevenArmed {
		stop := m.BreakevenStop()
		if in.Close < stop {
			return Exit{Reason: ReasonBreakeven, Fraction: 1, Stop: stop}, true
		}
	}

	if m.cfg.TimeStopBars > 0 && p.BarsHeld >= m.cfg.TimeStopBars &&
		in.Close <= p.EntryPrice*(1+m.cfg.TimeStopEpsilon) {
		return Exit{Reason: ReasonTimeStop, Fraction: 1}, true
	}

	if m.cfg.ParabolicFraction > 0 && in.EMAOK && in.EMA > 0 &&
		(in.Close-in.EMA)/in.EMA > m.cfg.ParabolicFraction {
		return Exit{Reason: ReasonParabolic, Fraction: 1}, true
	}

	if rsiFired {
		return Exit{Reason: ReasonOverbought, Fraction: 1}, true
	}

	if !p.DeRisked && m.cfg.FundingDangerRate > 0 && in.CarryOK && in.Carry > m.cfg.FundingDangerRate {
		p.DeRisked = true
		return Exit{Reason: ReasonFundingRisk, Fraction: m.cfg.DeRiskFraction}, true
	}

	return Exit{}, false
}

// Evaluate observes the bar and checks triggers
func (m *Machine) Evaluate(in Inputs) (Exit, bool) {
	m.Observe(in)
	return m.Check(in)
}

// ChandelierStop is HH - k*ATR for the open position
func (m *Machine) ChandelierStop(atr float64) float64 {
	if m.pos == nil {
		return 0
	}
	return m.pos.HighestHigh - m.cfg.ChandelierMultiplier*atr
}

// BreakevenStop is entry * (1 + fee buffer)
func (m *Machine) BreakevenStop() float64 {
	if m.pos == nil {
		return 0
	}
	return m.pos.EntryPrice * (1 + m.cfg.FeeBuffer)
}

// EffectiveStop is max(chandelier, breakeven) once breakeven is armed
func (m *Machine) EffectiveStop(atr float64) float64 {
	stop := m.ChandelierStop(atr)
	if m.pos != nil && m.pos.BreakevenArmed {
		stop = math.Max(stop, m.BreakevenStop())
	}
	return stop
}
