// Package strategy runs one trend-following actor per instrument.
//
// An Actor owns every piece of per-instrument state (indicators, relative
// strength, squeeze memory, exit machine, risk history, telemetry) and is
// driven by a single event channel, so none of it is shared or locked.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	engerrors "github.com/ducminhle1904/trend-engine/internal/errors"
	"github.com/ducminhle1904/trend-engine/internal/exits"
	"github.com/ducminhle1904/trend-engine/internal/filters"
	"github.com/ducminhle1904/trend-engine/internal/indicators"
	"github.com/ducminhle1904/trend-engine/internal/logger"
	"github.com/ducminhle1904/trend-engine/internal/monitoring"
	"github.com/ducminhle1904/trend-engine/internal/regime"
	"github.com/ducminhle1904/trend-engine/internal/risk"
	"github.com/ducminhle1904/trend-engine/internal/sizing"
	"github.com/ducminhle1904/trend-engine/internal/squeeze"
	"github.com/ducminhle1904/trend-engine/internal/strength"
	"github.com/ducminhle1904/trend-engine/internal/telemetry"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// Deps are the collaborators an actor talks to
type Deps struct {
	Sink     types.IntentSink
	Universe filters.Membership
	Logger   *logger.Logger
	NewID    func() string
}

type pendingClose struct {
	intent types.ClosePositionIntent
	exit   exits.Exit
}

// Actor is the per-instrument strategy state machine
type Actor struct {
	cfg  Config
	deps Deps
	self bool

	bank     *indicators.Bank
	rs       *strength.Tracker
	squeeze  *squeeze.Detector
	chain    *filters.Chain
	machine  *exits.Machine
	sizer    *sizing.Sizer
	adapter  *risk.Adapter
	history  *risk.TradeHistory
	stats    *telemetry.FilterStats
	regime   regime.State
	carry    float64
	carryOK  bool
	lastBar  time.Time

	equity          float64
	entryCommission float64
	realizedPnL     float64
	pendingEntry    *types.OrderIntent
	pendingClose    *pendingClose
	trades          []types.TradeRecord
}

// NewActor builds an actor. A self-benchmark actor keeps the relative
// strength filter (RS is always zero, so it never enters) unless
// AllowSelfBenchmark drops that filter for it.
func NewActor(cfg Config, deps Deps) (*Actor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, engerrors.NewConfigurationError("actor", "NewActor", err.Error())
	}
	if deps.Sink == nil {
		return nil, engerrors.NewConfigurationError("actor", "NewActor", "intent sink is required")
	}
	if deps.Universe == nil {
		return nil, engerrors.NewConfigurationError("actor", "NewActor", "universe membership is required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	sizer, err := sizing.NewSizer(cfg.Sizing)
	if err != nil {
		return nil, engerrors.NewConfigurationError("actor", "NewActor", err.Error())
	}

	a := &Actor{
		cfg:     cfg,
		deps:    deps,
		self:    cfg.IsSelfBenchmark(),
		bank:    indicators.NewBank(cfg.Indicators),
		rs:      strength.NewTracker(cfg.Strength),
		squeeze: squeeze.NewDetector(cfg.Filters.SqueezeMemory),
		machine: exits.NewMachine(cfg.Exits),
		sizer:   sizer,
		adapter: risk.NewAdapter(cfg.Risk),
		stats:   telemetry.NewFilterStats(cfg.Symbol),
		equity:  cfg.InitialEquity,
	}
	a.history = a.adapter.NewHistory()
	a.chain = a.buildChain()
	return a, nil
}

func (a *Actor) buildChain() *filters.Chain {
	if !(a.self && a.cfg.AllowSelfBenchmark) {
		return filters.NewDefaultChain(a.cfg.Filters)
	}
	fc := a.cfg.Filters
	return filters.NewChain(
		filters.WarmupFilter{},
		filters.UniverseFilter{},
		filters.RegimeFilter{},
		filters.TrendFilter{},
		filters.VolumeFilter{Multiplier: fc.VolumeMultiplier},
		filters.BreakoutFilter{Multiplier: fc.TriggerMultiplier},
		filters.CandleQualityFilter{MaxUpperWickRatio: fc.MaxUpperWickRatio},
	)
}

// Symbol returns the instrument this actor trades
func (a *Actor) Symbol() string { return a.cfg.Symbol }

// Run consumes events until the channel closes or ctx is cancelled. A fatal
// error stops only this actor. Open positions are left open.
func (a *Actor) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := a.Handle(ev); err != nil {
				return err
			}
		}
	}
}

// Handle processes one event
func (a *Actor) Handle(ev Event) error {
	switch ev.Kind {
	case EventBar:
		return a.HandleBar(ev.Bar)
	case EventBenchmark:
		a.HandleBenchmark(ev.Bar, ev.Regime)
	case EventFill:
		a.HandleFill(ev.Fill)
	case EventCarry:
		a.HandleCarry(ev.Carry)
	case EventSync:
		if ev.Ack != nil {
			ev.Ack.Done()
		}
	}
	return nil
}

// HandleBenchmark records the benchmark close and the regime published with it.
// A zero bar only replaces the regime.
func (a *Actor) HandleBenchmark(b types.Bar, st regime.State) {
	a.regime = st
	if b.Close > 0 {
		a.rs.UpdateBenchmark(b.Timestamp, b.Close)
	}
}

// HandleCarry records the latest funding rate for this instrument
func (a *Actor) HandleCarry(c types.CarryCost) {
	if c.Symbol != a.cfg.Symbol {
		return
	}
	a.carry = c.Rate
	a.carryOK = true
}

// HandleBar advances indicators and either manages the open position or
// evaluates the entry chain. Malformed bars and indicator overflow are fatal.
func (a *Actor) HandleBar(b types.Bar) error {
	if err := b.Validate(); err != nil {
		return engerrors.NewFatalError("actor", "HandleBar", err).WithContext("symbol", a.cfg.Symbol)
	}
	if !a.lastBar.IsZero() && !b.Timestamp.After(a.lastBar) {
		err := fmt.Errorf("timestamp %s not after %s", b.Timestamp.Format(time.RFC3339), a.lastBar.Format(time.RFC3339))
		return engerrors.NewFatalError("actor", "HandleBar", err).WithContext("symbol", a.cfg.Symbol)
	}
	a.lastBar = b.Timestamp
	a.stats.Observe()

	a.bank.Update(b.High, b.Low, b.Close, b.Volume)
	if err := a.bank.CheckFinite(); err != nil {
		return engerrors.NewFatalError("actor", "HandleBar", err).WithContext("symbol", a.cfg.Symbol)
	}
	a.rs.UpdateSymbol(b.Timestamp, b.Close)
	inside, _ := a.bank.SqueezeOn()
	a.squeeze.Record(inside)

	switch {
	case a.machine.State() == exits.StateOpen:
		a.manage(b)
	case a.pendingEntry == nil:
		a.evaluateEntry(b)
	}
	return nil
}

func (a *Actor) exitInputs(b types.Bar) exits.Inputs {
	in := exits.Inputs{Close: b.Close, High: b.High, Low: b.Low, Carry: a.carry, CarryOK: a.carryOK}
	in.ATR, in.ATROK = a.bank.ATR()
	in.EMA, in.EMAOK = a.bank.EMA()
	in.RSI, in.RSIOK = a.bank.RSI()
	return in
}

func (a *Actor) manage(b types.Bar) {
	in := a.exitInputs(b)
	if a.pendingClose != nil {
		a.machine.Observe(in)
		return
	}
	exit, fired := a.machine.Evaluate(in)
	if !fired {
		return
	}

	intent := types.ClosePositionIntent{
		ID:        a.deps.NewID(),
		Symbol:    a.cfg.Symbol,
		Reason:    string(exit.Reason),
		Fraction:  exit.Fraction,
		Timestamp: b.Timestamp,
	}
	a.pendingClose = &pendingClose{intent: intent, exit: exit}
	a.deps.Logger.LogExit(intent, b.Close, exit.Stop)
	monitoring.RecordIntent(a.cfg.Symbol, intent.Reason)
	a.deps.Sink.SubmitClose(intent)
}

func (a *Actor) evaluateEntry(b types.Bar) {
	d := a.chain.Evaluate(&filters.Candidate{
		Bar:        b,
		Indicators: a.bank,
		Universe:   a.deps.Universe,
		Regime:     a.regime,
		Strength:   a.rs,
		Squeeze:    a.squeeze,
	})
	if !d.Pass {
		a.stats.Record(string(d.Reason), false)
		monitoring.RecordRejection(string(d.Reason))
		return
	}

	riskFraction := a.adapter.EffectiveRisk(d.HighConviction, a.history, a.regime.IsFavorable())
	atr, _ := a.bank.ATR()
	qty, err := a.sizer.Size(a.equity, b.Close, atr, riskFraction)
	if err != nil {
		if errors.Is(err, sizing.ErrUndersized) {
			a.stats.RecordUndersized()
			monitoring.RecordUndersized(a.cfg.Symbol)
			a.deps.Logger.Warning("entry skipped: %v", err)
			return
		}
		monitoring.RecordError(string(engerrors.ErrorCategorySizing))
		a.deps.Logger.LogError("entry sizing failed", err)
		return
	}

	intent := types.OrderIntent{
		ID:             a.deps.NewID(),
		Symbol:         a.cfg.Symbol,
		Side:           types.SideBuy,
		Quantity:       qty,
		Reason:         string(d.Reason),
		HighConviction: d.HighConviction,
		RiskFraction:   riskFraction,
		ATR:            atr,
		Timestamp:      b.Timestamp,
	}
	a.pendingEntry = &intent
	a.stats.Record(string(d.Reason), true)
	a.deps.Logger.LogEntry(intent, b.Close)
	monitoring.RecordIntent(a.cfg.Symbol, intent.Reason)
	a.deps.Sink.SubmitOrder(intent)
}

// HandleFill opens or reduces the position. Fills are the only place a
// position is created or destroyed; a zero-quantity fill cancels the intent.
func (a *Actor) HandleFill(f types.Fill) {
	switch {
	case a.pendingEntry != nil && f.IntentID == a.pendingEntry.ID:
		a.fillEntry(f)
	case a.pendingClose != nil && f.IntentID == a.pendingClose.intent.ID:
		a.fillExit(f)
	default:
		a.deps.Logger.Warning("ignoring fill for unknown intent %s", f.IntentID)
	}
}

func (a *Actor) fillEntry(f types.Fill) {
	intent := a.pendingEntry
	a.pendingEntry = nil
	if f.Quantity <= 0 {
		a.deps.Logger.Warning("entry intent %s was not filled", intent.ID)
		return
	}
	a.machine.Open(a.cfg.Symbol, f.Price, f.Quantity, intent.ATR, f.Timestamp, intent.HighConviction)
	a.equity -= f.Commission
	a.entryCommission = f.Commission
	a.realizedPnL = 0
	a.deps.Logger.Trade("opened %.8f @ %.8f", f.Quantity, f.Price)
}

func (a *Actor) fillExit(f types.Fill) {
	pc := a.pendingClose
	a.pendingClose = nil
	pos := a.machine.Position()
	if pos == nil || f.Quantity <= 0 {
		return
	}

	qty := f.Quantity
	if qty > pos.Quantity {
		qty = pos.Quantity
	}
	gross := (f.Price - pos.EntryPrice) * qty
	entryShare := a.entryCommission * qty / pos.InitialQty
	a.equity += gross - f.Commission
	a.realizedPnL += gross - f.Commission - entryShare

	rec := types.TradeRecord{
		Symbol:      a.cfg.Symbol,
		EntryTime:   pos.EntryTime,
		ExitTime:    f.Timestamp,
		EntryPrice:  pos.EntryPrice,
		ExitPrice:   f.Price,
		Quantity:    qty,
		PnL:         gross - f.Commission - entryShare,
		CloseReason: pc.intent.Reason,
		BarsHeld:    pos.BarsHeld,
	}
	a.trades = append(a.trades, rec)
	a.deps.Logger.LogTrade(rec)
	monitoring.RecordTrade(a.cfg.Symbol, rec.CloseReason, rec.PnL)

	if a.machine.Reduce(qty) {
		a.history.Record(a.realizedPnL)
		a.realizedPnL = 0
	}
}

// Finish flushes telemetry: it logs the rejection summary, flags an actor
// that rejected every bar, and returns the report for aggregation.
func (a *Actor) Finish() types.FilterStatsReport {
	report := a.stats.Report()
	a.deps.Logger.LogRejectionSummary(report)
	allRejected := a.stats.AllRejected()
	monitoring.SetAllRejected(a.cfg.Symbol, allRejected)
	if allRejected {
		a.deps.Logger.Warning("all %d evaluated bars were rejected", report.Evaluated)
	}
	return report
}

// Trades returns realized trade records
func (a *Actor) Trades() []types.TradeRecord {
	return append([]types.TradeRecord(nil), a.trades...)
}

// Equity returns the actor's realized equity
func (a *Actor) Equity() float64 { return a.equity }

// Position returns the open position, nil when flat
func (a *Actor) Position() *exits.Position { return a.machine.Position() }

// Stats returns the actor's live filter counters
func (a *Actor) Stats() *telemetry.FilterStats { return a.stats }

// Regime returns the last regime snapshot received
func (a *Actor) Regime() regime.State { return a.regime }
