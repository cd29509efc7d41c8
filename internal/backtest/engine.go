// Package backtest replays historical bars through the supervised actors and
// fills their intents on a simulated venue.
package backtest

import (
	"context"
	"fmt"
	"sort"

	"github.com/ducminhle1904/trend-engine/internal/logger"
	"github.com/ducminhle1904/trend-engine/internal/monitoring"
	"github.com/ducminhle1904/trend-engine/internal/orchestrator"
	"github.com/ducminhle1904/trend-engine/internal/regime"
	"github.com/ducminhle1904/trend-engine/internal/strategy"
	"github.com/ducminhle1904/trend-engine/internal/telemetry"
	"github.com/ducminhle1904/trend-engine/internal/universe"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// Config describes one replay
type Config struct {
	Symbols     []string        `json:"symbols"`
	Commission  float64         `json:"commission"`
	FillAtClose bool            `json:"fill_at_close"`
	EventBuffer int             `json:"event_buffer"`
	Regime      regime.Config   `json:"regime"`
	Actor       strategy.Config `json:"actor"`
}

// DefaultConfig returns a replay config trading symbols against benchmark
func DefaultConfig(benchmark string, symbols []string) Config {
	return Config{
		Symbols:     symbols,
		Commission:  0.0005,
		EventBuffer: 256,
		Regime:      regime.DefaultConfig(),
		Actor:       strategy.DefaultConfig("", benchmark),
	}
}

// Validate validates the replay configuration
func (c Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Commission < 0 || c.Commission >= 1 {
		return fmt.Errorf("commission must be in [0, 1), got %.6f", c.Commission)
	}
	if err := c.Regime.Validate(); err != nil {
		return fmt.Errorf("regime: %w", err)
	}
	for _, sym := range c.Symbols {
		if err := c.actorConfig(sym).Validate(); err != nil {
			return fmt.Errorf("actor %s: %w", sym, err)
		}
	}
	return nil
}

func (c Config) actorConfig(symbol string) strategy.Config {
	ac := c.Actor
	ac.Symbol = symbol
	return ac
}

// Engine runs replays. It is safe to run several replays of one engine concurrently.
type Engine struct {
	cfg       Config
	snapshots []universe.Snapshot
	logger    *logger.Logger
}

// NewEngine creates a replay engine. Nil snapshots admit every configured
// symbol for the whole replay.
func NewEngine(cfg Config, snapshots []universe.Snapshot, log *logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{cfg: cfg, snapshots: snapshots, logger: log}, nil
}

func (e *Engine) membership() *universe.Membership {
	if e.snapshots == nil {
		return universe.NewStaticMembership(e.cfg.Symbols)
	}
	return universe.NewMembership(e.snapshots)
}

// Run replays timestamp-ordered steps (see data.MergeSteps). Carry
// observations are delivered before the first step at or after their
// timestamp. Every step ends with a sync barrier, so intents raised on a bar
// are filled on the next bar of the same symbol.
func (e *Engine) Run(ctx context.Context, steps [][]types.Bar, carry []types.CarryCost) (*Results, error) {
	sess, err := e.NewSession(nil)
	if err != nil {
		return nil, err
	}

	carry = append([]types.CarryCost(nil), carry...)
	sort.SliceStable(carry, func(i, j int) bool { return carry[i].Timestamp.Before(carry[j].Timestamp) })

	if err := sess.Start(ctx); err != nil {
		return nil, err
	}
	runErr := e.replay(ctx, sess, steps, carry)
	res := sess.Finish()

	e.logger.Info("replay finished: %d steps, %d trades, return %.2f%%, %d actor failures",
		len(res.EquityCurve), res.TotalTrades, res.TotalReturn*100, len(res.Failures))
	return res, runErr
}

func (e *Engine) replay(ctx context.Context, sess *Session, steps [][]types.Bar, carry []types.CarryCost) error {
	ci := 0
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(step) == 0 {
			continue
		}
		ts := step[0].Timestamp
		for ci < len(carry) && !carry[ci].Timestamp.After(ts) {
			if err := sess.Carry(ctx, carry[ci]); err != nil {
				return err
			}
			ci++
		}
		if err := sess.Step(ctx, step); err != nil {
			return err
		}
	}
	return sess.sup.Sync(ctx)
}

// Session is one supervised set of actors trading against a PaperExecutor.
// Replays and the live runner both drive a session one step at a time.
type Session struct {
	cfg        Config
	logger     *logger.Logger
	exec       *PaperExecutor
	aggregator *telemetry.Aggregator
	sup        *orchestrator.Supervisor
	actors     map[string]*strategy.Actor
	res        *Results
}

// NewSession builds the supervisor and one actor per configured symbol.
// health may be nil.
func (e *Engine) NewSession(health *monitoring.HealthChecker) (*Session, error) {
	exec := NewPaperExecutor(e.cfg.Commission)
	aggregator := telemetry.NewAggregator()
	sup, err := orchestrator.NewSupervisor(
		orchestrator.Config{Benchmark: e.cfg.Actor.Benchmark, EventBuffer: e.cfg.EventBuffer},
		regime.NewClassifier(e.cfg.Regime), aggregator, e.logger, health,
	)
	if err != nil {
		return nil, err
	}

	actors := make(map[string]*strategy.Actor, len(e.cfg.Symbols))
	for _, sym := range e.cfg.Symbols {
		a, err := strategy.NewActor(e.cfg.actorConfig(sym), strategy.Deps{
			Sink:     exec,
			Universe: e.membership(),
			Logger:   e.logger.With(sym),
		})
		if err != nil {
			return nil, err
		}
		if err := sup.Add(a); err != nil {
			return nil, err
		}
		actors[sym] = a
	}

	return &Session{
		cfg:        e.cfg,
		logger:     e.logger,
		exec:       exec,
		aggregator: aggregator,
		sup:        sup,
		actors:     actors,
		res:        &Results{StartEquity: e.cfg.Actor.InitialEquity * float64(len(e.cfg.Symbols))},
	}, nil
}

// Start launches the actor goroutines
func (s *Session) Start(ctx context.Context) error {
	return s.sup.Start(ctx)
}

// Carry delivers a funding-rate observation to its actor
func (s *Session) Carry(ctx context.Context, c types.CarryCost) error {
	return s.sup.DeliverCarry(ctx, c)
}

// Step fills queued intents, dispatches one timestamp's bars, waits for every
// actor to handle them and records an equity sample.
func (s *Session) Step(ctx context.Context, step []types.Bar) error {
	if len(step) == 0 {
		return nil
	}
	if !s.cfg.FillAtClose {
		if err := deliver(ctx, s.sup, s.exec.FillAtOpen(step)); err != nil {
			return err
		}
	}
	if err := s.sup.DispatchStep(ctx, step); err != nil {
		return err
	}
	if err := s.sup.Sync(ctx); err != nil {
		return err
	}
	if s.cfg.FillAtClose {
		if err := deliver(ctx, s.sup, s.exec.FillAtClose(step)); err != nil {
			return err
		}
	}

	s.exec.Mark(step)
	equity, exposure := s.exec.Equity(s.res.StartEquity)
	s.res.EquityCurve = append(s.res.EquityCurve, EquityPoint{Timestamp: step[0].Timestamp, Equity: equity, Exposure: exposure})
	return nil
}

// Last returns the most recent equity sample
func (s *Session) Last() (EquityPoint, bool) {
	if len(s.res.EquityCurve) == 0 {
		return EquityPoint{}, false
	}
	return s.res.EquityCurve[len(s.res.EquityCurve)-1], true
}

// Regime returns the latest benchmark regime snapshot
func (s *Session) Regime() regime.State {
	return s.sup.Regime()
}

// Finish stops the actors and computes the results. The session cannot be reused.
func (s *Session) Finish() *Results {
	res := s.res
	res.Failures = s.sup.Stop()
	for _, sym := range s.sup.Symbols() {
		res.Trades = append(res.Trades, s.actors[sym].Trades()...)
	}
	sort.SliceStable(res.Trades, func(i, j int) bool { return res.Trades[i].ExitTime.Before(res.Trades[j].ExitTime) })
	res.FilterReports = s.aggregator.Reports()
	res.FilterTotals = s.aggregator.Totals()
	res.Turnover, _ = s.exec.Turnover()
	res.UpdateMetrics()
	return res
}

func deliver(ctx context.Context, sup *orchestrator.Supervisor, fills []types.Fill) error {
	for _, f := range fills {
		if err := sup.DeliverFill(ctx, f); err != nil {
			return err
		}
	}
	return nil
}
