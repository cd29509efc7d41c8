// Package orchestrator fans bars out to per-instrument actors and supervises them.
//
// The supervisor owns the single benchmark regime classifier. For every
// timestamp the benchmark bar is classified and delivered to every actor
// before any instrument bar of that timestamp. A timestamp without a usable
// benchmark bar publishes a not-ready regime instead, so actors never trade
// on the previous bar's regime.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ducminhle1904/trend-engine/internal/logger"
	"github.com/ducminhle1904/trend-engine/internal/monitoring"
	"github.com/ducminhle1904/trend-engine/internal/regime"
	"github.com/ducminhle1904/trend-engine/internal/strategy"
	"github.com/ducminhle1904/trend-engine/internal/telemetry"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// Config holds supervisor settings
type Config struct {
	Benchmark   string `json:"benchmark"`
	EventBuffer int    `json:"event_buffer"`
}

// DefaultConfig returns supervisor defaults for a benchmark
func DefaultConfig(benchmark string) Config {
	return Config{Benchmark: benchmark, EventBuffer: 256}
}

type actorHandle struct {
	actor  *strategy.Actor
	events chan strategy.Event
	done   chan struct{}
}

// Supervisor runs one goroutine per actor
type Supervisor struct {
	cfg        Config
	classifier *regime.Classifier
	aggregator *telemetry.Aggregator
	logger     *logger.Logger
	health     *monitoring.HealthChecker

	actors  map[string]*actorHandle
	symbols []string
	regime  regime.State

	running  bool
	wg       sync.WaitGroup
	mu       sync.Mutex
	failures map[string]error
}

// NewSupervisor creates a supervisor; health may be nil
func NewSupervisor(cfg Config, classifier *regime.Classifier, aggregator *telemetry.Aggregator, log *logger.Logger, health *monitoring.HealthChecker) (*Supervisor, error) {
	if cfg.Benchmark == "" {
		return nil, fmt.Errorf("benchmark symbol is required")
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Supervisor{
		cfg:        cfg,
		classifier: classifier,
		aggregator: aggregator,
		logger:     log,
		health:     health,
		actors:     make(map[string]*actorHandle),
		failures:   make(map[string]error),
	}, nil
}

// Add registers an actor. Actors must be added before Start.
func (s *Supervisor) Add(a *strategy.Actor) error {
	if s.running {
		return fmt.Errorf("cannot add actor %s: supervisor already running", a.Symbol())
	}
	if _, exists := s.actors[a.Symbol()]; exists {
		return fmt.Errorf("actor for %s already registered", a.Symbol())
	}
	s.actors[a.Symbol()] = &actorHandle{
		actor:  a,
		events: make(chan strategy.Event, s.cfg.EventBuffer),
		done:   make(chan struct{}),
	}
	s.symbols = append(s.symbols, a.Symbol())
	sort.Strings(s.symbols)
	return nil
}

// Symbols returns the supervised instruments in sorted order
func (s *Supervisor) Symbols() []string {
	return append([]string(nil), s.symbols...)
}

// Start launches every actor goroutine
func (s *Supervisor) Start(ctx context.Context) error {
	if s.running {
		return fmt.Errorf("supervisor is already running")
	}
	s.running = true
	for _, sym := range s.symbols {
		h := s.actors[sym]
		s.wg.Add(1)
		go s.runActor(ctx, h)
	}
	if s.health != nil {
		s.health.SetActiveActors(len(s.symbols))
	}
	s.logger.Info("supervisor started %d actors, benchmark %s", len(s.symbols), s.cfg.Benchmark)
	return nil
}

func (s *Supervisor) runActor(ctx context.Context, h *actorHandle) {
	defer s.wg.Done()

	err := s.safeRun(ctx, h)
	report := h.actor.Finish()
	if s.aggregator != nil {
		s.aggregator.Merge(report)
	}
	if err != nil {
		s.recordFailure(h.actor.Symbol(), err)
	}
	close(h.done)

	// a stopped actor keeps acknowledging syncs and drops everything else
	for ev := range h.events {
		if ev.Kind == strategy.EventSync && ev.Ack != nil {
			ev.Ack.Done()
		}
	}
}

func (s *Supervisor) safeRun(ctx context.Context, h *actorHandle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("actor panic: %v", r)
		}
	}()
	return h.actor.Run(ctx, h.events)
}

func (s *Supervisor) recordFailure(symbol string, err error) {
	s.mu.Lock()
	s.failures[symbol] = err
	s.mu.Unlock()

	monitoring.RecordActorFailure(symbol)
	s.logger.Error("actor %s stopped: %v", symbol, err)
	if s.health != nil {
		s.health.RecordFailure(fmt.Sprintf("%s: %v", symbol, err))
	}
}

func (s *Supervisor) send(ctx context.Context, h *actorHandle, ev strategy.Event) error {
	select {
	case h.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DispatchBenchmark classifies the benchmark bar and delivers it, with the
// resulting regime snapshot, to every actor. A malformed bar is not
// classified; actors receive a not-ready regime for its timestamp.
func (s *Supervisor) DispatchBenchmark(ctx context.Context, b types.Bar) (regime.State, error) {
	if err := b.Validate(); err != nil {
		s.logger.Warning("skipping malformed benchmark bar: %v", err)
		return s.publishMissing(ctx, b.Timestamp)
	}
	st := s.classifier.Update(b)
	s.regime = st
	monitoring.UpdateRegime(int(st.Type))
	if change := s.classifier.LastChange(); change != nil {
		s.logger.Status("regime %s -> %s at %.8f", change.OldRegime, change.NewRegime, change.TriggerPrice)
	}
	if s.health != nil {
		s.health.RecordBar(b.Timestamp, st.Type.String())
	}

	ev := strategy.BenchmarkEvent(b, st)
	for _, sym := range s.symbols {
		if err := s.send(ctx, s.actors[sym], ev); err != nil {
			return st, err
		}
	}
	return st, nil
}

// publishMissing delivers a not-ready regime stamped ts to every actor
func (s *Supervisor) publishMissing(ctx context.Context, ts time.Time) (regime.State, error) {
	if s.regime.Ready() {
		s.logger.Warning("no benchmark bar for %s at %s, regime not ready", s.cfg.Benchmark, ts.Format(time.RFC3339))
	}
	st := regime.State{Type: regime.RegimeNotReady, Timestamp: ts}
	s.regime = st
	monitoring.UpdateRegime(int(st.Type))

	ev := strategy.MissingBenchmarkEvent(st)
	for _, sym := range s.symbols {
		if err := s.send(ctx, s.actors[sym], ev); err != nil {
			return st, err
		}
	}
	return st, nil
}

// DispatchBar delivers an instrument bar to its actor; unknown symbols are ignored
func (s *Supervisor) DispatchBar(ctx context.Context, b types.Bar) error {
	h, ok := s.actors[b.Symbol]
	if !ok {
		return nil
	}
	return s.send(ctx, h, strategy.BarEvent(b))
}

// DispatchStep delivers all bars sharing one timestamp, benchmark first
func (s *Supervisor) DispatchStep(ctx context.Context, bars []types.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	published := false
	for _, b := range bars {
		if b.Symbol == s.cfg.Benchmark {
			if _, err := s.DispatchBenchmark(ctx, b); err != nil {
				return err
			}
			published = true
		}
	}
	if !published {
		if _, err := s.publishMissing(ctx, bars[0].Timestamp); err != nil {
			return err
		}
	}
	for _, b := range bars {
		if err := s.DispatchBar(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// DeliverFill routes an execution report to the owning actor
func (s *Supervisor) DeliverFill(ctx context.Context, f types.Fill) error {
	h, ok := s.actors[f.Symbol]
	if !ok {
		return fmt.Errorf("fill for unsupervised symbol %s", f.Symbol)
	}
	return s.send(ctx, h, strategy.FillEvent(f))
}

// DeliverCarry routes a funding-rate observation to the owning actor
func (s *Supervisor) DeliverCarry(ctx context.Context, c types.CarryCost) error {
	h, ok := s.actors[c.Symbol]
	if !ok {
		return nil
	}
	return s.send(ctx, h, strategy.CarryEvent(c))
}

// Sync blocks until every actor has handled everything sent before it
func (s *Supervisor) Sync(ctx context.Context) error {
	var ack sync.WaitGroup
	ack.Add(len(s.symbols))
	for i, sym := range s.symbols {
		if err := s.send(ctx, s.actors[sym], strategy.SyncEvent(&ack)); err != nil {
			ack.Add(-(len(s.symbols) - i))
			return err
		}
	}

	waited := make(chan struct{})
	go func() {
		ack.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Regime returns the latest published regime snapshot
func (s *Supervisor) Regime() regime.State {
	return s.regime
}

// Alive reports whether the actor for symbol is still running
func (s *Supervisor) Alive(symbol string) bool {
	h, ok := s.actors[symbol]
	if !ok {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// Stop closes every actor channel, waits for the actors to flush telemetry
// and returns the failures recorded while running.
func (s *Supervisor) Stop() map[string]error {
	if !s.running {
		return nil
	}
	s.running = false
	for _, sym := range s.symbols {
		close(s.actors[sym].events)
	}
	s.wg.Wait()
	if s.health != nil {
		s.health.SetActiveActors(0)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]error, len(s.failures))
	for k, v := range s.failures {
		out[k] = v
	}
	s.logger.Info("supervisor stopped, %d actor failures", len(out))
	return out
}
