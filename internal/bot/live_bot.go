// Package bot runs the engine against a live market data feed with paper execution.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
	engerrors "github.com/ducminhle1904/trend-engine/internal/errors"
	"github.com/ducminhle1904/trend-engine/internal/exchange/bybit"
	"github.com/ducminhle1904/trend-engine/internal/logger"
	"github.com/ducminhle1904/trend-engine/internal/monitoring"
	"github.com/ducminhle1904/trend-engine/internal/notifications"
	"github.com/ducminhle1904/trend-engine/pkg/data"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

// MarketSource provides closed historical bars for warm-up
type MarketSource interface {
	FetchBars(ctx context.Context, symbol string, interval bybit.KlineInterval, limit int) ([]types.Bar, error)
}

// BarStream delivers closed bars until ctx is done
type BarStream interface {
	Run(ctx context.Context, out chan<- types.Bar) error
}

// CarryFeed emits cost-of-carry observations until ctx is done
type CarryFeed interface {
	Run(ctx context.Context, emit func(types.CarryCost))
}

// Deps are the live bot's collaborators. Carry, Health, Notifier and Out may be nil.
type Deps struct {
	Source   MarketSource
	Stream   BarStream
	Carry    CarryFeed
	Health   *monitoring.HealthChecker
	Notifier notifications.Notifier
	Logger   *logger.Logger
	Out      io.Writer
}

// Options tune the live loop
type Options struct {
	Interval    bybit.KlineInterval
	WarmupBars  int
	StepTimeout time.Duration // a partially received step is dispatched after this long
	Environment string
}

// LiveBot feeds closed bars of the benchmark and every traded symbol through
// one engine session. Warm-up history is replayed through the same session
// before the stream is consumed.
type LiveBot struct {
	engine  *backtest.Engine
	symbols []string
	deps    Deps
	opts    Options
	logger  *logger.Logger

	lastWarmup time.Time
	steps      int
}

// NewLiveBot creates a bot for the feed symbols (benchmark plus traded symbols)
func NewLiveBot(engine *backtest.Engine, feedSymbols []string, deps Deps, opts Options) (*LiveBot, error) {
	if engine == nil {
		return nil, engerrors.NewConfigurationError("bot", "new", "engine is required")
	}
	if deps.Source == nil || deps.Stream == nil {
		return nil, engerrors.NewConfigurationError("bot", "new", "market source and stream are required")
	}
	if len(feedSymbols) == 0 {
		return nil, engerrors.NewConfigurationError("bot", "new", "at least one feed symbol is required")
	}
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 30 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return &LiveBot{
		engine:  engine,
		symbols: feedSymbols,
		deps:    deps,
		opts:    opts,
		logger:  deps.Logger,
	}, nil
}

// Run warms up, then trades the stream until ctx is done or the stream ends.
// The results cover warm-up and live steps; cancellation is not an error.
func (bot *LiveBot) Run(ctx context.Context) (*backtest.Results, error) {
	sess, err := bot.engine.NewSession(bot.deps.Health)
	if err != nil {
		return nil, err
	}
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}
	bot.printStartupInfo()
	bot.alert(notifications.LevelInfo, "live session started: %d symbols, interval %s, %s",
		len(bot.symbols), bot.opts.Interval, bot.opts.Environment)

	runErr := bot.warmUp(ctx, sess)
	if runErr == nil {
		bot.logger.Status("warm-up complete: %d steps up to %s", bot.steps, bot.lastWarmup.Format(time.RFC3339))
		runErr = bot.tradingLoop(ctx, sess)
	}

	res := sess.Finish()
	bot.logger.Status("live session ended: %d steps, %d trades, %d actor failures", bot.steps, res.TotalTrades, len(res.Failures))
	if ctx.Err() != nil && errors.Is(runErr, ctx.Err()) {
		runErr = nil
	}
	bot.alertSummary(res, runErr)
	return res, runErr
}

// warmUp replays recent closed history for every feed symbol
func (bot *LiveBot) warmUp(ctx context.Context, sess *backtest.Session) error {
	if bot.opts.WarmupBars <= 0 {
		return nil
	}
	series := make(map[string][]types.Bar, len(bot.symbols))
	for _, sym := range bot.symbols {
		bars, err := bot.deps.Source.FetchBars(ctx, sym, bot.opts.Interval, bot.opts.WarmupBars)
		if err != nil {
			monitoring.RecordError("warmup")
			return engerrors.WrapError(err, engerrors.ErrorCategoryNetwork, "bot", "warmup "+sym)
		}
		series[sym] = bars
		bot.logger.Info("warm-up %s: %d bars", sym, len(bars))
	}

	for _, step := range data.MergeSteps(series) {
		if err := sess.Step(ctx, step); err != nil {
			return err
		}
		bot.steps++
		bot.lastWarmup = step[0].Timestamp
	}
	return nil
}

func (bot *LiveBot) tradingLoop(ctx context.Context, sess *backtest.Session) error {
	feedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	bars := make(chan types.Bar)
	streamDone := make(chan error, 1)
	go func() { streamDone <- bot.deps.Stream.Run(feedCtx, bars) }()

	carry := make(chan types.CarryCost, len(bot.symbols))
	if bot.deps.Carry != nil {
		go bot.deps.Carry.Run(feedCtx, func(c types.CarryCost) {
			select {
			case carry <- c:
			case <-feedCtx.Done():
			}
		})
	}

	buf := newStepBuffer(bot.symbols, bot.lastWarmup)
	var timer *time.Timer
	var timeout <-chan time.Time
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, timeout = nil, nil
	}
	defer stopTimer()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-streamDone:
			if step := buf.flush(); step != nil {
				if serr := bot.process(ctx, sess, step); serr != nil {
					return serr
				}
			}
			if err != nil {
				return fmt.Errorf("bar stream: %w", err)
			}
			return nil

		case c := <-carry:
			if err := sess.Carry(ctx, c); err != nil {
				return err
			}

		case b := <-bars:
			ready, opened := buf.add(b)
			for _, step := range ready {
				if err := bot.process(ctx, sess, step); err != nil {
					return err
				}
			}
			if !buf.pending() {
				stopTimer()
			} else if opened {
				stopTimer()
				timer = time.NewTimer(bot.opts.StepTimeout)
				timeout = timer.C
			}

		case <-timeout:
			timer, timeout = nil, nil
			if step := buf.flush(); step != nil {
				bot.logger.Warning("dispatching incomplete step at %s: %d of %d symbols",
					step[0].Timestamp.Format(time.RFC3339), len(step), len(bot.symbols))
				if err := bot.process(ctx, sess, step); err != nil {
					return err
				}
			}
		}
	}
}

func (bot *LiveBot) process(ctx context.Context, sess *backtest.Session, step []types.Bar) error {
	if err := sess.Step(ctx, step); err != nil {
		return err
	}
	bot.steps++
	bot.logStatus(sess, step)
	return nil
}

// Steps returns how many steps (warm-up included) have been dispatched
func (bot *LiveBot) Steps() int {
	return bot.steps
}
