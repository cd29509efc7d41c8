package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
	"github.com/ducminhle1904/trend-engine/internal/bot"
	"github.com/ducminhle1904/trend-engine/internal/exchange/bybit"
	"github.com/ducminhle1904/trend-engine/internal/logger"
	"github.com/ducminhle1904/trend-engine/internal/monitoring"
	"github.com/ducminhle1904/trend-engine/internal/notifications"
	"github.com/ducminhle1904/trend-engine/pkg/reporting"
)

type liveFlags struct {
	symbolFlags

	testnet     bool
	category    string
	warmup      int
	stepTimeout time.Duration
	output      string
	consoleOnly bool
}

func newLiveCmd(a *app) *cobra.Command {
	f := &liveFlags{}

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Paper trade the live Bybit kline feed",
		Long: `Warm up on recent REST history, then consume closed klines from the Bybit
public WebSocket and fill intents on a paper venue. Linear contracts also poll
funding rates as carry. Stops on SIGINT/SIGTERM and reports the session.`,
		Example: `  trend-engine live --symbols ETHUSDT,SOLUSDT --interval 4h --testnet
  trend-engine live --config portfolio --console-only`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runLive(ctx, cmd, f)
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&f.testnet, "testnet", false, "Use the Bybit testnet (overrides config)")
	cmd.Flags().StringVar(&f.category, "category", "", "Product category: linear or spot (overrides config)")
	cmd.Flags().IntVar(&f.warmup, "warmup", -1, "Warm-up bars per symbol (-1 uses config)")
	cmd.Flags().DurationVar(&f.stepTimeout, "step-timeout", 30*time.Second, "Dispatch a partially received step after this long")
	cmd.Flags().StringVar(&f.output, "output", "results", "Results root directory")
	cmd.Flags().BoolVar(&f.consoleOnly, "console-only", false, "Console output only (no files)")

	return cmd
}

func (a *app) runLive(ctx context.Context, cmd *cobra.Command, f *liveFlags) error {
	cfg := a.cfg
	f.apply(cfg)
	if cmd.Flags().Changed("testnet") {
		cfg.Exchange.Testnet = f.testnet
	}
	if f.category != "" {
		cfg.Exchange.Category = f.category
	}
	if f.warmup >= 0 {
		cfg.Exchange.WarmupBars = f.warmup
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	interval, err := bybit.ParseInterval(cfg.Interval)
	if err != nil {
		return err
	}

	log, err := logger.NewFile(cfg.LogDir, "portfolio", cfg.Interval)
	if err != nil {
		return err
	}
	defer log.Close()

	snapshots, err := loadUniverse(ctx, cfg.Universe)
	if err != nil {
		return err
	}
	engine, err := backtest.NewEngine(cfg.BacktestConfig(), snapshots, log)
	if err != nil {
		return err
	}

	client := bybit.NewClient(bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Category:  cfg.Exchange.Category,
		Testnet:   cfg.Exchange.Testnet,
	})

	symbols := feedSymbols(cfg)
	health := monitoring.NewHealthChecker(cfg.Monitoring.StaleAfter.Std())

	stream := bybit.NewKlineStream(client.StreamURL(), interval, symbols, log)
	stream.OnConnect(health.SetConnected)

	var carry bot.CarryFeed
	if client.Category() == "linear" {
		carry = bybit.NewFundingPoller(client, cfg.Symbols, cfg.Exchange.FundingPollInterval.Std(), log)
	}

	var notifier notifications.Notifier
	if cfg.Telegram.Enabled {
		notifier = notifications.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatID)
	}

	liveBot, err := bot.NewLiveBot(engine, symbols, bot.Deps{
		Source:   client,
		Stream:   stream,
		Carry:    carry,
		Health:   health,
		Notifier: notifier,
		Logger:   log,
		Out:      a.out,
	}, bot.Options{
		Interval:    interval,
		WarmupBars:  cfg.Exchange.WarmupBars,
		StepTimeout: f.stepTimeout,
		Environment: client.GetEnvironment(),
	})
	if err != nil {
		return err
	}

	if cfg.Monitoring.Enabled {
		srv := newMonitoringServer(cfg.Monitoring.Port, health)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.LogError("monitoring server", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
		fmt.Fprintf(a.out, "metrics on :%d/metrics, health on :%d/health\n", cfg.Monitoring.Port, cfg.Monitoring.Port)
	}

	res, runErr := liveBot.Run(ctx)
	if res == nil {
		return runErr
	}

	reporter := reporting.NewReportingManager(reporting.ReportingConfig{
		EnableConsole:   true,
		EnableFiles:     !f.consoleOnly,
		OutputDirectory: f.output,
		CSVEnabled:      true,
		ExcelEnabled:    true,
		JSONEnabled:     true,
		TradeRows:       20,
	}, a.out)
	label := "LIVE_" + reportLabel(cfg)
	if _, err := reporter.ReportResults(res, label, cfg.Interval); err != nil {
		log.LogError("report", err)
	}
	if err := reporter.ReportConfig(cfg, label, cfg.Interval); err != nil {
		log.LogError("report config", err)
	}
	return runErr
}

// newMonitoringServer serves prometheus metrics and the health document
func newMonitoringServer(port int, health *monitoring.HealthChecker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.NewMetricsHandler())
	mux.Handle("/health", health)
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
