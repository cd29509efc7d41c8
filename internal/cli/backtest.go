package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/trend-engine/internal/backtest"
	"github.com/ducminhle1904/trend-engine/internal/config"
	"github.com/ducminhle1904/trend-engine/internal/logger"
	"github.com/ducminhle1904/trend-engine/internal/universe"
	"github.com/ducminhle1904/trend-engine/pkg/data"
	"github.com/ducminhle1904/trend-engine/pkg/reporting"
	"github.com/ducminhle1904/trend-engine/pkg/types"
)

const dateLayout = "2006-01-02"

type backtestFlags struct {
	symbolFlags

	dataRoot  string
	exchange  string
	csvFormat string
	start     string
	end       string
	funding   string

	output      string
	consoleOnly bool
	csv         bool
	xlsx        bool
	json        bool
	trades      int

	riskGrid string
	workers  int
}

func newBacktestCmd(a *app) *cobra.Command {
	f := &backtestFlags{}

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay CSV history through the strategy",
		Long: `Replay historical bars of the benchmark and every traded symbol through
the strategy actors, filling intents on a paper venue at the next bar's open.

Data files are looked up as {data-root}/{SYMBOL}_{interval}.csv,
{data-root}/{SYMBOL}.csv or {data-root}/{exchange}/{category}/{SYMBOL}/{minutes}/candles.csv.`,
		Example: `  trend-engine backtest --symbols ETHUSDT,SOLUSDT --interval 1d
  trend-engine backtest --config portfolio --start 2023-01-01 --end 2024-12-31
  trend-engine backtest --risk-grid 0.5,1,2 --workers 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBacktest(cmd.Context(), f)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&f.dataRoot, "data-root", "", "Data root directory (overrides config)")
	cmd.Flags().StringVar(&f.exchange, "exchange", "bybit", "Exchange directory used by the data layout")
	cmd.Flags().StringVar(&f.csvFormat, "csv-format", "default", "CSV layout: default (date strings) or bybit (unix ms)")
	cmd.Flags().StringVar(&f.start, "start", "", "First bar date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "Last bar date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.funding, "funding", "", "Funding-rate CSV (timestamp,symbol,rate) charged as carry")

	cmd.Flags().StringVar(&f.output, "output", "results", "Results root directory")
	cmd.Flags().BoolVar(&f.consoleOnly, "console-only", false, "Console output only (no files)")
	cmd.Flags().BoolVar(&f.csv, "csv", true, "Write trades.csv")
	cmd.Flags().BoolVar(&f.xlsx, "xlsx", true, "Write results.xlsx")
	cmd.Flags().BoolVar(&f.json, "json", true, "Write summary.json and config.json")
	cmd.Flags().IntVar(&f.trades, "trades", 20, "Trades printed to the console (0 for none, -1 for all)")

	cmd.Flags().StringVar(&f.riskGrid, "risk-grid", "", "Comma separated base risks in percent; runs one replay per value")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel replays for --risk-grid (0 uses every CPU)")

	return cmd
}

func (a *app) runBacktest(ctx context.Context, f *backtestFlags) error {
	cfg := a.cfg
	f.apply(cfg)
	if f.dataRoot != "" {
		cfg.DataRoot = f.dataRoot
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	start, err := parseDate(f.start)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end, err := parseDate(f.end)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}
	if !end.IsZero() {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	grid, err := parseRiskGrid(f.riskGrid)
	if err != nil {
		return err
	}

	format, err := csvFormat(f.csvFormat)
	if err != nil {
		return err
	}
	series, err := data.NewDataManager(format).LoadSeries(cfg.DataRoot, f.exchange, cfg.Interval, feedSymbols(cfg), start, end)
	if err != nil {
		return err
	}
	steps := data.MergeSteps(series)
	if len(steps) == 0 {
		return fmt.Errorf("no bars in the selected range")
	}

	var carry []types.CarryCost
	if f.funding != "" {
		if carry, err = data.LoadCarryCSV(f.funding); err != nil {
			return fmt.Errorf("load funding: %w", err)
		}
	}

	snapshots, err := loadUniverse(ctx, cfg.Universe)
	if err != nil {
		return err
	}

	log := logger.NewConsole("portfolio", cfg.Interval)
	log.Info("backtest: %s, %d steps from %s to %s", cfg.Summary(), len(steps),
		steps[0][0].Timestamp.Format(dateLayout), steps[len(steps)-1][0].Timestamp.Format(dateLayout))

	reporter := reporting.NewReportingManager(reporting.ReportingConfig{
		EnableConsole:   true,
		EnableFiles:     !f.consoleOnly,
		OutputDirectory: f.output,
		CSVEnabled:      f.csv,
		ExcelEnabled:    f.xlsx,
		JSONEnabled:     f.json,
		TradeRows:       f.trades,
	}, a.out)

	if len(grid) > 0 {
		return a.runRiskGrid(ctx, cfg, grid, f.workers, steps, carry, snapshots, log, reporter)
	}

	engine, err := backtest.NewEngine(cfg.BacktestConfig(), snapshots, log)
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, steps, carry)
	if err != nil {
		return err
	}

	label := reportLabel(cfg)
	dir, err := reporter.ReportResults(res, label, cfg.Interval)
	if err != nil {
		return err
	}
	if err := reporter.ReportConfig(cfg, label, cfg.Interval); err != nil {
		return err
	}
	if dir != "" {
		fmt.Fprintf(a.out, "results written to %s\n", dir)
	}
	return nil
}

// runRiskGrid replays the same data once per base risk and prints a comparison
func (a *app) runRiskGrid(ctx context.Context, cfg *config.EngineConfig, grid []float64, workers int,
	steps [][]types.Bar, carry []types.CarryCost, snapshots []universe.Snapshot,
	log *logger.Logger, reporter *reporting.ReportingManager) error {

	var rows []reporting.ComparisonRow
	var jobs []backtest.Job
	for _, risk := range grid {
		label := riskLabel(risk)
		bc := cfg.BacktestConfig()
		bc.Actor.Risk.BaseRisk = risk
		engine, err := backtest.NewEngine(bc, snapshots, log)
		if err != nil {
			rows = append(rows, reporting.ComparisonRow{Label: label, Err: err})
			continue
		}
		jobs = append(jobs, backtest.Job{ID: label, Engine: engine})
	}

	progress := backtest.NewProgressTracker(len(jobs))
	for _, jr := range backtest.RunBatch(ctx, jobs, workers, steps, carry, progress) {
		rows = append(rows, reporting.ComparisonRow{Label: jr.ID, Results: jr.Results, Err: jr.Error})
		if jr.Error != nil {
			continue
		}
		if _, err := reporter.ReportResults(jr.Results, reportLabel(cfg)+"_"+jr.ID, cfg.Interval); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sortRows(rows, grid)
	reporter.ReportComparison(rows)
	done, total, _, elapsed := progress.GetProgress()
	fmt.Fprintf(a.out, "%d/%d replays finished in %s\n", done, total, elapsed.Round(time.Millisecond))
	return nil
}

// loadUniverse returns nil snapshots for a static universe
func loadUniverse(ctx context.Context, cfg universe.Config) ([]universe.Snapshot, error) {
	store, err := universe.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open universe: %w", err)
	}
	if store == nil {
		return nil, nil
	}
	defer store.Close()

	snaps, err := universe.LoadPrepared(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	return snaps, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

// parseRiskGrid parses percentages such as "0.5,1,2" into fractions
func parseRiskGrid(s string) ([]float64, error) {
	var out []float64
	seen := make(map[float64]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pct, err := strconv.ParseFloat(part, 64)
		if err != nil || pct <= 0 || pct > 100 {
			return nil, fmt.Errorf("invalid --risk-grid value %q (percent in (0, 100])", part)
		}
		if seen[pct] {
			continue
		}
		seen[pct] = true
		out = append(out, pct/100)
	}
	return out, nil
}

func riskLabel(risk float64) string {
	return fmt.Sprintf("risk_%.2fpct", risk*100)
}

// sortRows orders rows like the grid was given
func sortRows(rows []reporting.ComparisonRow, grid []float64) {
	order := make(map[string]int, len(grid))
	for i, r := range grid {
		order[riskLabel(r)] = i
	}
	sort.SliceStable(rows, func(i, j int) bool { return order[rows[i].Label] < order[rows[j].Label] })
}

func csvFormat(name string) (data.CSVColumnMapping, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return data.DefaultCSVFormat, nil
	case "bybit":
		return data.BybitCSVFormat, nil
	default:
		return data.CSVColumnMapping{}, fmt.Errorf("unknown --csv-format %q (use default or bybit)", name)
	}
}

// reportLabel names a run after its basket
func reportLabel(cfg *config.EngineConfig) string {
	if len(cfg.Symbols) == 1 {
		return cfg.Symbols[0]
	}
	return "PORTFOLIO"
}
