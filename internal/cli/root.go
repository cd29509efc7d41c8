// Package cli wires the engine's commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ducminhle1904/trend-engine/internal/config"
	"github.com/ducminhle1904/trend-engine/internal/logger"
)

// app carries state shared by every subcommand
type app struct {
	cfg        *config.EngineConfig
	configPath string
	envFile    string
	out        io.Writer
}

// NewRootCmd creates the root command writing human output to out
func NewRootCmd(out io.Writer) *cobra.Command {
	if out == nil {
		out = os.Stdout
	}
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:   "trend-engine",
		Short: "Adaptive trend-following signal and risk engine",
		Long: `trend-engine runs a long-only trend-following strategy over a basket of
instruments gated by a benchmark market regime. It replays CSV history
(backtest), trades a live Bybit kline feed on paper (live), downloads
history (data) and manages precomputed universe snapshots (universe).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Configuration file (a bare name resolves to configs/<name>.json)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "Environment file loaded before the configuration")

	rootCmd.AddCommand(newBacktestCmd(a))
	rootCmd.AddCommand(newLiveCmd(a))
	rootCmd.AddCommand(newUniverseCmd(a))
	rootCmd.AddCommand(newDataCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newVersionCmd(a))

	rootCmd.SetOut(out)
	return rootCmd
}

// Execute runs the root command against os.Args
func Execute() error {
	return NewRootCmd(os.Stdout).Execute()
}

// loadConfig loads .env, the JSON config and env overrides, in that order
func (a *app) loadConfig() error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// symbolFlags are the instrument overrides shared by backtest and live
type symbolFlags struct {
	symbols   string
	benchmark string
	interval  string
}

func (f *symbolFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.symbols, "symbols", "", "Comma separated traded symbols (overrides config)")
	cmd.Flags().StringVar(&f.benchmark, "benchmark", "", "Benchmark symbol (overrides config)")
	cmd.Flags().StringVar(&f.interval, "interval", "", "Bar interval such as 1d or 4h (overrides config)")
}

func (f *symbolFlags) apply(cfg *config.EngineConfig) {
	if syms := config.SplitSymbols(f.symbols); len(syms) > 0 {
		cfg.Symbols = syms
	}
	if f.benchmark != "" {
		cfg.Benchmark = f.benchmark
	}
	if f.interval != "" {
		cfg.Interval = f.interval
	}
}

// feedSymbols returns the benchmark followed by every traded symbol, without duplicates
func feedSymbols(cfg *config.EngineConfig) []string {
	out := []string{cfg.Benchmark}
	for _, s := range cfg.Symbols {
		if s != cfg.Benchmark {
			out = append(out, s)
		}
	}
	return out
}

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(a.out, a.cfg.Summary())
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "configuration is valid")
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "save [path]",
		Short: "Write the effective configuration as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.cfg.Save(args[0])
		},
	})

	return configCmd
}
