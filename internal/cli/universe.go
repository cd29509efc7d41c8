package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ducminhle1904/trend-engine/internal/universe"
)

func newUniverseCmd(a *app) *cobra.Command {
	universeCmd := &cobra.Command{
		Use:   "universe",
		Short: "Manage precomputed universe snapshots",
	}
	universeCmd.AddCommand(newUniverseImportCmd(a))
	universeCmd.AddCommand(newUniverseShowCmd(a))
	return universeCmd
}

func newUniverseImportCmd(a *app) *cobra.Command {
	var target universe.Config

	cmd := &cobra.Command{
		Use:   "import [windows.json]",
		Short: "Copy snapshot windows from a JSON file into a store",
		Long: `Read {"windows": [...]} from a JSON file, check that the windows do not
overlap and write them to the target store. Without --to the configured
universe store is the target.`,
		Example: `  trend-engine universe import universe.json --to sqlite --path data/universe.db
  trend-engine universe import universe.json --to redis --redis-addr localhost:6379`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target.Source == "" {
				target = a.cfg.Universe
			}
			if target.Source == "" {
				return fmt.Errorf("no target store: pass --to or configure universe.source")
			}
			if err := target.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			snaps, err := universe.NewFileStore(args[0]).Load(ctx)
			if err != nil {
				return err
			}
			if _, err := universe.Prepare(snaps); err != nil {
				return err
			}

			store, err := universe.Open(ctx, target)
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(ctx, snaps); err != nil {
				return fmt.Errorf("save universe: %w", err)
			}
			fmt.Fprintf(a.out, "imported %d windows into %s store\n", len(snaps), target.Source)
			return nil
		},
	}

	cmd.Flags().StringVar(&target.Source, "to", "", "Target store: file, sqlite or redis")
	cmd.Flags().StringVar(&target.Path, "path", "", "Target path for file and sqlite stores")
	cmd.Flags().StringVar(&target.RedisAddr, "redis-addr", "", "Redis address")
	cmd.Flags().StringVar(&target.RedisPassword, "redis-password", "", "Redis password")
	cmd.Flags().IntVar(&target.RedisDB, "redis-db", 0, "Redis database")
	cmd.Flags().StringVar(&target.RedisKey, "redis-key", "", "Redis key holding the windows")

	return cmd
}

func newUniverseShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the configured universe windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			snaps, err := loadUniverse(cmd.Context(), a.cfg.Universe)
			if err != nil {
				return err
			}
			if snaps == nil {
				fmt.Fprintf(a.out, "static universe: %s\n", strings.Join(a.cfg.Symbols, ","))
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(a.out)
			t.SetTitle("UNIVERSE WINDOWS")
			t.SetStyle(table.StyleRounded)
			t.AppendHeader(table.Row{"Version", "Start", "End", "Symbols"})
			for _, s := range snaps {
				end := "open"
				if !s.End.IsZero() {
					end = s.End.Format(time.RFC3339)
				}
				t.AppendRow(table.Row{s.Version, s.Start.Format(time.RFC3339), end, strings.Join(s.Symbols, ",")})
			}
			t.Render()
			return nil
		},
	}
}
