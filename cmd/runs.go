package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/impression-cli/internal/config"
	"github.com/sells-group/impression-cli/internal/report"
	"github.com/sells-group/impression-cli/internal/store"
)

type runsOptions struct {
	ID     string
	Filter store.RunFilter
	Format report.Format
}

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List saved batch runs, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source, _ := cmd.Flags().GetString("source")
		limit, _ := cmd.Flags().GetInt("limit")
		format, _ := cmd.Flags().GetString("format")

		f, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		opts := runsOptions{Filter: store.RunFilter{Source: source, Limit: limit}, Format: f}
		if len(args) == 1 {
			opts.ID = args[0]
		}
		return runRuns(cmd.Context(), cfg, opts, os.Stdout)
	},
}

func init() {
	runsCmd.Flags().String("source", "", "filter by dataset source")
	runsCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsCmd.Flags().String("format", "table", "output format for a single run: table, csv, json, or yaml")

	rootCmd.AddCommand(runsCmd)
}

func runRuns(ctx context.Context, c *config.Config, opts runsOptions, out io.Writer) error {
	if err := c.Validate("runs"); err != nil {
		return err
	}
	st, err := store.NewSQLite(c.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	if opts.ID != "" {
		run, err := st.GetRun(ctx, opts.ID)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		return report.WriteRun(out, opts.Format, run)
	}

	runs, err := st.ListRuns(ctx, opts.Filter)
	if err != nil {
		return eris.Wrap(err, "runs list")
	}
	return report.WriteRuns(out, runs)
}
