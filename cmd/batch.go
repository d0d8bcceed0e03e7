package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/impression-cli/internal/config"
	"github.com/sells-group/impression-cli/internal/db"
	"github.com/sells-group/impression-cli/internal/report"
	"github.com/sells-group/impression-cli/internal/store"
)

type batchOptions struct {
	Input  string
	Output string
	Format report.Format
	Save   bool
	Stats  bool
	Export bool
}

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Score and normalize a storefront CSV",
	Long: `Score every storefront in a CSV (id, lat, lon) in parallel, then normalize the
raw scores of the whole population into the configured index range.

Examples:
  # Table to stdout
  impressions batch --input storefronts.csv

  # Spreadsheet with summary sheet, saved to the run store
  impressions batch --input storefronts.csv --output scores.xlsx --save

  # Copy the scores into PostgreSQL
  impressions batch --input storefronts.csv --export`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")
		save, _ := cmd.Flags().GetBool("save")
		stats, _ := cmd.Flags().GetBool("stats")
		export, _ := cmd.Flags().GetBool("export")

		f, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("format") {
			f = report.FormatForPath(output, f)
		}

		opts := batchOptions{Input: input, Output: output, Format: f, Save: save, Stats: stats, Export: export}
		return runBatch(ctx, cfg, opts, os.Stdout)
	},
}

func init() {
	f := batchCmd.Flags()
	f.String("input", "", "storefront CSV with id, lat, lon columns (- for stdin)")
	f.String("output", "", "output file (default stdout)")
	f.String("format", "table", "output format: table, csv, json, yaml, or xlsx")
	f.Bool("save", false, "save the run to the SQLite run store")
	f.Bool("stats", false, "print population statistics")
	f.Bool("export", false, "copy scores into PostgreSQL (export.database_url)")
	_ = batchCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(batchCmd)
}

func runBatch(ctx context.Context, c *config.Config, opts batchOptions, stdout io.Writer) error {
	log := zap.L().With(zap.String("command", "batch"))

	if opts.Format == report.XLSX && opts.Output == "" {
		return eris.New("batch: xlsx output needs --output")
	}
	if opts.Export && c.Export.DatabaseURL == "" {
		return eris.New("batch: --export needs export.database_url")
	}

	stores, err := readStorefrontsFile(opts.Input)
	if err != nil {
		return err
	}

	env, err := initScoring(ctx, c, "batch", nil)
	if err != nil {
		return err
	}

	b, err := env.Engine.ScoreBatch(ctx, stores, c.Normalize.Params())
	if err != nil {
		return err
	}
	log.Info("batch scored",
		zap.Int("storefronts", len(b.Rows)),
		zap.Float64("median_raw", b.Raw.Median),
	)

	out, err := openOutput(opts.Output)
	if err != nil {
		return err
	}
	if err := report.WriteBatch(out, opts.Format, b); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return eris.Wrap(err, "batch: close output")
	}

	if opts.Stats {
		if err := report.WriteSummary(stdout, report.Table, b); err != nil {
			return err
		}
	}

	if !opts.Save && !opts.Export {
		return nil
	}

	meta := store.RunMeta{
		Source:   env.Dataset.Report.Source,
		Segments: env.Dataset.Set.Len(),
		Params:   c.Normalize.Params(),
	}
	st, err := store.NewSQLite(c.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck
	if err := st.Migrate(ctx); err != nil {
		return err
	}
	run, err := st.SaveRun(ctx, b, meta)
	if err != nil {
		return err
	}
	log.Info("run saved", zap.String("run_id", run.ID), zap.String("store", c.Store.Path))

	if opts.Export {
		return exportRun(ctx, c, run)
	}
	return nil
}

func exportRun(ctx context.Context, c *config.Config, run *store.Run) error {
	pool, err := db.Connect(ctx, c.Export.DatabaseURL, db.PoolConfig{})
	if err != nil {
		return eris.Wrap(err, "batch: connect export database")
	}
	defer pool.Close()

	exp, err := store.NewExporter(pool, c.Export.Table)
	if err != nil {
		return err
	}
	if err := exp.Migrate(ctx); err != nil {
		return err
	}
	_, err = exp.Export(ctx, run)
	return err
}
