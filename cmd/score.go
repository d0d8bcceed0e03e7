package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/impression-cli/internal/config"
	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/report"
)

type scoreOptions struct {
	Location geo.Location
	Explain  bool
	Format   report.Format
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a single storefront location",
	Long: `Compute the raw impression score of one storefront against the segment dataset.

Examples:
  # Raw score only
  impressions score --lat 40.7484 --lon -73.9857

  # Per-road breakdown as JSON
  impressions score --lat 40.7484 --lon -73.9857 --explain --format json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		explain, _ := cmd.Flags().GetBool("explain")
		format, _ := cmd.Flags().GetString("format")

		f, err := report.ParseFormat(format)
		if err != nil {
			return err
		}
		opts := scoreOptions{Location: geo.Location{Lat: lat, Lon: lon}, Explain: explain, Format: f}
		return runScore(cmd.Context(), cfg, opts, os.Stdout)
	},
}

func init() {
	f := scoreCmd.Flags()
	f.Float64("lat", 0, "storefront latitude")
	f.Float64("lon", 0, "storefront longitude")
	f.Bool("explain", false, "print the visibility breakdown of every nearby road")
	f.String("format", "table", "output format: table, json, or yaml")
	_ = scoreCmd.MarkFlagRequired("lat")
	_ = scoreCmd.MarkFlagRequired("lon")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(ctx context.Context, c *config.Config, opts scoreOptions, out io.Writer) error {
	if err := opts.Location.Validate(); err != nil {
		return err
	}
	env, err := initScoring(ctx, c, "score", nil)
	if err != nil {
		return err
	}
	res, err := env.Engine.Evaluate(opts.Location)
	if err != nil {
		return err
	}
	return report.WriteScore(out, opts.Format, report.NewScoreDocument(opts.Location, res, opts.Explain))
}
