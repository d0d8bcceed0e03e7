package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/impression-cli/internal/config"
	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/report"
)

type segmentsOptions struct {
	Location *geo.Location
	Format   report.Format
}

var segmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "Inspect the segment dataset",
	Long: `Load the segment dataset and print its load report. With --lat and --lon,
also list every road within the selection radius of that point.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, _ := cmd.Flags().GetString("format")
		f, err := report.ParseFormat(format)
		if err != nil {
			return err
		}

		opts := segmentsOptions{Format: f}
		if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
			lat, _ := cmd.Flags().GetFloat64("lat")
			lon, _ := cmd.Flags().GetFloat64("lon")
			opts.Location = &geo.Location{Lat: lat, Lon: lon}
		}
		return runSegments(cmd.Context(), cfg, opts, os.Stdout)
	},
}

func init() {
	f := segmentsCmd.Flags()
	f.Float64("lat", 0, "latitude for the nearby-roads listing")
	f.Float64("lon", 0, "longitude for the nearby-roads listing")
	f.String("format", "table", "output format: table, csv, json, or yaml")
	segmentsCmd.MarkFlagsRequiredTogether("lat", "lon")

	rootCmd.AddCommand(segmentsCmd)
}

func runSegments(ctx context.Context, c *config.Config, opts segmentsOptions, out io.Writer) error {
	env, err := initScoring(ctx, c, "segments", nil)
	if err != nil {
		return err
	}
	if opts.Location == nil {
		return report.WriteLoadReport(out, opts.Format, env.Dataset.Report)
	}

	p, segs, err := env.Engine.Nearby(*opts.Location)
	if err != nil {
		return err
	}
	if opts.Format == report.Table {
		if err := report.WriteLoadReport(out, report.Table, env.Dataset.Report); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "\nRoads within %.0f m of %.6f, %.6f:\n", env.Engine.Radius(), opts.Location.Lat, opts.Location.Lon)
	}
	return report.WriteRoads(out, opts.Format, report.Roads(segs, p))
}
