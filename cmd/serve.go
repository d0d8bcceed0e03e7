package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/impression-cli/internal/config"
	"github.com/sells-group/impression-cli/internal/dataset"
	"github.com/sells-group/impression-cli/internal/monitoring"
	"github.com/sells-group/impression-cli/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the scoring HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		srv, err := newServer(ctx, cfg, monitoring.NewMetrics())
		if err != nil {
			return err
		}
		return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newServer loads the dataset and wires the API over a fresh engine.
func newServer(ctx context.Context, c *config.Config, m *monitoring.Metrics) (*server.Server, error) {
	env, err := initScoring(ctx, c, "serve", m)
	if err != nil {
		return nil, err
	}
	return server.New(env.Engine, server.Options{
		RateLimit:   c.Server.RateLimit,
		Burst:       c.Server.Burst,
		MaxBatch:    c.Server.MaxBatch,
		CORSOrigins: c.Server.CORSOrigins,
		Normalize:   c.Normalize.Params(),
		Metrics:     m,
		Report:      env.Dataset.Report,
		Load: func(ctx context.Context) (*dataset.Dataset, error) {
			return loadDataset(ctx, c, m)
		},
	}), nil
}
