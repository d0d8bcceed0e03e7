package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/impression-cli/internal/config"
	"github.com/sells-group/impression-cli/internal/dataset"
	"github.com/sells-group/impression-cli/internal/fetcher"
	"github.com/sells-group/impression-cli/internal/impression"
	"github.com/sells-group/impression-cli/internal/monitoring"
	"github.com/sells-group/impression-cli/internal/visibility"
)

// scoringEnv holds a loaded dataset and the engine built over it.
type scoringEnv struct {
	Dataset *dataset.Dataset
	Engine  *impression.Engine
}

func datasetOptions(c *config.Config, m *monitoring.Metrics) dataset.Options {
	return dataset.Options{
		CRS:        c.Dataset.CRS,
		Projection: c.Dataset.Projection,
		CellSize:   c.Dataset.CellSizeM,
		Fetcher:    fetcher.NewRemote(),
		Metrics:    m,
	}
}

// loadDataset loads the configured segment dataset.
func loadDataset(ctx context.Context, c *config.Config, m *monitoring.Metrics) (*dataset.Dataset, error) {
	ds, err := dataset.Load(ctx, c.Dataset.Source, datasetOptions(c, m))
	if err != nil {
		return nil, eris.Wrap(err, "load dataset")
	}
	return ds, nil
}

// newEngine builds the scoring engine from configuration.
func newEngine(c *config.Config, ds *dataset.Dataset, m *monitoring.Metrics) (*impression.Engine, error) {
	vp, err := c.Scoring.VisibilityParams()
	if err != nil {
		return nil, err
	}
	agg := impression.NewAggregator(visibility.New(vp), c.Scoring.ConfidenceParams(), c.Scoring.DiversityCoef)
	return impression.NewEngine(ds.Set, ds.Projector, agg, impression.Options{
		RadiusM:       c.Scoring.RadiusM,
		Concurrency:   c.Batch.Concurrency,
		CacheCapacity: c.Cache.Capacity,
		Metrics:       m,
	}), nil
}

// initScoring validates configuration for mode, loads the dataset, and
// builds the engine.
func initScoring(ctx context.Context, c *config.Config, mode string, m *monitoring.Metrics) (*scoringEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}
	ds, err := loadDataset(ctx, c, m)
	if err != nil {
		return nil, err
	}
	eng, err := newEngine(c, ds, m)
	if err != nil {
		return nil, err
	}
	zap.L().Info("scoring engine ready",
		zap.String("source", ds.Report.Source),
		zap.Int("segments", ds.Set.Len()),
		zap.Int("dropped", ds.Report.Dropped),
		zap.Float64("radius_m", eng.Radius()),
	)
	return &scoringEnv{Dataset: ds, Engine: eng}, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns stdout for an empty path, otherwise a created file.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "create output %s", path)
	}
	return f, nil
}
