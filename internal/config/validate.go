package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/impression-cli/internal/geo"
)

// Validate checks that the configuration is usable for the given mode:
// "score", "batch", "segments", "serve", or "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "runs":
		if c.Store.Path == "" {
			errs = append(errs, "store.path is required")
		}
		return joinErrors(errs)
	case "score", "batch", "segments", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	errs = append(errs, c.validateScoring()...)

	if c.Dataset.Source == "" {
		errs = append(errs, "dataset.source is required")
	}
	if _, err := geo.NewProjector(c.Dataset.Projection, geo.Location{}); err != nil {
		errs = append(errs, fmt.Sprintf("dataset.projection %q is not supported (use local or epsg:3857)", c.Dataset.Projection))
	}
	if c.Dataset.CellSizeM < 0 {
		errs = append(errs, "dataset.cell_size_m must be >= 0")
	}
	if c.Cache.Capacity < 1 {
		errs = append(errs, "cache.capacity must be >= 1")
	}
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > 256 {
		errs = append(errs, "batch.concurrency must be between 1 and 256")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Server.RateLimit <= 0 {
			errs = append(errs, "server.rate_limit must be > 0")
		}
		if c.Server.Burst < 1 {
			errs = append(errs, "server.burst must be >= 1")
		}
	}

	return joinErrors(errs)
}

func (c *Config) validateScoring() []string {
	var errs []string
	s := c.Scoring

	if s.NearM < 0 || s.NearM >= s.FarM {
		errs = append(errs, "scoring.near_m must be >= 0 and < scoring.far_m")
	}
	if s.RadiusM < s.FarM {
		errs = append(errs, "scoring.radius_m must be >= scoring.far_m")
	}
	if s.MinSample < 0 || s.MinSample >= s.OptimalSample {
		errs = append(errs, "scoring.min_sample must be >= 0 and < scoring.optimal_sample")
	}
	if s.ConfidenceFloor < 0 || s.ConfidenceFloor > 1 {
		errs = append(errs, "scoring.confidence_floor must be between 0 and 1")
	}
	if s.DiversityCoef < 0 {
		errs = append(errs, "scoring.diversity_coef must be >= 0")
	}
	for k, w := range s.RoadWeights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("scoring.road_weights.%s must be >= 0", k))
		}
	}
	if _, err := s.VisibilityParams(); err != nil {
		errs = append(errs, strings.TrimPrefix(err.Error(), "config: "))
	}

	n := c.Normalize
	if n.Min >= n.Max {
		errs = append(errs, "normalize.min must be < normalize.max")
	}
	if n.Fence <= 0 {
		errs = append(errs, "normalize.fence must be > 0")
	}
	return errs
}

func joinErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return eris.Errorf("config: %s", strings.Join(errs, "; "))
}
