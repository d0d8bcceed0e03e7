package config

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/impression-cli/internal/impression"
	"github.com/sells-group/impression-cli/internal/normalize"
	"github.com/sells-group/impression-cli/internal/segment"
	"github.com/sells-group/impression-cli/internal/visibility"
)

// VisibilityParams returns the model parameters. Configured weights overlay
// the built-in tables, so a partial table only changes the listed entries.
func (s ScoringConfig) VisibilityParams() (visibility.Params, error) {
	p := visibility.DefaultParams()
	p.NearM = s.NearM
	p.FarM = s.FarM

	for k, w := range s.RoadWeights {
		p.RoadWeights[segment.ParseRoadClass(k)] = w
	}
	for k, w := range s.DirectionWeights {
		d, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return p, eris.Errorf("config: scoring.direction_weights key %q is not an integer", k)
		}
		p.DirectionWeights[segment.Direction(d)] = w
	}
	return p, nil
}

// ConfidenceParams returns the sample-count confidence ramp.
func (s ScoringConfig) ConfidenceParams() impression.ConfidenceParams {
	return impression.ConfidenceParams{
		MinSample:     s.MinSample,
		OptimalSample: s.OptimalSample,
		Floor:         s.ConfidenceFloor,
	}
}

// Params returns the normalizer parameters.
func (n NormalizeConfig) Params() normalize.Params {
	return normalize.Params{Min: n.Min, Max: n.Max, Fence: n.Fence}
}
