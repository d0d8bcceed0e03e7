// Package store persists batch scoring runs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/impression-cli/internal/impression"
	"github.com/sells-group/impression-cli/internal/normalize"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = eris.New("store: run not found")

// RunMeta describes the inputs of a batch run.
type RunMeta struct {
	Source   string           `json:"source" yaml:"source"`
	Segments int              `json:"segments" yaml:"segments"`
	Params   normalize.Params `json:"params" yaml:"params"`
}

// Run is a saved batch scoring run.
type Run struct {
	ID        string            `json:"id" yaml:"id"`
	Source    string            `json:"source" yaml:"source"`
	Segments  int               `json:"segments" yaml:"segments"`
	Count     int               `json:"count" yaml:"count"`
	Params    normalize.Params  `json:"params" yaml:"params"`
	Bounds    normalize.Bounds  `json:"bounds" yaml:"bounds"`
	Summary   normalize.Summary `json:"raw_summary" yaml:"raw_summary"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	Scores    []RunScore        `json:"scores,omitempty" yaml:"scores,omitempty"`
}

// RunScore is one storefront row of a saved run.
type RunScore struct {
	StorefrontID string  `json:"storefront_id" yaml:"storefront_id"`
	Lat          float64 `json:"lat" yaml:"lat"`
	Lon          float64 `json:"lon" yaml:"lon"`
	Raw          float64 `json:"raw" yaml:"raw"`
	Cleaned      float64 `json:"cleaned" yaml:"cleaned"`
	Scaled       float64 `json:"scaled" yaml:"scaled"`
	Normalized   float64 `json:"normalized" yaml:"normalized"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Source string `json:"source,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Store defines the persistence interface for scoring runs.
type Store interface {
	SaveRun(ctx context.Context, batch *impression.Batch, meta RunMeta) (*Run, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// scoresFromBatch flattens batch rows into run scores.
func scoresFromBatch(b *impression.Batch) []RunScore {
	out := make([]RunScore, len(b.Rows))
	for i, r := range b.Rows {
		out[i] = RunScore{
			StorefrontID: r.ID,
			Lat:          r.Location.Lat,
			Lon:          r.Location.Lon,
			Raw:          r.Raw,
			Cleaned:      r.Cleaned,
			Scaled:       r.Scaled,
			Normalized:   r.Normalized,
		}
	}
	return out
}
