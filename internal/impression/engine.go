package impression

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/monitoring"
	"github.com/sells-group/impression-cli/internal/normalize"
	"github.com/sells-group/impression-cli/internal/segment"
	"github.com/sells-group/impression-cli/internal/visibility"
)

// DefaultRadiusM is the selection radius in meters.
const DefaultRadiusM = 150.0

// Options configures an Engine.
type Options struct {
	RadiusM       float64
	Concurrency   int
	CacheCapacity int
	Metrics       *monitoring.Metrics
}

// Storefront is one location in a scoring batch.
type Storefront struct {
	ID       string       `json:"id" yaml:"id"`
	Location geo.Location `json:"location" yaml:"location"`
}

// BatchRow is one scored storefront of a batch.
type BatchRow struct {
	Storefront
	normalize.Score
}

// Batch is the outcome of scoring and normalizing a population.
type Batch struct {
	Rows    []BatchRow        `json:"rows" yaml:"rows"`
	Bounds  normalize.Bounds  `json:"bounds" yaml:"bounds"`
	Raw     normalize.Summary `json:"raw_summary" yaml:"raw_summary"`
	Indexed normalize.Summary `json:"normalized_summary" yaml:"normalized_summary"`
}

// Engine scores storefronts against an immutable segment set. The set can be
// swapped with Reload, which also purges the cache.
type Engine struct {
	mu   sync.RWMutex
	set  *segment.Set
	proj geo.Projector

	agg         *Aggregator
	radius      float64
	concurrency int
	cache       *Cache
	metrics     *monitoring.Metrics
}

// NewEngine builds an engine over set, projecting locations with proj.
func NewEngine(set *segment.Set, proj geo.Projector, agg *Aggregator, opts Options) *Engine {
	if agg == nil {
		agg = NewAggregator(nil, DefaultConfidence(), DefaultDiversityCoef)
	}
	if opts.RadiusM <= 0 {
		opts.RadiusM = DefaultRadiusM
	}
	if far := agg.Model().Params().FarM; opts.RadiusM < far {
		zap.L().Warn("impression: selection radius below far threshold, raising it",
			zap.Float64("radius_m", opts.RadiusM),
			zap.Float64("far_m", far),
		)
		opts.RadiusM = far
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &Engine{
		set:         set,
		proj:        proj,
		agg:         agg,
		radius:      opts.RadiusM,
		concurrency: opts.Concurrency,
		cache:       NewCache(opts.CacheCapacity),
		metrics:     opts.Metrics,
	}
}

func (e *Engine) snapshot() (*segment.Set, geo.Projector) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.set, e.proj
}

// Reload swaps in a new segment set and projector and purges the cache.
func (e *Engine) Reload(set *segment.Set, proj geo.Projector) {
	e.mu.Lock()
	e.set = set
	e.proj = proj
	e.mu.Unlock()
	e.cache.Purge()
}

// Segments returns the number of segments in the active set.
func (e *Engine) Segments() int {
	set, _ := e.snapshot()
	return set.Len()
}

// Radius returns the selection radius in meters.
func (e *Engine) Radius() float64 {
	return e.radius
}

// CacheStats returns impression cache statistics.
func (e *Engine) CacheStats() CacheStats {
	return e.cache.Stats()
}

// Nearby returns the projected point of loc and the segments within the
// selection radius of it.
func (e *Engine) Nearby(loc geo.Location) (geom.Coord, []*segment.Segment, error) {
	if err := loc.Validate(); err != nil {
		return nil, nil, err
	}
	set, proj := e.snapshot()
	p := proj.Project(loc)
	return p, set.Within(p, e.radius), nil
}

// Evaluate computes the full, uncached result for loc.
func (e *Engine) Evaluate(loc geo.Location) (*Result, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	set, proj := e.snapshot()
	res := e.evaluate(set, proj, loc)
	return &res, nil
}

func (e *Engine) evaluate(set *segment.Set, proj geo.Projector, loc geo.Location) Result {
	p := proj.Project(loc)
	return e.agg.Aggregate(p, set.Within(p, e.radius))
}

// Explain returns the visibility breakdown of every nearby segment.
func (e *Engine) Explain(loc geo.Location) ([]visibility.Breakdown, error) {
	res, err := e.Evaluate(loc)
	if err != nil {
		return nil, err
	}
	out := make([]visibility.Breakdown, len(res.Contributions))
	for i, c := range res.Contributions {
		out[i] = c.Breakdown
	}
	return out, nil
}

// Raw returns the raw impression score for loc, served from the cache when
// the location was scored before against the same set.
func (e *Engine) Raw(loc geo.Location) (float64, error) {
	if err := loc.Validate(); err != nil {
		return 0, err
	}
	v, hit, err := e.cache.GetOrCompute(loc, func() (float64, error) {
		start := time.Now()
		set, proj := e.snapshot()
		res := e.evaluate(set, proj, loc)
		e.metrics.ObserveScore(time.Since(start))
		return res.Raw, nil
	})
	if err != nil {
		return 0, err
	}
	e.metrics.CacheResult(hit)
	e.metrics.Scored()
	return v, nil
}

// ScoreAll computes raw scores for locs on a bounded worker pool. The output
// is parallel to locs.
func (e *Engine) ScoreAll(ctx context.Context, locs []geo.Location) ([]float64, error) {
	for i, l := range locs {
		if err := l.Validate(); err != nil {
			return nil, eris.Wrapf(err, "impression: location %d", i)
		}
	}

	out := make([]float64, len(locs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, l := range locs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := e.Raw(l)
			if err != nil {
				return eris.Wrapf(err, "impression: score location %d", i)
			}
			out[i] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "impression: score batch")
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "impression: score batch")
	}
	return out, nil
}

// ScoreBatch scores every storefront and normalizes the population. The
// normalizer runs only once all raw scores are in.
func (e *Engine) ScoreBatch(ctx context.Context, stores []Storefront, p normalize.Params) (*Batch, error) {
	locs := make([]geo.Location, len(stores))
	for i, s := range stores {
		locs[i] = s.Location
	}

	raw, err := e.ScoreAll(ctx, locs)
	if err != nil {
		return nil, err
	}

	scores := normalize.Normalize(raw, p)
	b := &Batch{
		Rows:    make([]BatchRow, len(stores)),
		Bounds:  normalize.Fences(raw, p.Fence),
		Raw:     normalize.Describe(raw),
		Indexed: normalize.Describe(normalize.Values(scores)),
	}
	for i, s := range stores {
		b.Rows[i] = BatchRow{Storefront: s, Score: scores[i]}
	}
	return b, nil
}
