package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "impressions"

// Metrics holds the Prometheus collectors for scoring and dataset loading.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	LocationsScored prometheus.Counter
	ScoreDuration   prometheus.Histogram
	CacheLookups    *prometheus.CounterVec // labels: result={hit,miss}
	RowsDropped     *prometheus.CounterVec // labels: reason
	SegmentsLoaded  prometheus.Gauge
	HTTPRequests    *prometheus.CounterVec // labels: route, code
}

func newMetrics() *Metrics {
	return &Metrics{
		LocationsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locations_scored_total",
			Help:      "Storefront locations scored, including cache hits.",
		}),
		ScoreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "score_duration_seconds",
			Help:      "Time to compute one uncached raw impression score.",
			Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Impression cache lookups by result.",
		}, []string{"result"}),
		RowsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dataset_rows_dropped_total",
			Help:      "Segment rows dropped while loading, by reason.",
		}, []string{"reason"}),
		SegmentsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "segments_loaded",
			Help:      "Segments in the active dataset.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "code"}),
	}
}

// NewMetrics creates the collectors and registers them with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.LocationsScored,
		m.ScoreDuration,
		m.CacheLookups,
		m.RowsDropped,
		m.SegmentsLoaded,
		m.HTTPRequests,
	)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build
// as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

// ObserveScore records one computed score.
func (m *Metrics) ObserveScore(d time.Duration) {
	if m == nil {
		return
	}
	m.ScoreDuration.Observe(d.Seconds())
}

// Scored counts a scored location.
func (m *Metrics) Scored() {
	if m == nil {
		return
	}
	m.LocationsScored.Inc()
}

// CacheResult counts a cache hit or miss.
func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// DatasetLoaded records the outcome of a dataset load.
func (m *Metrics) DatasetLoaded(segments int, dropped map[string]int) {
	if m == nil {
		return
	}
	m.SegmentsLoaded.Set(float64(segments))
	for reason, n := range dropped {
		m.RowsDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// Request counts an API request.
func (m *Metrics) Request(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
}
