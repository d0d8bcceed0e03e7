package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/impression-cli/internal/dataset"
	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/impression"
	"github.com/sells-group/impression-cli/internal/monitoring"
	"github.com/sells-group/impression-cli/internal/normalize"
	"github.com/sells-group/impression-cli/internal/report"
)

// testDataset builds one motorway segment running east-west along lat 40.
func testDataset(t *testing.T, volume float64) *dataset.Dataset {
	t.Helper()
	recs := []dataset.Record{{
		ID:       "m-1",
		Coords:   []geo.Location{{Lat: 40, Lon: -74.001}, {Lat: 40, Lon: -73.999}},
		Highway:  "motorway",
		MatchDir: 3,
		Volume:   volume,
	}}
	ds, err := dataset.Build(recs, dataset.LoadReport{Source: "test", Rows: 1, Loaded: 1}, geo.ProjectionLocal, 150)
	require.NoError(t, err)
	return ds
}

func newTestServer(t *testing.T, opts Options) (*Server, *impression.Engine) {
	t.Helper()
	ds := testDataset(t, 1000)
	m := monitoring.NewMetricsForTesting()
	eng := impression.NewEngine(ds.Set, ds.Projector, nil, impression.Options{
		CacheCapacity: 10,
		Concurrency:   2,
		Metrics:       m,
	})
	if opts.Metrics == nil {
		opts.Metrics = m
	}
	if opts.Gatherer == nil {
		reg := prometheus.NewRegistry()
		reg.MustRegister(m.LocationsScored, m.HTTPRequests)
		opts.Gatherer = reg
	}
	opts.Report = ds.Report
	return New(eng, opts), eng
}

func do(t *testing.T, s http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := do(t, s, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, 1.0, body["segments"])
}

func TestScore(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/v1/score?lat=40&lon=-74&explain=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var doc report.ScoreDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Greater(t, doc.Raw, 0.0)
	assert.Equal(t, 1, doc.Contributing)
	require.Len(t, doc.Contributions, 1)
	assert.Equal(t, "m-1", doc.Contributions[0].SegmentID)

	// Roughly 1.1 km north of the road.
	rec = do(t, s, http.MethodGet, "/v1/score?lat=40.01&lon=-74", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, 0.0, doc.Raw)
}

func TestScore_BadParams(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	for _, target := range []string{
		"/v1/score",
		"/v1/score?lat=abc&lon=1",
		"/v1/score?lat=1",
		"/v1/score?lat=95&lon=0",
	} {
		rec := do(t, s, http.MethodGet, target, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), "error", target)
	}
}

func TestNearby(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	rec := do(t, s, http.MethodGet, "/v1/nearby?lat=40&lon=-74", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		RadiusM float64       `json:"radius_m"`
		Roads   []report.Road `json:"roads"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 150.0, body.RadiusM)
	require.Len(t, body.Roads, 1)
	assert.Equal(t, "motorway", body.Roads[0].Class)
	assert.InDelta(t, 0, body.Roads[0].DistanceM, 1e-6)
}

func TestBatch(t *testing.T) {
	s, _ := newTestServer(t, Options{})

	req := map[string]any{"locations": []map[string]any{
		{"id": "on-road", "lat": 40, "lon": -74},
		{"id": "near", "lat": 40.0005, "lon": -74},
		{"id": "far", "lat": 40.05, "lon": -74},
	}}
	rec := do(t, s, http.MethodPost, "/v1/batch", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var doc report.BatchDocument
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Len(t, doc.Rows, 3)
	assert.Equal(t, "on-road", doc.Rows[0].ID)
	assert.InDelta(t, 80, doc.Rows[0].Normalized, 1e-9)
	assert.InDelta(t, 20, doc.Rows[2].Normalized, 1e-9)
	assert.Equal(t, 3, doc.Raw.Count)
}

func TestBatch_Validation(t *testing.T) {
	s, _ := newTestServer(t, Options{MaxBatch: 2})

	rec := do(t, s, http.MethodPost, "/v1/batch", map[string]any{"locations": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	three := map[string]any{"locations": []map[string]any{
		{"lat": 1, "lon": 1}, {"lat": 2, "lon": 2}, {"lat": 3, "lon": 3},
	}}
	rec = do(t, s, http.MethodPost, "/v1/batch", three)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	bad := map[string]any{"locations": []map[string]any{{"id": "x", "lat": 120, "lon": 0}}}
	rec = do(t, s, http.MethodPost, "/v1/batch", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "location x")

	req := httptest.NewRequest(http.MethodPost, "/v1/batch", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	s.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNormalize(t *testing.T) {
	s, _ := newTestServer(t, Options{Normalize: normalize.DefaultParams()})

	rec := do(t, s, http.MethodPost, "/v1/normalize", map[string]any{"scores": []float64{100, 200, 300}})
	require.Equal(t, http.StatusOK, rec.Code)

	var body normalizeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Scores, 3)
	assert.Equal(t, []float64{20, 50, 80}, normalize.Values(body.Scores))
	assert.Equal(t, 3, body.Summary.Count)

	rec = do(t, s, http.MethodPost, "/v1/normalize", map[string]any{"scores": []float64{}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"scores":[]`)
}

func TestCacheStats(t *testing.T) {
	s, eng := newTestServer(t, Options{})
	_, err := eng.Raw(geo.Location{Lat: 40, Lon: -74})
	require.NoError(t, err)
	_, err = eng.Raw(geo.Location{Lat: 40, Lon: -74})
	require.NoError(t, err)

	rec := do(t, s, http.MethodGet, "/v1/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats impression.CacheStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestReload(t *testing.T) {
	loads := 0
	s, eng := newTestServer(t, Options{
		Load: func(context.Context) (*dataset.Dataset, error) {
			loads++
			return testDataset(t, 10), nil
		},
	})
	loc := geo.Location{Lat: 40, Lon: -74}

	before, err := eng.Raw(loc)
	require.NoError(t, err)

	rec := do(t, s, http.MethodPost, "/v1/reload", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, loads)
	assert.Equal(t, 0, eng.CacheStats().Entries)

	after, err := eng.Raw(loc)
	require.NoError(t, err)
	assert.InDelta(t, before/100, after, 1e-9)

	rec = do(t, s, http.MethodGet, "/v1/dataset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"source":"test"`)
}

func TestReload_Failure(t *testing.T) {
	s, _ := newTestServer(t, Options{
		Load: func(context.Context) (*dataset.Dataset, error) {
			return nil, fmt.Errorf("source unavailable")
		},
	})
	rec := do(t, s, http.MethodPost, "/v1/reload", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "source unavailable")
}

func TestReload_NotConfigured(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	rec := do(t, s, http.MethodPost, "/v1/reload", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{RateLimit: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		rec := do(t, s, http.MethodGet, "/v1/cache", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, s, http.MethodGet, "/v1/cache", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// Health checks are not rate limited.
	rec = do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t, Options{CORSOrigins: []string{"https://maps.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, "https://maps.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://other.example.com")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	m := monitoring.NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.HTTPRequests, m.LocationsScored)
	s, _ := newTestServer(t, Options{Metrics: m, Gatherer: reg})

	do(t, s, http.MethodGet, "/v1/score?lat=40&lon=-74", nil)
	do(t, s, http.MethodGet, "/v1/score?lat=x&lon=-74", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/v1/score", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/v1/score", "400")))

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "impressions_http_requests_total")
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, s.ListenAndServe(ctx, "127.0.0.1:0"))
}
