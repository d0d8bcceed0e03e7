package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/impression-cli/internal/config"
	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/report"
	"github.com/sells-group/impression-cli/internal/store"
)

// roadsCSV holds one motorway along lat 40 and a residential street 1 km north.
const roadsCSV = "id,wkt_geom,highway,match_dir,trips_volume,trips_sample_count\n" +
	"m-1,\"LINESTRING (-74.001 40, -73.999 40)\",motorway,3,1000,\n" +
	"r-1,\"LINESTRING (-74.001 40.01, -73.999 40.01)\",residential,1,50,500\n" +
	"bad,POINT (1 2),motorway,3,1000,\n"

const storefrontsCSV = "id,lat,lon\n" +
	"on-motorway,40,-74\n" +
	"between,40.005,-74\n" +
	"on-street,40.01,-74\n"

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	c, err := config.LoadFile("")
	require.NoError(t, err)
	c.Dataset.Source = writeTemp(t, dir, "roads.csv", roadsCSV)
	c.Store.Path = filepath.Join(dir, "runs.db")
	return c, dir
}

func TestRunScore_JSON(t *testing.T) {
	c, _ := testConfig(t)

	var out bytes.Buffer
	opts := scoreOptions{Location: geo.Location{Lat: 40, Lon: -74}, Explain: true, Format: report.JSON}
	require.NoError(t, runScore(context.Background(), c, opts, &out))

	var doc report.ScoreDocument
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	assert.Greater(t, doc.Raw, 0.0)
	require.Len(t, doc.Contributions, 1)
	assert.Equal(t, "m-1", doc.Contributions[0].SegmentID)
}

func TestRunScore_InvalidLocation(t *testing.T) {
	c, _ := testConfig(t)
	err := runScore(context.Background(), c, scoreOptions{Location: geo.Location{Lat: 100}, Format: report.Table}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunScore_InvalidConfig(t *testing.T) {
	c, _ := testConfig(t)
	c.Scoring.RadiusM = 10

	err := runScore(context.Background(), c, scoreOptions{Format: report.Table}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring.radius_m")
}

func TestRunBatch_CSVAndSave(t *testing.T) {
	c, dir := testConfig(t)
	input := writeTemp(t, dir, "stores.csv", storefrontsCSV)
	output := filepath.Join(dir, "scores.csv")

	var stdout bytes.Buffer
	opts := batchOptions{Input: input, Output: output, Format: report.CSV, Save: true, Stats: true}
	require.NoError(t, runBatch(context.Background(), c, opts, &stdout))
	assert.Contains(t, stdout.String(), "kurtosis")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, "on-motorway", recs[1][0])
	assert.Equal(t, "80", recs[1][6])

	st, err := store.NewSQLite(c.Store.Path)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, c.Dataset.Source, runs[0].Source)
	assert.Equal(t, 3, runs[0].Count)
	assert.Equal(t, 2, runs[0].Segments)

	var runsOut bytes.Buffer
	require.NoError(t, runRuns(context.Background(), c, runsOptions{Format: report.Table}, &runsOut))
	assert.Contains(t, runsOut.String(), "STOREFRONTS")

	var shown bytes.Buffer
	require.NoError(t, runRuns(context.Background(), c, runsOptions{ID: runs[0].ID, Format: report.JSON}, &shown))
	assert.Contains(t, shown.String(), "on-street")
}

func TestRunBatch_XLSXNeedsOutput(t *testing.T) {
	c, dir := testConfig(t)
	input := writeTemp(t, dir, "stores.csv", storefrontsCSV)

	err := runBatch(context.Background(), c, batchOptions{Input: input, Format: report.XLSX}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output")
}

func TestRunBatch_ExportNeedsDatabase(t *testing.T) {
	c, dir := testConfig(t)
	input := writeTemp(t, dir, "stores.csv", storefrontsCSV)

	err := runBatch(context.Background(), c, batchOptions{Input: input, Format: report.CSV, Export: true}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export.database_url")
}

func TestRunSegments(t *testing.T) {
	c, _ := testConfig(t)

	var out bytes.Buffer
	require.NoError(t, runSegments(context.Background(), c, segmentsOptions{Format: report.Table}, &out))
	assert.Contains(t, out.String(), "Loaded:")
	assert.Contains(t, out.String(), "geometry:")

	out.Reset()
	loc := geo.Location{Lat: 40.01, Lon: -74}
	require.NoError(t, runSegments(context.Background(), c, segmentsOptions{Location: &loc, Format: report.JSON}, &out))
	var roads []report.Road
	require.NoError(t, json.Unmarshal(out.Bytes(), &roads))
	require.Len(t, roads, 1)
	assert.Equal(t, "r-1", roads[0].ID)
	require.NotNil(t, roads[0].SampleCount)
	assert.Equal(t, 500.0, *roads[0].SampleCount)
}

func TestRunRuns_ShowMissing(t *testing.T) {
	c, _ := testConfig(t)
	err := runRuns(context.Background(), c, runsOptions{ID: "nope", Format: report.JSON}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runs show")
}

func TestRunRuns_Empty(t *testing.T) {
	c, _ := testConfig(t)
	var out bytes.Buffer
	require.NoError(t, runRuns(context.Background(), c, runsOptions{Format: report.Table}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "No runs found."))
}

func TestRunBatch_SavedRunRoundTrip(t *testing.T) {
	c, dir := testConfig(t)
	input := writeTemp(t, dir, "stores.csv", storefrontsCSV)
	require.NoError(t, runBatch(context.Background(), c,
		batchOptions{Input: input, Output: filepath.Join(dir, "out.json"), Format: report.JSON, Save: true}, &bytes.Buffer{}))

	raw, err := os.ReadFile(filepath.Join(dir, "out.json"))
	require.NoError(t, err)
	var doc report.BatchDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	require.Len(t, doc.Rows, 3)
	// Midway between the roads nothing is within the radius.
	assert.Equal(t, 0.0, doc.Rows[1].Raw)
}

func TestInitScoring_MissingSource(t *testing.T) {
	c, _ := testConfig(t)
	c.Dataset.Source = ""

	_, err := initScoring(context.Background(), c, "score", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset.source is required")
}

func TestInitScoring_LoadError(t *testing.T) {
	c, dir := testConfig(t)
	c.Dataset.Source = filepath.Join(dir, "missing.csv")

	_, err := initScoring(context.Background(), c, "score", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load dataset")
}

func TestOpenOutput(t *testing.T) {
	w, err := openOutput("")
	require.NoError(t, err)
	assert.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "out.txt")
	w, err = openOutput(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("ok"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))

	_, err = openOutput(filepath.Join(t.TempDir(), "no", "such", "dir.txt"))
	assert.Error(t, err)
}
