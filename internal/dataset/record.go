// Package dataset reads road segment datasets from CSV, GeoJSON, shapefile,
// and PostGIS sources and builds the indexed segment set the engine scores
// against.
package dataset

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/impression-cli/internal/geo"
)

// Sentinel configuration errors.
var (
	ErrNoGeometryColumn  = eris.New("dataset: no geometry column ('wkt_geom' or 'geometry')")
	ErrUnsupportedCRS    = eris.New("dataset: unsupported coordinate reference system")
	ErrUnsupportedFormat = eris.New("dataset: unsupported source format")
)

// Attribute names shared by every source.
const (
	colHighway     = "highway"
	colMatchDir    = "match_dir"
	colVolume      = "trips_volume"
	colSampleCount = "trips_sample_count"
	colLength      = "segment_length_m"
)

// Drop reasons recorded in a LoadReport.
const (
	ReasonGeometry    = "geometry"
	ReasonVolume      = "volume"
	ReasonDirection   = "direction"
	ReasonSampleCount = "sample_count"
	ReasonLength      = "length"
)

// Record is one road segment as read from a source, still in lon/lat.
type Record struct {
	ID          string
	Coords      []geo.Location
	Highway     string
	MatchDir    int
	Volume      float64
	SampleCount *float64
	LengthM     *float64
}

// LoadReport counts what happened to each source row.
type LoadReport struct {
	Source  string         `json:"source" yaml:"source"`
	Rows    int            `json:"rows" yaml:"rows"`
	Loaded  int            `json:"loaded" yaml:"loaded"`
	Dropped int            `json:"dropped" yaml:"dropped"`
	Reasons map[string]int `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}

func (r *LoadReport) keep() {
	r.Rows++
	r.Loaded++
}

func (r *LoadReport) drop(id, reason string, err error) {
	r.Rows++
	r.Dropped++
	if r.Reasons == nil {
		r.Reasons = make(map[string]int)
	}
	r.Reasons[reason]++
	zap.L().Debug("dataset: dropped row",
		zap.String("component", "dataset"),
		zap.String("row", id),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

// rowError carries the drop reason for a bad row.
type rowError struct {
	reason string
	err    error
}

func (e *rowError) Error() string { return e.reason + ": " + e.err.Error() }

func (e *rowError) Unwrap() error { return e.err }

func badRow(reason string, err error) *rowError {
	return &rowError{reason: reason, err: err}
}

// attrs is one row's attributes as text, keyed by lowercase name.
type attrs map[string]string

func (a attrs) get(name string) string {
	return strings.TrimSpace(a[name])
}

// parseAttrs fills the attribute fields of rec from text values. Optional
// numeric attributes stay nil when blank.
func parseAttrs(rec *Record, a attrs) *rowError {
	rec.Highway = a.get(colHighway)

	v, err := parseFloat(a.get(colVolume))
	if err != nil {
		return badRow(ReasonVolume, err)
	}
	if v == nil {
		return badRow(ReasonVolume, eris.New("missing trips_volume"))
	}
	rec.Volume = *v

	if s := a.get(colMatchDir); s != "" {
		d, err := parseFloat(s)
		if err != nil {
			return badRow(ReasonDirection, err)
		}
		if *d != math.Trunc(*d) {
			return badRow(ReasonDirection, eris.Errorf("match_dir %q is not an integer", s))
		}
		rec.MatchDir = int(*d)
	}

	if rec.SampleCount, err = parseFloat(a.get(colSampleCount)); err != nil {
		return badRow(ReasonSampleCount, err)
	}
	if rec.LengthM, err = parseFloat(a.get(colLength)); err != nil {
		return badRow(ReasonLength, err)
	}
	return nil
}

// parseFloat returns nil for a blank value.
func parseFloat(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, nil
	}
	return &v, nil
}

// check validates a fully parsed record.
func (rec *Record) check() *rowError {
	if len(rec.Coords) < 2 {
		return badRow(ReasonGeometry, eris.Errorf("%d vertices, need at least 2", len(rec.Coords)))
	}
	for _, c := range rec.Coords {
		if err := c.Validate(); err != nil {
			return badRow(ReasonGeometry, err)
		}
	}
	if math.IsNaN(rec.Volume) || rec.Volume < 0 {
		return badRow(ReasonVolume, eris.Errorf("trips_volume %v", rec.Volume))
	}
	if rec.SampleCount != nil && *rec.SampleCount < 0 {
		return badRow(ReasonSampleCount, eris.Errorf("trips_sample_count %v", *rec.SampleCount))
	}
	if rec.LengthM != nil && *rec.LengthM < 0 {
		return badRow(ReasonLength, eris.Errorf("segment_length_m %v", *rec.LengthM))
	}
	return nil
}

// lineCoords extracts lon/lat vertices from a LineString, or from the first
// part of a MultiLineString.
func lineCoords(g geom.T) ([]geo.Location, error) {
	var ls *geom.LineString
	switch t := g.(type) {
	case *geom.LineString:
		ls = t
	case *geom.MultiLineString:
		if t.NumLineStrings() == 0 {
			return nil, eris.New("empty multilinestring")
		}
		ls = t.LineString(0)
	default:
		return nil, eris.Errorf("unsupported geometry %T", g)
	}
	return toLocations(ls.Coords()), nil
}

func toLocations(coords []geom.Coord) []geo.Location {
	out := make([]geo.Location, len(coords))
	for i, c := range coords {
		out[i] = geo.Location{Lon: c.X(), Lat: c.Y()}
	}
	return out
}
