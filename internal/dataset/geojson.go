package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	geojson "github.com/paulmach/go.geojson"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// crsMember is the legacy GeoJSON "crs" member. RFC 7946 dropped it, but
// exports from desktop GIS still write it.
type crsMember struct {
	CRS *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

// ReadGeoJSON reads a FeatureCollection of LineString or MultiLineString
// features whose properties carry the segment attributes.
func ReadGeoJSON(r io.Reader) ([]Record, LoadReport, error) {
	var report LoadReport

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, report, eris.Wrap(err, "dataset: read geojson")
	}

	var probe crsMember
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, report, eris.Wrap(err, "dataset: parse geojson")
	}
	if probe.CRS != nil && probe.CRS.Properties.Name != "" {
		if err := CheckCRS(probe.CRS.Properties.Name); err != nil {
			return nil, report, err
		}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, report, eris.Wrap(err, "dataset: parse geojson feature collection")
	}

	records := make([]Record, 0, len(fc.Features))
	for i, f := range fc.Features {
		id := featureID(f, i)
		rec, rerr := geoJSONRecord(id, f)
		if rerr != nil {
			report.drop(id, rerr.reason, rerr)
			continue
		}
		records = append(records, rec)
		report.keep()
	}
	return records, report, nil
}

func featureID(f *geojson.Feature, i int) string {
	if f.ID != nil {
		return propString(f.ID)
	}
	for _, k := range idColumns {
		if v, ok := f.Properties[k]; ok && v != nil {
			return propString(v)
		}
	}
	return "feature-" + strconv.Itoa(i)
}

func geoJSONRecord(id string, f *geojson.Feature) (Record, *rowError) {
	rec := Record{ID: id}
	if f.Geometry == nil {
		return rec, badRow(ReasonGeometry, eris.New("feature has no geometry"))
	}

	var flat [][]float64
	switch f.Geometry.Type {
	case geojson.GeometryLineString:
		flat = f.Geometry.LineString
	case geojson.GeometryMultiLineString:
		if len(f.Geometry.MultiLineString) == 0 {
			return rec, badRow(ReasonGeometry, eris.New("empty multilinestring"))
		}
		flat = f.Geometry.MultiLineString[0]
	default:
		return rec, badRow(ReasonGeometry, eris.Errorf("unsupported geometry %s", f.Geometry.Type))
	}

	coords := make([]geom.Coord, 0, len(flat))
	for _, p := range flat {
		if len(p) < 2 {
			return rec, badRow(ReasonGeometry, eris.New("position with fewer than 2 values"))
		}
		coords = append(coords, geom.Coord{p[0], p[1]})
	}
	rec.Coords = toLocations(coords)

	a := make(attrs, len(f.Properties))
	for k, v := range f.Properties {
		a[strings.ToLower(k)] = propString(v)
	}
	if rerr := parseAttrs(&rec, a); rerr != nil {
		return rec, rerr
	}
	if rerr := rec.check(); rerr != nil {
		return rec, rerr
	}
	return rec, nil
}

// propString renders a decoded JSON property as the text form the shared
// attribute parser expects.
func propString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
