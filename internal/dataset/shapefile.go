package dataset

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// ReadShapefile reads PolyLine shapes and their DBF attributes. A sibling
// .prj file, when present, must describe WGS84 lon/lat.
func ReadShapefile(path string) ([]Record, LoadReport, error) {
	var report LoadReport

	prjPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".prj"
	if prj, err := os.ReadFile(prjPath); err == nil {
		if err := checkPRJ(string(prj)); err != nil {
			return nil, report, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, report, eris.Wrap(err, "dataset: read .prj")
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, report, eris.Wrap(err, "dataset: open shapefile")
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	idIdx := -1
	for i, f := range fields {
		names[i] = canonicalField(strings.ToLower(strings.TrimRight(f.String(), "\x00")))
		for _, c := range idColumns {
			if names[i] == c && idIdx < 0 {
				idIdx = i
			}
		}
	}

	var records []Record
	for reader.Next() {
		n, shape := reader.Shape()
		id := "shape-" + strconv.Itoa(n)
		if idIdx >= 0 {
			if v := strings.TrimSpace(reader.Attribute(idIdx)); v != "" {
				id = v
			}
		}

		a := make(attrs, len(names))
		for i, name := range names {
			a[name] = reader.Attribute(i)
		}

		rec, rerr := shapeRecord(id, shape, a)
		if rerr != nil {
			report.drop(id, rerr.reason, rerr)
			continue
		}
		records = append(records, rec)
		report.keep()
	}
	if err := reader.Err(); err != nil {
		return nil, report, eris.Wrap(err, "dataset: read shapefile")
	}
	return records, report, nil
}

func shapeRecord(id string, s shp.Shape, a attrs) (Record, *rowError) {
	rec := Record{ID: id}
	pl, ok := s.(*shp.PolyLine)
	if !ok || pl == nil {
		return rec, badRow(ReasonGeometry, eris.Errorf("unsupported shape %T", s))
	}
	if pl.NumParts == 0 || len(pl.Points) == 0 {
		return rec, badRow(ReasonGeometry, eris.New("empty polyline"))
	}

	// First part only, matching MultiLineString handling elsewhere.
	end := len(pl.Points)
	if pl.NumParts > 1 {
		end = int(pl.Parts[1])
	}
	start := int(pl.Parts[0])
	if start < 0 || end > len(pl.Points) || start >= end {
		return rec, badRow(ReasonGeometry, eris.New("corrupt polyline parts"))
	}

	coords := make([]geom.Coord, 0, end-start)
	for _, p := range pl.Points[start:end] {
		coords = append(coords, geom.Coord{p.X, p.Y})
	}
	rec.Coords = toLocations(coords)

	if rerr := parseAttrs(&rec, a); rerr != nil {
		return rec, rerr
	}
	if rerr := rec.check(); rerr != nil {
		return rec, rerr
	}
	return rec, nil
}

var attributeNames = []string{colHighway, colMatchDir, colVolume, colSampleCount, colLength}

// canonicalField maps DBF names truncated to the format's 10 or 11 byte
// limit back to full attribute names.
func canonicalField(name string) string {
	if len(name) < 10 {
		return name
	}
	for _, c := range attributeNames {
		if strings.HasPrefix(c, name) {
			return c
		}
	}
	return name
}
