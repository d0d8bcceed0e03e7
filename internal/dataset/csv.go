package dataset

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkt"
)

// geometryColumns are tried in order.
var geometryColumns = []string{"wkt_geom", "geometry"}

// idColumns name an optional stable segment identifier.
var idColumns = []string{"id", "segment_id"}

// ReadCSV reads segments from CSV with a WKT geometry column. A missing
// geometry column is a configuration error; bad rows are dropped and counted.
func ReadCSV(r io.Reader) ([]Record, LoadReport, error) {
	var report LoadReport

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, report, eris.Wrap(ErrNoGeometryColumn, "dataset: empty csv")
	}
	if err != nil {
		return nil, report, eris.Wrap(err, "dataset: read csv header")
	}

	cols := make([]string, len(header))
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[i] = name
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	geomIdx := -1
	for _, name := range geometryColumns {
		if i, ok := index[name]; ok {
			geomIdx = i
			break
		}
	}
	if geomIdx < 0 {
		return nil, report, eris.Wrapf(ErrNoGeometryColumn, "columns %v", cols)
	}
	idIdx := -1
	for _, name := range idColumns {
		if i, ok := index[name]; ok {
			idIdx = i
			break
		}
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		id := "row-" + strconv.Itoa(line)
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				report.drop(id, ReasonGeometry, err)
				continue
			}
			return nil, report, eris.Wrap(err, "dataset: read csv")
		}

		if idIdx >= 0 && idIdx < len(row) && strings.TrimSpace(row[idIdx]) != "" {
			id = strings.TrimSpace(row[idIdx])
		}

		a := make(attrs, len(cols))
		for i, v := range row {
			if i < len(cols) {
				a[cols[i]] = v
			}
		}

		rec, rerr := csvRecord(id, a[cols[geomIdx]], a)
		if rerr != nil {
			report.drop(id, rerr.reason, rerr)
			continue
		}
		records = append(records, rec)
		report.keep()
	}
	return records, report, nil
}

func csvRecord(id, geomText string, a attrs) (Record, *rowError) {
	rec := Record{ID: id}
	if strings.TrimSpace(geomText) == "" {
		return rec, badRow(ReasonGeometry, eris.New("blank geometry"))
	}
	g, err := wkt.Unmarshal(geomText)
	if err != nil {
		return rec, badRow(ReasonGeometry, eris.Wrap(err, "parse wkt"))
	}
	if rec.Coords, err = lineCoords(g); err != nil {
		return rec, badRow(ReasonGeometry, err)
	}
	if rerr := parseAttrs(&rec, a); rerr != nil {
		return rec, rerr
	}
	if rerr := rec.check(); rerr != nil {
		return rec, rerr
	}
	return rec, nil
}
