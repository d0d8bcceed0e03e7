package dataset

import (
	"context"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/impression-cli/internal/db"
)

// DefaultTable is read when a postgres source names no table.
const DefaultTable = "traffic_segments"

// segmentQuery selects every segment. Optional numeric columns come back as
// NaN when NULL so rows scan into plain types.
const segmentQuery = `SELECT id::text, ST_AsEWKB(geom), COALESCE(highway, ''), COALESCE(match_dir, 0)::int,
	COALESCE(trips_volume, 'NaN')::float8, COALESCE(trips_sample_count, 'NaN')::float8,
	COALESCE(segment_length_m, 'NaN')::float8
FROM %s`

// ReadPostGIS reads segments from a PostGIS table whose geometry column is
// named geom. Geometries must carry SRID 4326 or none.
func ReadPostGIS(ctx context.Context, pool db.Pool, table pgx.Identifier) ([]Record, LoadReport, error) {
	var report LoadReport

	rows, err := pool.Query(ctx, fmt.Sprintf(segmentQuery, table.Sanitize()))
	if err != nil {
		return nil, report, eris.Wrap(err, "dataset: query segments")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			id, highway          string
			wkb                  []byte
			dir                  int
			volume, sample, lenM float64
		)
		if err := rows.Scan(&id, &wkb, &highway, &dir, &volume, &sample, &lenM); err != nil {
			return nil, report, eris.Wrap(err, "dataset: scan segment")
		}

		rec, rerr := postGISRecord(id, wkb, highway, dir, volume, sample, lenM)
		if rerr != nil {
			if eris.Is(rerr.err, ErrUnsupportedCRS) {
				return nil, report, rerr.err
			}
			report.drop(id, rerr.reason, rerr)
			continue
		}
		records = append(records, rec)
		report.keep()
	}
	if err := rows.Err(); err != nil {
		return nil, report, eris.Wrap(err, "dataset: iterate segments")
	}
	return records, report, nil
}

func postGISRecord(id string, wkb []byte, highway string, dir int, volume, sample, lenM float64) (Record, *rowError) {
	rec := Record{ID: id, Highway: highway, MatchDir: dir, Volume: volume}
	if len(wkb) == 0 {
		return rec, badRow(ReasonGeometry, eris.New("null geometry"))
	}
	g, err := ewkb.Unmarshal(wkb)
	if err != nil {
		return rec, badRow(ReasonGeometry, eris.Wrap(err, "decode ewkb"))
	}
	if srid := g.SRID(); srid != 0 && srid != 4326 {
		return rec, badRow(ReasonGeometry, eris.Wrapf(ErrUnsupportedCRS, "SRID %d", srid))
	}
	if rec.Coords, err = lineCoords(g); err != nil {
		return rec, badRow(ReasonGeometry, err)
	}
	if math.IsNaN(volume) {
		return rec, badRow(ReasonVolume, eris.New("missing trips_volume"))
	}
	rec.SampleCount = present(sample)
	rec.LengthM = present(lenM)
	if rerr := rec.check(); rerr != nil {
		return rec, rerr
	}
	return rec, nil
}

func present(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
