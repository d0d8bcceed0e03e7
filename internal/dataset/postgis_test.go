package dataset

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
)

var segmentColumns = []string{"id", "geom", "highway", "match_dir", "trips_volume", "trips_sample_count", "segment_length_m"}

func lineEWKB(t *testing.T, srid int, flat ...float64) []byte {
	t.Helper()
	ls := geom.NewLineStringFlat(geom.XY, flat).SetSRID(srid)
	b, err := ewkb.Marshal(ls, binary.LittleEndian)
	require.NoError(t, err)
	return b
}

func TestReadPostGIS(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	nan := math.NaN()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM "traffic"."segments"`)).
		WillReturnRows(pgxmock.NewRows(segmentColumns).
			AddRow("1", lineEWKB(t, 4326, -84.388, 33.749, -84.387, 33.749), "motorway", 3, 1200.0, 450.0, nan).
			AddRow("2", lineEWKB(t, 0, -84.388, 33.750, -84.388, 33.751), "", 0, 50.0, nan, 120.0).
			AddRow("3", []byte{}, "primary", 1, 10.0, nan, nan).
			AddRow("4", lineEWKB(t, 4326, -84.388, 33.749, -84.387, 33.749), "primary", 1, nan, nan, nan))

	records, report, err := ReadPostGIS(context.Background(), mock, pgx.Identifier{"traffic", "segments"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 4, report.Rows)
	assert.Equal(t, 2, report.Loaded)
	assert.Equal(t, map[string]int{ReasonGeometry: 1, ReasonVolume: 1}, report.Reasons)

	require.Len(t, records, 2)
	assert.Equal(t, "1", records[0].ID)
	require.NotNil(t, records[0].SampleCount)
	assert.Equal(t, 450.0, *records[0].SampleCount)
	assert.Nil(t, records[0].LengthM)

	assert.Nil(t, records[1].SampleCount)
	require.NotNil(t, records[1].LengthM)
	assert.Equal(t, 120.0, *records[1].LengthM)
}

func TestReadPostGIS_ProjectedSRID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows(segmentColumns).
			AddRow("1", lineEWKB(t, 3857, -9392000, 3995000, -9391900, 3995000), "motorway", 3, 1200.0, 450.0, 10.0))

	_, _, err = ReadPostGIS(context.Background(), mock, pgx.Identifier{DefaultTable})
	assert.ErrorIs(t, err, ErrUnsupportedCRS)
}

func TestReadPostGIS_QueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").WillReturnError(fmt.Errorf("relation does not exist"))

	_, _, err = ReadPostGIS(context.Background(), mock, pgx.Identifier{DefaultTable})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dataset: query segments")
}
