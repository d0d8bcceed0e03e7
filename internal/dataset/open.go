package dataset

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/rotisserie/eris"

	"github.com/sells-group/impression-cli/internal/db"
	"github.com/sells-group/impression-cli/internal/fetcher"
	"github.com/sells-group/impression-cli/internal/monitoring"
)

// ConnectFunc opens a PostgreSQL pool and returns it with its close function.
type ConnectFunc func(ctx context.Context, dsn string) (db.Pool, func(), error)

// Options configures Open and Load.
type Options struct {
	CRS        string
	Projection string
	CellSize   float64
	Fetcher    fetcher.Fetcher
	Connect    ConnectFunc
	Metrics    *monitoring.Metrics
}

func defaultConnect(ctx context.Context, dsn string) (db.Pool, func(), error) {
	pool, err := db.Connect(ctx, dsn, db.PoolConfig{})
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

// Load opens source and builds a Dataset from it.
func Load(ctx context.Context, source string, opts Options) (*Dataset, error) {
	records, report, err := Open(ctx, source, opts)
	if err != nil {
		return nil, err
	}
	ds, err := Build(records, report, opts.Projection, opts.CellSize)
	if err != nil {
		return nil, err
	}
	opts.Metrics.DatasetLoaded(ds.Set.Len(), report.Reasons)
	return ds, nil
}

// Open reads every record from source. Sources are local paths (.csv,
// .csv.gz, .geojson, .json, .geojson.gz, .shp, .zip), http(s) or ftp URLs of
// such files, or postgres:// DSNs with an optional table query parameter.
func Open(ctx context.Context, source string, opts Options) ([]Record, LoadReport, error) {
	if err := CheckCRS(opts.CRS); err != nil {
		return nil, LoadReport{Source: source}, err
	}
	if strings.TrimSpace(source) == "" {
		return nil, LoadReport{}, eris.New("dataset: no source configured")
	}

	records, report, err := open(ctx, source, opts)
	report.Source = source
	return records, report, err
}

func open(ctx context.Context, source string, opts Options) ([]Record, LoadReport, error) {
	if isPostgres(source) {
		return openPostgres(ctx, source, opts)
	}
	if fetcher.IsRemote(source) {
		return openRemote(ctx, source, opts)
	}
	return openFile(source)
}

func isPostgres(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "postgres://") || strings.HasPrefix(s, "postgresql://")
}

// splitTable strips the table query parameter from a DSN.
func splitTable(source string) (dsn, table string, err error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", "", eris.Wrap(err, "dataset: parse postgres source")
	}
	q := u.Query()
	table = q.Get("table")
	q.Del("table")
	u.RawQuery = q.Encode()
	if table == "" {
		table = DefaultTable
	}
	return u.String(), table, nil
}

func openPostgres(ctx context.Context, source string, opts Options) ([]Record, LoadReport, error) {
	dsn, tableName, err := splitTable(source)
	if err != nil {
		return nil, LoadReport{}, err
	}
	table, err := db.ParseTable(tableName)
	if err != nil {
		return nil, LoadReport{}, eris.Wrap(err, "dataset: postgres table")
	}

	connect := opts.Connect
	if connect == nil {
		connect = defaultConnect
	}
	pool, closeFn, err := connect(ctx, dsn)
	if err != nil {
		return nil, LoadReport{}, eris.Wrap(err, "dataset: connect")
	}
	defer closeFn()

	return ReadPostGIS(ctx, pool, table)
}

func openRemote(ctx context.Context, source string, opts Options) ([]Record, LoadReport, error) {
	f := opts.Fetcher
	if f == nil {
		f = fetcher.NewRemote()
	}

	dir, err := os.MkdirTemp("", "impressions-dataset-*")
	if err != nil {
		return nil, LoadReport{}, eris.Wrap(err, "dataset: create temp dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path, err := fetcher.ToTemp(ctx, f, source, dir)
	if err != nil {
		return nil, LoadReport{}, err
	}
	return openFile(path)
}

// extOf returns the lowercase extension, keeping a trailing .gz attached to
// the inner one.
func extOf(path string) string {
	base := strings.ToLower(filepath.Base(path))
	ext := filepath.Ext(base)
	if ext == ".gz" {
		inner := filepath.Ext(strings.TrimSuffix(base, ext))
		return inner + ext
	}
	return ext
}

func openFile(path string) ([]Record, LoadReport, error) {
	ext := extOf(path)
	switch ext {
	case ".shp":
		return ReadShapefile(path)
	case ".zip":
		return openZIP(path)
	case ".csv", ".csv.gz", ".geojson", ".json", ".geojson.gz", ".json.gz":
	default:
		return nil, LoadReport{}, eris.Wrapf(ErrUnsupportedFormat, "%q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, LoadReport{}, eris.Wrap(err, "dataset: open source")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(ext, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, LoadReport{}, eris.Wrap(err, "dataset: open gzip")
		}
		defer func() { _ = gz.Close() }()
		r = gz
		ext = strings.TrimSuffix(ext, ".gz")
	}

	if ext == ".csv" {
		return ReadCSV(r)
	}
	return ReadGeoJSON(r)
}

// openZIP extracts an archive and reads the first shapefile, GeoJSON, or CSV
// member, in that order of preference.
func openZIP(path string) ([]Record, LoadReport, error) {
	dir, err := os.MkdirTemp("", "impressions-zip-*")
	if err != nil {
		return nil, LoadReport{}, eris.Wrap(err, "dataset: create temp dir")
	}
	defer func() { _ = os.RemoveAll(dir) }()

	if _, err := fetcher.ExtractZIP(path, dir); err != nil {
		return nil, LoadReport{}, eris.Wrap(err, "dataset: extract archive")
	}
	for _, ext := range []string{".shp", ".geojson", ".csv"} {
		if member, err := fetcher.FindByExt(dir, ext); err == nil {
			return openFile(member)
		}
	}
	return nil, LoadReport{}, eris.Wrapf(ErrUnsupportedFormat, "no dataset member in %q", path)
}
