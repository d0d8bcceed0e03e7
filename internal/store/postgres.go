package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/impression-cli/internal/db"
)

// DefaultExportTable receives exported run scores.
const DefaultExportTable = "storefront_scores"

var exportColumns = []string{
	"run_id", "storefront_id", "lat", "lon",
	"raw", "cleaned", "scaled", "normalized", "scored_at",
}

// Exporter copies saved runs into a PostgreSQL table.
type Exporter struct {
	pool  db.Pool
	table pgx.Identifier
}

// NewExporter validates the table name and returns an exporter over pool.
func NewExporter(pool db.Pool, table string) (*Exporter, error) {
	if strings.TrimSpace(table) == "" {
		table = DefaultExportTable
	}
	ident, err := db.ParseTable(table)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: export table")
	}
	return &Exporter{pool: pool, table: ident}, nil
}

// Table returns the sanitized target table.
func (e *Exporter) Table() string {
	return e.table.Sanitize()
}

// Migrate creates the export table if it does not exist.
func (e *Exporter) Migrate(ctx context.Context) error {
	t := e.table.Sanitize()
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id        TEXT NOT NULL,
	storefront_id TEXT NOT NULL,
	lat           DOUBLE PRECISION NOT NULL,
	lon           DOUBLE PRECISION NOT NULL,
	raw           DOUBLE PRECISION NOT NULL,
	cleaned       DOUBLE PRECISION NOT NULL,
	scaled        DOUBLE PRECISION NOT NULL,
	normalized    DOUBLE PRECISION NOT NULL,
	scored_at     TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, storefront_id)
)`, t)
	if _, err := e.pool.Exec(ctx, ddl); err != nil {
		return eris.Wrapf(err, "postgres: create %s", t)
	}
	return nil
}

// Export bulk-copies every score of run and returns the rows written.
func (e *Exporter) Export(ctx context.Context, run *Run) (int64, error) {
	if run == nil {
		return 0, eris.New("postgres: nil run")
	}
	rows := make([][]any, len(run.Scores))
	for i, sc := range run.Scores {
		rows[i] = []any{
			run.ID, sc.StorefrontID, sc.Lat, sc.Lon,
			sc.Raw, sc.Cleaned, sc.Scaled, sc.Normalized, run.CreatedAt,
		}
	}

	n, err := db.CopyFrom(ctx, e.pool, e.table, exportColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: export run %s", run.ID)
	}
	zap.L().Info("store: exported run",
		zap.String("run_id", run.ID),
		zap.String("table", e.table.Sanitize()),
		zap.Int64("rows", n),
	)
	return n, nil
}
