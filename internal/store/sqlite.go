package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/impression-cli/internal/impression"
)

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithClock sets the clock used for run timestamps.
func WithClock(c clockwork.Clock) Option {
	return func(s *SQLiteStore) { s.clock = c }
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	s := &SQLiteStore{db: db, clock: clockwork.NewRealClock()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	segments   INTEGER NOT NULL,
	row_count  INTEGER NOT NULL,
	params     TEXT NOT NULL,
	bounds     TEXT NOT NULL,
	summary    TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_scores (
	run_id        TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position      INTEGER NOT NULL,
	storefront_id TEXT NOT NULL,
	lat           REAL NOT NULL,
	lon           REAL NOT NULL,
	raw           REAL NOT NULL,
	cleaned       REAL NOT NULL,
	scaled        REAL NOT NULL,
	normalized    REAL NOT NULL,
	PRIMARY KEY (run_id, position)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
`

// Migrate creates the run tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores a batch and its scores in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, batch *impression.Batch, meta RunMeta) (*Run, error) {
	if batch == nil {
		return nil, eris.New("sqlite: nil batch")
	}
	run := &Run{
		ID:        uuid.New().String(),
		Source:    meta.Source,
		Segments:  meta.Segments,
		Count:     len(batch.Rows),
		Params:    meta.Params,
		Bounds:    batch.Bounds,
		Summary:   batch.Raw,
		CreatedAt: s.clock.Now().UTC(),
		Scores:    scoresFromBatch(batch),
	}

	paramsJSON, err := json.Marshal(run.Params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal params")
	}
	boundsJSON, err := json.Marshal(run.Bounds)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal bounds")
	}
	summaryJSON, err := json.Marshal(run.Summary)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal summary")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, segments, row_count, params, bounds, summary, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.Segments, run.Count,
		string(paramsJSON), string(boundsJSON), string(summaryJSON),
		run.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_scores (run_id, position, storefront_id, lat, lon, raw, cleaned, scaled, normalized) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare score insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, sc := range run.Scores {
		if _, err := stmt.ExecContext(ctx, run.ID, i, sc.StorefrontID, sc.Lat, sc.Lon,
			sc.Raw, sc.Cleaned, sc.Scaled, sc.Normalized); err != nil {
			return nil, eris.Wrapf(err, "sqlite: insert score %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit run")
	}

	zap.L().Info("store: saved run",
		zap.String("run_id", run.ID),
		zap.String("source", run.Source),
		zap.Int("count", run.Count),
	)
	return run, nil
}

const runColumns = `id, source, segments, row_count, params, bounds, summary, created_at`

// GetRun returns a run with all of its scores in batch order.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT storefront_id, lat, lon, raw, cleaned, scaled, normalized FROM run_scores WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get scores %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	run.Scores = make([]RunScore, 0, run.Count)
	for rows.Next() {
		var sc RunScore
		if err := rows.Scan(&sc.StorefrontID, &sc.Lat, &sc.Lon, &sc.Raw, &sc.Cleaned, &sc.Scaled, &sc.Normalized); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan score")
		}
		run.Scores = append(run.Scores, sc)
	}
	return run, eris.Wrap(rows.Err(), "sqlite: get scores iterate")
}

// ListRuns returns runs newest first, without their scores.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY created_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var paramsJSON, boundsJSON, summaryJSON, created string

	err := row.Scan(&r.ID, &r.Source, &r.Segments, &r.Count, &paramsJSON, &boundsJSON, &summaryJSON, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(paramsJSON), &r.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal params")
	}
	if err := json.Unmarshal([]byte(boundsJSON), &r.Bounds); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal bounds")
	}
	if err := json.Unmarshal([]byte(summaryJSON), &r.Summary); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal summary")
	}
	r.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: parse created_at")
	}
	return &r, nil
}
