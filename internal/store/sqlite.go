// Package store persists extracted samples in SQLite so that they can be
// queried without the source rasters.
package store

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	dem "github.com/wgmilleriii/go-dem"
)

// A Run is one extraction written to the store.
type Run struct {
	ID        string
	StartedAt time.Time
	Stride    int
	Files     int
	Samples   int
}

// SQLiteStore stores samples using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	started_at DATETIME NOT NULL,
	stride     INTEGER NOT NULL,
	files      INTEGER NOT NULL,
	samples    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS samples (
	run_id    TEXT NOT NULL REFERENCES runs(id),
	lat       REAL NOT NULL,
	lon       REAL NOT NULL,
	elevation REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_run_id_lat_lon ON samples(run_id, lat, lon);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun writes collection as a new run in a single transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, stride, files int, collection *dem.Collection) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Stride:    stride,
		Files:     files,
		Samples:   collection.Len(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, stride, files, samples) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.Stride, run.Files, run.Samples,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO samples (run_id, lat, lon, elevation) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: prepare insert sample")
	}
	defer stmt.Close()
	for _, sample := range collection.Samples() {
		if _, err := stmt.ExecContext(ctx, run.ID, sample.Lat, sample.Lon, sample.Elevation); err != nil {
			return nil, eris.Wrap(err, "sqlite: insert sample")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit")
	}
	return run, nil
}

// LatestRun returns the most recent run, or nil if there are none.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, stride, files, samples FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	).Scan(&run.ID, &run.StartedAt, &run.Stride, &run.Files, &run.Samples)
	switch {
	case err == sql.ErrNoRows:
		return nil, nil
	case err != nil:
		return nil, eris.Wrap(err, "sqlite: latest run")
	default:
		return &run, nil
	}
}

// Collection returns the samples of runID in insertion order.
func (s *SQLiteStore) Collection(ctx context.Context, runID string) (*dem.Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT lat, lon, elevation FROM samples WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query samples %s", runID)
	}
	defer rows.Close()

	collection := dem.NewCollection()
	for rows.Next() {
		var sample dem.Sample
		if err := rows.Scan(&sample.Lat, &sample.Lon, &sample.Elevation); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sample")
		}
		collection.Add(sample)
	}
	return collection, eris.Wrap(rows.Err(), "sqlite: iterate samples")
}

// Nearest returns the sample of runID closest to (lat, lon) within radius
// degrees, or nil if there is none.
func (s *SQLiteStore) Nearest(ctx context.Context, runID string, lat, lon, radius float64) (*dem.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lat, lon, elevation FROM samples
		WHERE run_id = ? AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`,
		runID, lat-radius, lat+radius, lon-radius, lon+radius,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query nearest")
	}
	defer rows.Close()

	var nearest *dem.Sample
	nearestDistance := math.Inf(1)
	for rows.Next() {
		var sample dem.Sample
		if err := rows.Scan(&sample.Lat, &sample.Lon, &sample.Elevation); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sample")
		}
		if distance := math.Hypot(sample.Lat-lat, sample.Lon-lon); distance < nearestDistance {
			nearest, nearestDistance = &sample, distance
		}
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate nearest")
	}
	return nearest, nil
}
