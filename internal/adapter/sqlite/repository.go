package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cwygoda/nftfolder/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    owner       TEXT NOT NULL,
    dir         TEXT NOT NULL,
    status      TEXT NOT NULL DEFAULT 'running',
    discovered  INTEGER NOT NULL DEFAULT 0,
    completed   INTEGER NOT NULL DEFAULT 0,
    failed      INTEGER NOT NULL DEFAULT 0,
    started_at  DATETIME NOT NULL,
    finished_at DATETIME
);
CREATE TABLE IF NOT EXISTS outcomes (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id     TEXT NOT NULL REFERENCES runs(id),
    name       TEXT NOT NULL,
    kind       TEXT NOT NULL,
    path       TEXT,
    url        TEXT,
    bytes      INTEGER NOT NULL DEFAULT 0,
    error      TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_outcomes_run_kind ON outcomes(run_id, kind);
`

const runColumns = `id, owner, dir, status, discovered, completed, failed, started_at, finished_at`

// Repository implements domain.RunRepository using SQLite.
type Repository struct {
	db *sql.DB
}

// New opens the ledger at dbPath, creating the file and schema if needed.
func New(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// Outcomes arrive from many goroutines; one connection serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// StartRun inserts a new run.
func (r *Repository) StartRun(ctx context.Context, run domain.Run) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, owner, dir, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Owner, run.Dir, run.Status, run.StartedAt.UTC(),
	)
	return err
}

// SaveOutcome appends one outcome to a run.
func (r *Repository) SaveOutcome(ctx context.Context, runID string, o domain.Outcome) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outcomes (run_id, name, kind, path, url, bytes, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Name, o.Kind, o.Path, o.URL, o.Bytes, o.Reason(), time.Now().UTC(),
	)
	return err
}

// FinishRun stores the final status and tallies.
func (r *Repository) FinishRun(ctx context.Context, runID string, status domain.RunStatus, stats domain.Stats) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, discovered = ?, completed = ?, failed = ?, finished_at = ?
		 WHERE id = ?`,
		status, stats.Discovered, stats.Completed, len(stats.Failures), time.Now().UTC(), runID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

// GetRun retrieves a run by ID.
func (r *Repository) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ?`, id,
	)
	return scanRun(row)
}

// LatestRun retrieves the most recently started run.
func (r *Repository) LatestRun(ctx context.Context) (*domain.Run, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`,
	)
	return scanRun(row)
}

// ListRuns returns up to limit runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListFailures returns the failed outcomes of a run in insertion order.
func (r *Repository) ListFailures(ctx context.Context, runID string) ([]domain.OutcomeRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT run_id, name, kind, COALESCE(path, ''), COALESCE(url, ''), bytes, COALESCE(error, ''), created_at
		 FROM outcomes WHERE run_id = ? AND kind = ? ORDER BY id ASC`,
		runID, domain.OutcomeFailed,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.OutcomeRecord
	for rows.Next() {
		var rec domain.OutcomeRecord
		var kind string
		if err := rows.Scan(&rec.RunID, &rec.Name, &kind, &rec.Path, &rec.URL, &rec.Bytes, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Kind = domain.OutcomeKind(kind)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// RecoverStale marks runs left running by a crashed process as aborted.
func (r *Repository) RecoverStale(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE status = ?`,
		domain.RunAborted, time.Now().UTC(), domain.RunRunning,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*domain.Run, error) {
	var run domain.Run
	var status string
	var finished sql.NullTime
	err := row.Scan(&run.ID, &run.Owner, &run.Dir, &status,
		&run.Discovered, &run.Completed, &run.Failed, &run.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	if finished.Valid {
		run.FinishedAt = finished.Time
	}
	return &run, nil
}
