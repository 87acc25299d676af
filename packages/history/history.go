// Package history keeps a SQLite record of finished runs for reporting.
// It is never consulted when deciding whether a test may run: completion
// state lives only in the ledger of the current run.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/depspec/packages/core/runner"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

// DefaultLimit is the number of runs returned by Recent when limit <= 0.
const DefaultLimit = 20

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT    NOT NULL,
	file        TEXT    NOT NULL,
	name        TEXT    NOT NULL,
	started_at  INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	passed      INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	errored     INTEGER NOT NULL,
	blocked     INTEGER NOT NULL,
	skipped     INTEGER NOT NULL,
	p50_us      INTEGER NOT NULL,
	p99_us      INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS tests (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run         INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	grp         TEXT    NOT NULL,
	name        TEXT    NOT NULL,
	outcome     TEXT    NOT NULL,
	blocked     INTEGER NOT NULL,
	exit_code   INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	error       TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS tests_run ON tests(run);
`

// Run is a stored run summary.
type Run struct {
	ID        int64         `json:"id"`
	RunID     string        `json:"runId"`
	File      string        `json:"file"`
	Name      string        `json:"name"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Errored   int           `json:"errored"`
	Blocked   int           `json:"blocked"`
	Skipped   int           `json:"skipped"`
	P50       time.Duration `json:"p50"`
	P99       time.Duration `json:"p99"`
}

// Success reports whether the stored run had no failing tests.
func (r Run) Success() bool {
	return r.Failed == 0 && r.Errored == 0 && r.Blocked == 0
}

// Test is a stored test outcome.
type Test struct {
	Group    string        `json:"group"`
	Name     string        `json:"name"`
	Outcome  string        `json:"outcome"`
	Blocked  bool          `json:"blocked"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Store is a run history database.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
}

// Open opens or creates the history database at path. A "sqlite://" or
// "sqlite:" prefix is accepted, and so is a "file:" URI with its own query.
func Open(path string) (*Store, error) {
	dsn := strings.TrimSpace(path)
	dsn = strings.TrimPrefix(dsn, "sqlite://")
	dsn = strings.TrimPrefix(dsn, "sqlite:")
	if dsn == "" {
		return nil, errors.New("history: empty database path")
	}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dsn+sep+"_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer at a time.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Store{
		db:           db,
		queryTimeout: 30 * time.Second,
	}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a finished run with all its test results and returns the
// row ID of the run.
func (s *Store) Record(ctx context.Context, result *runner.RunResult) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	started := result.StartedAt
	if started.IsZero() {
		started = time.Now().Add(-result.Duration)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, file, name, started_at, duration_ms, passed, failed, errored, blocked, skipped, p50_us, p99_us)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, result.File, result.Name, started.UnixMilli(), result.Duration.Milliseconds(),
		result.Passed, result.Failed, result.Errored, result.Blocked, result.Skipped,
		result.Stats.P50.Microseconds(), result.Stats.P99.Microseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tests (run, grp, name, outcome, blocked, exit_code, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare test insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range result.Results {
		errText := ""
		if t.Error != nil {
			errText = t.Error.Error()
		}
		if _, err := stmt.ExecContext(ctx, id, string(t.Group), t.Name, t.Outcome.String(),
			t.Blocked, t.ExitCode, t.Duration.Milliseconds(), errText); err != nil {
			return 0, fmt.Errorf("insert test %s: %w", t.QualifiedName(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Recent returns the latest runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, file, name, started_at, duration_ms, passed, failed, errored, blocked, skipped, p50_us, p99_us
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			r                Run
			startedMs, durMs int64
			p50Us, p99Us     int64
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.File, &r.Name, &startedMs, &durMs,
			&r.Passed, &r.Failed, &r.Errored, &r.Blocked, &r.Skipped, &p50Us, &p99Us); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedMs)
		r.Duration = time.Duration(durMs) * time.Millisecond
		r.P50 = time.Duration(p50Us) * time.Microsecond
		r.P99 = time.Duration(p99Us) * time.Microsecond
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Tests returns the stored test results of a run in execution order.
func (s *Store) Tests(ctx context.Context, run int64) ([]Test, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT grp, name, outcome, blocked, exit_code, duration_ms, error
		FROM tests WHERE run = ? ORDER BY id`, run)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	tests := make([]Test, 0)
	for rows.Next() {
		var (
			t     Test
			durMs int64
		)
		if err := rows.Scan(&t.Group, &t.Name, &t.Outcome, &t.Blocked, &t.ExitCode, &durMs, &t.Error); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		t.Duration = time.Duration(durMs) * time.Millisecond
		tests = append(tests, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tests, nil
}

// Prune deletes all but the newest keep runs and returns how many runs
// were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune failed: %w", err)
	}
	return res.RowsAffected()
}
