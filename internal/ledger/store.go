package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// timestampLayout has fixed-width fractions so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const runColumns = "id, subject, session, acquisition, input_file, status, age_months, age_source, sex, error_kind, error_message, started_at, finished_at"

// Store persists run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure ledger directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Begin records a run as started.
func (s *Store) Begin(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	started := run.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, subject, session, acquisition, input_file, status, started_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		nullableString(run.Subject),
		nullableString(run.Session),
		nullableString(run.Acquisition),
		nullableString(run.InputFile),
		StatusRunning,
		started.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish stores the outcome of a run and its published files.
func (s *Store) Finish(ctx context.Context, id string, outcome Outcome) error {
	status := outcome.Status
	if status == "" {
		status = StatusSucceeded
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE runs
         SET status = ?, acquisition = COALESCE(?, acquisition), age_months = ?, age_source = ?, sex = ?,
             error_kind = ?, error_message = ?, finished_at = ?
         WHERE id = ?`,
		status,
		nullableString(outcome.Acquisition),
		nullableInt(outcome.AgeMonths),
		nullableString(outcome.AgeSource),
		nullableString(outcome.Sex),
		nullableString(outcome.ErrorKind),
		nullableString(outcome.ErrorMessage),
		time.Now().UTC().Format(timestampLayout),
		id,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	for _, out := range outcome.Outputs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO outputs (run_id, kind, path, sha256) VALUES (?, ?, ?, ?)`,
			id, out.Kind, out.Path, nullableString(out.SHA256),
		); err != nil {
			return fmt.Errorf("insert output: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish: %w", err)
	}
	return nil
}

// Get returns a run with its outputs.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	outputs, err := s.outputs(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Outputs = outputs
	return run, nil
}

// List returns the most recent runs, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	for i := range runs {
		outputs, err := s.outputs(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Outputs = outputs
	}
	return runs, nil
}

func (s *Store) outputs(ctx context.Context, runID string) ([]Output, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT kind, path, sha256 FROM outputs WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list outputs: %w", err)
	}
	defer rows.Close()

	var outputs []Output
	for rows.Next() {
		var out Output
		var sum sql.NullString
		if err := rows.Scan(&out.Kind, &out.Path, &sum); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		out.SHA256 = sum.String
		outputs = append(outputs, out)
	}
	return outputs, rows.Err()
}
