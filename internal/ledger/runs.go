package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lherron/lkmig/internal/migrate"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

// Run is one invocation of an import.
type Run struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	Source     string     `json:"source"`
	TargetHost string     `json:"target_host"`
	NamePrefix string     `json:"name_prefix"`
	DryRun     bool       `json:"dry_run"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
}

// Entry is one recorded object result.
type Entry struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Kind        string    `json:"kind"`
	SourceID    string    `json:"source_id"`
	SourceSpace string    `json:"source_space"`
	Title       string    `json:"title"`
	TargetTitle string    `json:"target_title"`
	TargetSpace string    `json:"target_space"`
	TargetID    string    `json:"target_id"`
	Status      string    `json:"status"`
	State       string    `json:"state"`
	FailedStep  string    `json:"failed_step,omitempty"`
	Message     string    `json:"message,omitempty"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// RunCounts summarizes the entries of a run by status.
type RunCounts map[string]int

const timeLayout = "2006-01-02T15:04:05Z"

// StartRun records the beginning of a run and returns its id.
func (db *DB) StartRun(r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := db.Exec(`
		INSERT INTO runs (id, command, source, target_host, name_prefix, dry_run)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Command, r.Source, r.TargetHost, r.NamePrefix, boolInt(r.DryRun))
	if err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return r.ID, nil
}

// FinishRun stamps the end of a run with its exit code.
func (db *DB) FinishRun(runID string, exitCode int) error {
	res, err := db.Exec(`
		UPDATE runs SET finished_at = strftime('%Y-%m-%dT%H:%M:%SZ','now'), exit_code = ?
		WHERE id = ?`, exitCode, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Record stores one import result under a run.
func (db *DB) Record(runID string, r *migrate.Result) error {
	_, err := db.Exec(`
		INSERT INTO results (run_id, kind, source_id, source_space, title, target_title,
		                     target_space, target_id, status, state, failed_step, message, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, string(r.Kind), r.SourceID.String(), r.SourceSpace, r.Title, r.TargetTitle,
		r.TargetSpace, r.TargetID.String(), string(r.Status), r.State.String(), failedStep(r),
		r.Message(), r.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record result for %s %q: %w", r.Kind, r.Title, err)
	}
	return nil
}

func failedStep(r *migrate.Result) string {
	if r.Err == nil {
		return ""
	}
	return r.FailedStep.String()
}

// Imported reports whether a non dry-run against host already created an
// object of this kind under the destination space and title. Tenants that
// share a host differ in space or title prefix, so they never match each
// other.
func (db *DB) Imported(host string, kind migrate.Kind, targetSpace, targetTitle string) (bool, error) {
	var one int
	err := db.QueryRow(`
		SELECT 1 FROM results r
		JOIN runs u ON u.id = r.run_id
		WHERE u.target_host = ? AND u.dry_run = 0
		  AND r.kind = ? AND r.target_space = ? AND r.target_title = ? AND r.status = ?
		LIMIT 1`,
		host, string(kind), targetSpace, targetTitle, string(migrate.StatusCreated)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return true, nil
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, command, source, target_host, name_prefix, dry_run, started_at, finished_at, exit_code
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns one run.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.QueryRow(`
		SELECT id, command, source, target_host, name_prefix, dry_run, started_at, finished_at, exit_code
		FROM runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		r          Run
		dryRun     int
		startedAt  string
		finishedAt sql.NullString
		exitCode   sql.NullInt64
	)
	if err := s.Scan(&r.ID, &r.Command, &r.Source, &r.TargetHost, &r.NamePrefix, &dryRun, &startedAt, &finishedAt, &exitCode); err != nil {
		return nil, err
	}
	r.DryRun = dryRun != 0
	r.StartedAt, _ = time.Parse(timeLayout, startedAt)
	if finishedAt.Valid {
		t, _ := time.Parse(timeLayout, finishedAt.String)
		r.FinishedAt = &t
	}
	if exitCode.Valid {
		code := int(exitCode.Int64)
		r.ExitCode = &code
	}
	return &r, nil
}

// Entries returns the results of a run in the order they were recorded.
func (db *DB) Entries(runID string) ([]Entry, error) {
	rows, err := db.Query(`
		SELECT id, run_id, kind, source_id, source_space, title, target_title, target_space,
		       target_id, status, state, failed_step, message, elapsed_ms, recorded_at
		FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Kind, &e.SourceID, &e.SourceSpace, &e.Title, &e.TargetTitle,
			&e.TargetSpace, &e.TargetID, &e.Status, &e.State, &e.FailedStep, &e.Message, &e.ElapsedMS, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		e.RecordedAt, _ = time.Parse(timeLayout, recordedAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of entries per status for a run.
func (db *DB) Counts(runID string) (RunCounts, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM results WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}
	defer rows.Close()

	counts := RunCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
