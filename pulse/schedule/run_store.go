package schedule

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/softwaremap/errors"
)

// RunStore persists pipeline run history
type RunStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewRunStore creates a run store over a migrated database
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db, now: time.Now}
}

// StartRun records a new running execution of task
func (s *RunStore) StartRun(ctx context.Context, task string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Task:      task,
		Status:    RunStatusRunning,
		StartedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, task, started_at, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.Task, run.StartedAt, run.Status)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create run")
	}
	return run, nil
}

// FinishRun stores the final status, counts and error of run
func (s *RunStore) FinishRun(ctx context.Context, run *Run, status string, counts Counts, runErr error) error {
	finished := s.now().UTC()
	run.Status = status
	run.FinishedAt = &finished
	run.Processed, run.Skipped, run.Failed = counts.Processed, counts.Skipped, counts.Failed

	var errMsg interface{}
	if runErr != nil {
		msg := runErr.Error()
		run.Error = &msg
		errMsg = msg
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs
		 SET status = ?, finished_at = ?, processed = ?, skipped = ?, failed = ?, error = ?
		 WHERE id = ?`,
		status, finished, counts.Processed, counts.Skipped, counts.Failed, errMsg, run.ID)
	if err != nil {
		return errors.Wrap(err, "failed to update run")
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rowsAffected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "run %s", run.ID)
	}
	return nil
}

// GetRun retrieves a run by ID
func (s *RunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "run %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get run")
	}
	return run, nil
}

// ListRuns returns the most recent runs first, optionally filtered by task
func (s *RunStore) ListRuns(ctx context.Context, task string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + runColumns + ` FROM pipeline_runs`
	args := []interface{}{}
	if task != "" {
		query += ` WHERE task = ?`
		args = append(args, task)
	}
	query += ` ORDER BY started_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list runs")
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan run")
		}
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "failed to iterate runs")
}

// LastRun returns the latest run of task, or nil if it never ran
func (s *RunStore) LastRun(ctx context.Context, task string) (*Run, error) {
	runs, err := s.ListRuns(ctx, task, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return runs[0], nil
}

// MarkAbandoned fails runs left "running" by a process that died
func (s *RunStore) MarkAbandoned(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, finished_at = ?, error = ? WHERE status = ?`,
		RunStatusFailed, s.now().UTC(), "abandoned: process exited before the run finished", RunStatusRunning)
	if err != nil {
		return 0, errors.Wrap(err, "failed to mark abandoned runs")
	}
	return result.RowsAffected()
}

const runColumns = `id, task, status, started_at, finished_at, processed, skipped, failed, error`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var finished sql.NullTime
	var errMsg sql.NullString
	if err := row.Scan(&run.ID, &run.Task, &run.Status, &run.StartedAt, &finished,
		&run.Processed, &run.Skipped, &run.Failed, &errMsg); err != nil {
		return nil, err
	}
	if finished.Valid {
		run.FinishedAt = &finished.Time
	}
	if errMsg.Valid {
		run.Error = &errMsg.String
	}
	return &run, nil
}
