package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Insert records a newly submitted job.
func (s *Store) Insert(ctx context.Context, jobID, sourcePath, workDir string, status Status) (*Record, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, errors.New("job id is required")
	}
	if status == "" {
		status = StatusQueued
	}
	now := formatTime(time.Now())
	var finished any
	if status.IsTerminal() {
		finished = now
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (job_id, source_path, work_dir, status, created_at, updated_at, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		jobID,
		sourcePath,
		workDir,
		status,
		now,
		now,
		finished,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, jobID)
}

// UpdateStatus moves an in-flight job to a new non-terminal status.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, status Status) error {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE job_id = ?`,
		status,
		formatTime(time.Now()),
		jobID,
	)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return expectRow(res, jobID)
}

// Finish writes the terminal status and outcome fields for a job.
func (s *Store) Finish(ctx context.Context, c Completion) error {
	finished := c.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, exit_code = ?, log_path = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE job_id = ?`,
		c.Status,
		nullableInt(c.ExitCode),
		nullableString(c.LogPath),
		nullableString(c.ErrorMessage),
		formatTime(time.Now()),
		formatTime(finished),
		c.JobID,
	)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return expectRow(res, c.JobID)
}

// Get fetches a job by its identifier. A missing job returns nil without error.
func (s *Store) Get(ctx context.Context, jobID string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+recordColumns+` FROM jobs WHERE job_id = ?`, jobID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return rec, nil
}

// FindByPrefix resolves an abbreviated job id. It fails when the prefix is ambiguous.
func (s *Store) FindByPrefix(ctx context.Context, prefix string) (*Record, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, errors.New("job id prefix is empty")
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+recordColumns+` FROM jobs WHERE job_id LIKE ? ESCAPE '\' ORDER BY id LIMIT 2`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}
	defer rows.Close()

	var matches []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		matches = append(matches, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("job id prefix %q is ambiguous", prefix)
	}
}

// List returns jobs newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += ` WHERE status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return records, nil
}

// Counts returns the number of jobs per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// CancelActive marks every queued, waiting, or running job as canceled.
func (s *Store) CancelActive(ctx context.Context, reason string) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET status = ?, error_message = ?, updated_at = ?, finished_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusCanceled,
		nullableString(reason),
		now,
		now,
		StatusQueued,
		StatusWaiting,
		StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("cancel active jobs: %w", err)
	}
	return res.RowsAffected()
}

// PruneFinished deletes terminal jobs that finished before cutoff.
func (s *Store) PruneFinished(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM jobs WHERE finished_at IS NOT NULL AND finished_at < ?`,
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

// ErrJobNotFound is returned by updates that match no row.
var ErrJobNotFound = errors.New("job not found")

func expectRow(res sql.Result, jobID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(value)
}
