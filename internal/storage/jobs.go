package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/model"
	"github.com/Veraticus/cardwise/internal/service"
)

const jobColumns = `id, session_id, kind, status, priority, progress, current_step,
	queued_at, started_at, completed_at, updated_at, input_payload, output_payload, error_message`

// EnqueueJob inserts a queued job. QueuedAt defaults to now.
func (s *SQLiteStorage) EnqueueJob(ctx context.Context, job *model.Job) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateModel(job, "job", ErrInvalidJob); err != nil {
		return err
	}
	if err := validateString(job.ID, "job.ID"); err != nil {
		return err
	}

	now := s.now()
	if job.QueuedAt.IsZero() {
		job.QueuedAt = now
	}
	job.UpdatedAt = now
	job.Status = model.JobQueued

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, session_id, kind, status, priority, progress, current_step,
			queued_at, updated_at, input_payload)
		VALUES (?, ?, ?, ?, ?, 0, '', ?, ?, ?)
	`, job.ID, job.SessionID, string(job.Kind), string(job.Status), job.Priority,
		job.QueuedAt.UTC(), job.UpdatedAt, nullPayload(job.InputPayload))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("job %s: %w", job.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by id.
func (s *SQLiteStorage) GetJob(ctx context.Context, id string) (*model.Job, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs newest first.
func (s *SQLiteStorage) ListJobs(ctx context.Context, filter service.JobFilter) ([]model.Job, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	var args []any
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY queued_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// ClaimNextJob atomically moves the most urgent queued job to processing.
// Lower priority values are more urgent; ties go to the oldest job. The
// select and update are one statement, so two workers can never claim the
// same row.
func (s *SQLiteStorage) ClaimNextJob(ctx context.Context) (*model.Job, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	var job *model.Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx, `
			UPDATE jobs
			SET status = 'processing', started_at = ?, updated_at = ?, progress = 0, current_step = 'claimed'
			WHERE id = (
				SELECT id FROM jobs
				WHERE status = 'queued'
				ORDER BY priority ASC, queued_at ASC, id ASC
				LIMIT 1
			) AND status = 'queued'
			RETURNING id
		`, now, now).Scan(&id)
		if err != nil {
			return err
		}

		job, err = scanJob(tx.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNoJob
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

// UpdateJobProgress records progress for a processing job.
func (s *SQLiteStorage) UpdateJobProgress(ctx context.Context, id string, progress int, step string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: %d", ErrInvalidProgress, progress)
	}

	return s.updateProcessingJob(ctx, id, `
		UPDATE jobs SET progress = ?, current_step = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'
	`, progress, step, s.now(), id)
}

// CompleteJob marks a processing job completed with its output payload.
func (s *SQLiteStorage) CompleteJob(ctx context.Context, id string, output []byte) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	now := s.now()
	return s.updateProcessingJob(ctx, id, `
		UPDATE jobs SET status = 'completed', progress = 100, current_step = 'completed',
			output_payload = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'
	`, nullPayload(output), now, now, id)
}

// FailJob marks a processing job failed with a human-readable message.
func (s *SQLiteStorage) FailJob(ctx context.Context, id string, message string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	now := s.now()
	return s.updateProcessingJob(ctx, id, `
		UPDATE jobs SET status = 'failed', error_message = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = 'processing'
	`, message, now, now, id)
}

// FailStaleJobs fails every processing job not updated since cutoff.
func (s *SQLiteStorage) FailStaleJobs(ctx context.Context, cutoff time.Time, message string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'failed', error_message = ?, completed_at = ?, updated_at = ?
		WHERE status = 'processing' AND updated_at < ?
	`, message, now, now, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count swept jobs: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStorage) updateProcessingJob(ctx context.Context, id, query string, args ...any) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if n == 0 {
		// Either unknown or no longer processing (e.g. swept as stale).
		return fmt.Errorf("processing job %s: %w", id, common.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job                    model.Job
		kind, status           string
		startedAt, completedAt sql.NullTime
		input, output          sql.NullString
	)
	err := row.Scan(&job.ID, &job.SessionID, &kind, &status, &job.Priority, &job.Progress, &job.CurrentStep,
		&job.QueuedAt, &startedAt, &completedAt, &job.UpdatedAt, &input, &output, &job.ErrorMessage)
	if err != nil {
		return nil, err
	}
	job.Kind = model.JobKind(kind)
	job.Status = model.JobStatus(status)
	job.QueuedAt = job.QueuedAt.UTC()
	job.UpdatedAt = job.UpdatedAt.UTC()
	job.StartedAt = timePtr(startedAt)
	job.CompletedAt = timePtr(completedAt)
	if input.Valid && input.String != "" {
		job.InputPayload = []byte(input.String)
	}
	if output.Valid && output.String != "" {
		job.OutputPayload = []byte(output.String)
	}
	return &job, nil
}

func nullPayload(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
