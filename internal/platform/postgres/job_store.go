package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/store"
)

const jobColumns = `id, user_id, job_type, status, priority, input, output, progress,
	error_message, error_details, retry_count, max_retries, estimated_duration_ms,
	worker_id, created_at, queued_at, started_at, completed_at, updated_at`

// JobStore implements store.JobStore on PostgreSQL.
//
// Queue order is priority_rank DESC, queue_seq ASC. queue_seq comes from a
// sequence and is renewed on retry, which puts a retried job behind every
// job already waiting in its tier.
type JobStore struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.JobStore = (*JobStore)(nil)

// NewJobStore creates a JobStore over db.
func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Create implements store.JobStore.
func (s *JobStore) Create(ctx context.Context, job *domain.Job) error {
	if job == nil || job.ID == uuid.Nil || !job.Priority.Valid() {
		return store.NewStoreError("job", "create", "job is incomplete", store.ErrInvalidEntity)
	}

	output, err := marshalNullable(job.Output)
	if err != nil {
		return store.NewStoreError("job", "create", "encode output", err)
	}
	details, err := marshalNullable(job.ErrorDetails)
	if err != nil {
		return store.NewStoreError("job", "create", "encode error details", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, user_id, job_type, status, priority, priority_rank, input, output,
			progress, error_message, error_details, retry_count, max_retries, estimated_duration_ms,
			worker_id, created_at, queued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		job.ID,
		job.UserID,
		string(job.JobType),
		string(job.Status),
		string(job.Priority),
		job.Priority.Rank(),
		string(job.Input),
		output,
		job.Progress,
		nullString(job.ErrorMessage),
		details,
		job.RetryCount,
		job.MaxRetries,
		durationMillis(job.EstimatedDuration),
		nullString(job.WorkerID),
		job.CreatedAt,
		job.QueuedAt,
		job.UpdatedAt,
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to insert job", "job_id", job.ID, "error", err)
		return wrap("create", err)
	}
	return nil
}

// Get implements store.JobStore.
func (s *JobStore) Get(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	job, err := scanJob(s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrJobNotFound
	}
	if err != nil {
		return nil, wrap("get", err)
	}
	return job, nil
}

// ClaimNext implements store.JobStore. The candidate row is locked with
// SKIP LOCKED, so concurrent claimers each take a different job.
func (s *JobStore) ClaimNext(ctx context.Context, workerID string) (*domain.Job, error) {
	var claimed *domain.Job

	err := store.RunInTransaction(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var id uuid.UUID
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM jobs
			WHERE status = 'queued'
			ORDER BY priority_rank DESC, queue_seq ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED`).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		now := s.now()
		claimed, err = scanJob(tx.QueryRowContext(ctx, `
			UPDATE jobs
			SET status = 'processing', worker_id = $2, started_at = $3, updated_at = $3
			WHERE id = $1
			RETURNING `+jobColumns, id, workerID, now))
		return err
	})
	if err != nil {
		return nil, wrap("claim", err)
	}
	return claimed, nil
}

// UpdateProgress implements store.JobStore.
func (s *JobStore) UpdateProgress(ctx context.Context, id uuid.UUID, lease domain.Lease, progress int, status *domain.JobStatus) (bool, error) {
	var want sql.NullString
	if status != nil {
		want = sql.NullString{String: string(*status), Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET progress = GREATEST(progress, $2), updated_at = $3
		WHERE id = $1 AND status = 'processing' AND ($4::text IS NULL OR status = $4::text)
			AND worker_id = $5 AND retry_count = $6`,
		id, store.ClampProgress(progress), s.now(), want, lease.WorkerID, lease.Attempt)
	return s.applied(ctx, "update progress", id, res, err)
}

// Complete implements store.JobStore.
func (s *JobStore) Complete(ctx context.Context, id uuid.UUID, lease domain.Lease, params store.CompleteParams) (bool, error) {
	output, err := marshalNullable(params.Output)
	if err != nil {
		return false, store.NewStoreError("job", "complete", "encode output", err)
	}

	status := domain.JobStatusCompleted
	var message sql.NullString
	var details any
	if !params.Success {
		status = domain.JobStatusFailed
		message = nullString(params.ErrorMessage)
		if details, err = marshalNullable(params.ErrorDetails); err != nil {
			return false, store.NewStoreError("job", "complete", "encode error details", err)
		}
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $2,
			output = $3,
			progress = CASE WHEN $2 = 'completed' THEN 100 ELSE progress END,
			error_message = $4,
			error_details = $5,
			completed_at = $6,
			updated_at = $6
		WHERE id = $1 AND status = 'processing' AND worker_id = $7 AND retry_count = $8`,
		id, string(status), output, message, details, s.now(), lease.WorkerID, lease.Attempt)
	return s.applied(ctx, "complete", id, res, err)
}

// Retry implements store.JobStore.
func (s *JobStore) Retry(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'queued',
			retry_count = retry_count + 1,
			queue_seq = nextval('job_queue_seq'),
			progress = 0,
			output = NULL,
			error_message = NULL,
			error_details = NULL,
			worker_id = NULL,
			started_at = NULL,
			completed_at = NULL,
			queued_at = $2,
			updated_at = $2
		WHERE id = $1 AND status = 'failed' AND retry_count < max_retries`,
		id, s.now())
	return s.applied(ctx, "retry", id, res, err)
}

// Cancel implements store.JobStore.
func (s *JobStore) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'cancelled', completed_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'queued'`,
		id, s.now())
	return s.applied(ctx, "cancel", id, res, err)
}

// Position implements store.JobStore.
func (s *JobStore) Position(ctx context.Context, id uuid.UUID) (int, error) {
	var (
		status   string
		position int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT t.status, (
			SELECT COUNT(*) FROM jobs j
			WHERE j.status = 'queued'
			  AND (j.priority_rank > t.priority_rank
			       OR (j.priority_rank = t.priority_rank AND j.queue_seq < t.queue_seq))
		)
		FROM jobs t
		WHERE t.id = $1`, id).Scan(&status, &position)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrJobNotFound
	}
	if err != nil {
		return 0, wrap("position", err)
	}
	if domain.JobStatus(status) != domain.JobStatusQueued {
		return 0, store.ErrNotQueued
	}
	return position, nil
}

// ListByUser implements store.JobStore.
func (s *JobStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Job, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, userID, lim)
	if err != nil {
		return nil, wrap("list", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, wrap("list", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list", err)
	}
	return jobs, nil
}

// FailStale implements store.JobStore.
func (s *JobStore) FailStale(ctx context.Context, olderThan time.Duration, message string) ([]uuid.UUID, error) {
	details, err := marshalNullable(&domain.ErrorDetails{Stage: "worker"})
	if err != nil {
		return nil, err
	}

	now := s.now()
	rows, err := s.db.QueryContext(ctx, `
		UPDATE jobs
		SET status = 'failed', error_message = $1, error_details = $2, completed_at = $3, updated_at = $3
		WHERE status = 'processing' AND updated_at < $4
		RETURNING id`,
		message, details, now, now.Add(-olderThan))
	if err != nil {
		return nil, wrap("fail stale", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, wrap("fail stale", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("fail stale", err)
	}
	return ids, nil
}

// applied turns the result of a guarded UPDATE into the (changed, error)
// contract: zero rows means either a missing job or a disallowed transition.
func (s *JobStore) applied(ctx context.Context, operation string, id uuid.UUID, res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, wrap(operation, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap(operation, err)
	}
	if n > 0 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, wrap(operation, err)
	}
	if !exists {
		return false, store.ErrJobNotFound
	}
	return false, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		job                   domain.Job
		jobType, status, prio string
		input, output         []byte
		errorDetails          []byte
		errorMessage          sql.NullString
		workerID              sql.NullString
		estimatedMillis       sql.NullInt64
		startedAt             sql.NullTime
		completedAt           sql.NullTime
	)

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&jobType,
		&status,
		&prio,
		&input,
		&output,
		&job.Progress,
		&errorMessage,
		&errorDetails,
		&job.RetryCount,
		&job.MaxRetries,
		&estimatedMillis,
		&workerID,
		&job.CreatedAt,
		&job.QueuedAt,
		&startedAt,
		&completedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.JobType = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.Priority = domain.Priority(prio)
	job.Input = json.RawMessage(input)
	job.ErrorMessage = errorMessage.String
	job.WorkerID = workerID.String

	if len(output) > 0 {
		job.Output = &domain.JobOutput{}
		if err := json.Unmarshal(output, job.Output); err != nil {
			return nil, fmt.Errorf("decode output of job %s: %w", job.ID, err)
		}
	}
	if len(errorDetails) > 0 {
		job.ErrorDetails = &domain.ErrorDetails{}
		if err := json.Unmarshal(errorDetails, job.ErrorDetails); err != nil {
			return nil, fmt.Errorf("decode error details of job %s: %w", job.ID, err)
		}
	}
	if estimatedMillis.Valid {
		d := time.Duration(estimatedMillis.Int64) * time.Millisecond
		job.EstimatedDuration = &d
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		job.CompletedAt = &t
	}
	return &job, nil
}

// marshalNullable encodes v as a JSONB parameter, or NULL when v is a nil pointer.
func marshalNullable[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func durationMillis(d *time.Duration) sql.NullInt64 {
	if d == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: d.Milliseconds(), Valid: true}
}
