package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// CompleteParams carries the terminal result of a processing job.
type CompleteParams struct {
	Success      bool
	Output       *domain.JobOutput
	ErrorMessage string
	ErrorDetails *domain.ErrorDetails
}

// JobStore defines the atomic state transitions of the job queue.
//
// Transition methods report whether they changed anything. A false result
// with a nil error means the job exists but was not in a state that allows
// the transition; callers treat it as a no-op, never as a failure.
type JobStore interface {
	// Create persists a new queued job and assigns its queue sequence.
	Create(ctx context.Context, job *domain.Job) error

	// Get retrieves a job by ID.
	// Returns ErrJobNotFound if the job does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// ClaimNext atomically moves the highest-priority, oldest queued job to
	// processing and assigns it to workerID. Two concurrent callers never
	// receive the same job. Returns nil, nil when the queue is empty.
	ClaimNext(ctx context.Context, workerID string) (*domain.Job, error)

	// UpdateProgress raises the progress of a processing job held under
	// lease. Progress never decreases. A non-nil status may only restate the
	// current status. Returns false when the lease is no longer current.
	UpdateProgress(ctx context.Context, id uuid.UUID, lease domain.Lease, progress int, status *domain.JobStatus) (bool, error)

	// Complete moves a processing job held under lease to completed or
	// failed. Only the first call for a given processing run applies; a
	// worker whose lease was superseded never overwrites a later run.
	Complete(ctx context.Context, id uuid.UUID, lease domain.Lease, params CompleteParams) (bool, error)

	// Retry re-queues a failed job that has retries left, behind every job
	// already waiting in its priority tier.
	Retry(ctx context.Context, id uuid.UUID) (bool, error)

	// Cancel moves a queued job to cancelled.
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)

	// Position counts the queued jobs that will be claimed before id.
	// Returns ErrNotQueued if the job is not waiting.
	Position(ctx context.Context, id uuid.UUID) (int, error)

	// ListByUser returns the user's most recent jobs, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Job, error)

	// FailStale fails processing jobs that have not been updated for
	// olderThan and returns their IDs.
	FailStale(ctx context.Context, olderThan time.Duration, message string) ([]uuid.UUID, error)
}

// ClampProgress bounds a progress value to 0..100.
func ClampProgress(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
