// Package queue is the job queue service used by the API and the workers.
// It wraps a store.JobStore, snapshots priority from the submitter's tier
// and publishes a change event after every successful transition.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/events"
	"github.com/phrazzld/scry-notes/internal/store"
)

// DefaultMaxRetries is the retry budget given to new jobs.
const DefaultMaxRetries = 3

// DefaultListLimit bounds ListJobs when no limit is given.
const DefaultListLimit = 50

// ErrNotQueued is returned by Position for a job that is not waiting.
var ErrNotQueued = store.ErrNotQueued

// EnqueueRequest describes a job submission.
type EnqueueRequest struct {
	UserID            uuid.UUID
	Tier              domain.SubscriptionTier
	Input             domain.JobInput
	EstimatedDuration *time.Duration
}

// CompleteRequest carries the result of a processing job.
type CompleteRequest struct {
	Success      bool
	Output       *domain.JobOutput
	ErrorMessage string
	ErrorDetails *domain.ErrorDetails
}

// Queue coordinates job state for submitters and workers.
type Queue struct {
	store      store.JobStore
	publisher  events.Publisher
	maxRetries int
	logger     *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxRetries sets the retry budget of newly enqueued jobs.
func WithMaxRetries(n int) Option {
	return func(q *Queue) {
		if n >= 0 {
			q.maxRetries = n
		}
	}
}

// New creates a Queue. A nil publisher disables notifications.
func New(jobs store.JobStore, publisher events.Publisher, logger *slog.Logger, opts ...Option) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		store:      jobs,
		publisher:  publisher,
		maxRetries: DefaultMaxRetries,
		logger:     logger.With("component", "job_queue"),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue validates the input and stores a new queued job.
func (q *Queue) Enqueue(ctx context.Context, req EnqueueRequest) (uuid.UUID, error) {
	job, err := domain.NewJob(req.UserID, req.Input, req.Tier.Priority(), q.maxRetries)
	if err != nil {
		return uuid.Nil, err
	}
	job.EstimatedDuration = req.EstimatedDuration

	if err := q.store.Create(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	q.logger.InfoContext(ctx, "job enqueued",
		"job_id", job.ID,
		"user_id", job.UserID,
		"job_type", job.JobType,
		"priority", job.Priority)
	q.publish(ctx, events.JobQueued, job)
	return job.ID, nil
}

// DequeueNext claims the next job for workerID, or returns nil when the
// queue is empty.
func (q *Queue) DequeueNext(ctx context.Context, workerID string) (*domain.Job, error) {
	job, err := q.store.ClaimNext(ctx, workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	if job == nil {
		return nil, nil
	}

	q.logger.InfoContext(ctx, "job claimed",
		"job_id", job.ID,
		"worker_id", workerID,
		"priority", job.Priority,
		"retry_count", job.RetryCount)
	q.publish(ctx, events.JobStarted, job)
	return job, nil
}

// UpdateProgress raises a processing job's progress. It reports false when
// the job is not processing under lease or status would move it.
func (q *Queue) UpdateProgress(ctx context.Context, id uuid.UUID, lease domain.Lease, progress int, status *domain.JobStatus) (bool, error) {
	ok, err := q.store.UpdateProgress(ctx, id, lease, progress, status)
	if err != nil || !ok {
		return ok, err
	}
	q.publishCurrent(ctx, events.JobProgress, id)
	return true, nil
}

// Complete records the terminal outcome of a processing job held under
// lease. Only the first call applies; later calls, and calls from a worker
// whose lease was superseded, return false.
func (q *Queue) Complete(ctx context.Context, id uuid.UUID, lease domain.Lease, req CompleteRequest) (bool, error) {
	ok, err := q.store.Complete(ctx, id, lease, store.CompleteParams{
		Success:      req.Success,
		Output:       req.Output,
		ErrorMessage: req.ErrorMessage,
		ErrorDetails: req.ErrorDetails,
	})
	if err != nil || !ok {
		return ok, err
	}

	eventType := events.JobCompleted
	if !req.Success {
		eventType = events.JobFailed
	}
	q.logger.InfoContext(ctx, "job finished", "job_id", id, "success", req.Success)
	q.publishCurrent(ctx, eventType, id)
	return true, nil
}

// Retry re-queues a failed job with retries left at the back of its tier.
func (q *Queue) Retry(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := q.store.Retry(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	q.logger.InfoContext(ctx, "job requeued", "job_id", id)
	q.publishCurrent(ctx, events.JobRetried, id)
	return true, nil
}

// Cancel cancels a queued job.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := q.store.Cancel(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	q.logger.InfoContext(ctx, "job cancelled", "job_id", id)
	q.publishCurrent(ctx, events.JobCancelled, id)
	return true, nil
}

// Position returns how many queued jobs will be claimed before id.
func (q *Queue) Position(ctx context.Context, id uuid.UUID) (int, error) {
	return q.store.Position(ctx, id)
}

// GetJob returns a job by ID.
func (q *Queue) GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return q.store.Get(ctx, id)
}

// ListJobs returns a user's most recent jobs.
func (q *Queue) ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return q.store.ListByUser(ctx, userID, limit)
}

// FailStale fails processing jobs that stopped reporting and publishes a
// failure event for each.
func (q *Queue) FailStale(ctx context.Context, olderThan time.Duration, message string) ([]uuid.UUID, error) {
	ids, err := q.store.FailStale(ctx, olderThan, message)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		q.logger.WarnContext(ctx, "failed stale job", "job_id", id, "older_than", olderThan)
		q.publishCurrent(ctx, events.JobFailed, id)
	}
	return ids, nil
}

func (q *Queue) publishCurrent(ctx context.Context, t events.EventType, id uuid.UUID) {
	if q.publisher == nil {
		return
	}
	job, err := q.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			q.logger.WarnContext(ctx, "could not load job for event", "job_id", id, "error", err)
		}
		return
	}
	q.publish(ctx, t, job)
}

// publish never fails the transition that triggered it.
func (q *Queue) publish(ctx context.Context, t events.EventType, job *domain.Job) {
	if q.publisher == nil {
		return
	}
	if err := q.publisher.Publish(ctx, events.NewJobEvent(t, job)); err != nil {
		q.logger.WarnContext(ctx, "failed to publish job event",
			"job_id", job.ID,
			"event_type", t,
			"error", err)
	}
}
