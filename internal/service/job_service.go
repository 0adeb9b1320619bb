package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/queue"
)

// JobQueue is the part of the queue the service layer uses.
type JobQueue interface {
	Enqueue(ctx context.Context, req queue.EnqueueRequest) (uuid.UUID, error)
	GetJob(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Job, error)
	Position(ctx context.Context, id uuid.UUID) (int, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	Retry(ctx context.Context, id uuid.UUID) (bool, error)
}

// Submission is the result of submitting a job.
type Submission struct {
	JobID    uuid.UUID
	Status   domain.JobStatus
	Position int
}

// JobService provides the user-facing job operations.
type JobService interface {
	// Submit enqueues a job for userID at the priority of tier. estimate
	// is the client's duration hint and may be nil.
	Submit(
		ctx context.Context,
		userID uuid.UUID,
		tier domain.SubscriptionTier,
		input domain.JobInput,
		estimate *time.Duration,
	) (*Submission, error)

	// GetJob returns one of the user's jobs.
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error)

	// ListJobs returns the user's most recent jobs, newest first.
	ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Job, error)

	// Position returns how many queued jobs will be claimed before one of
	// the user's queued jobs.
	Position(ctx context.Context, userID, jobID uuid.UUID) (int, error)

	// Cancel cancels one of the user's queued jobs.
	Cancel(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error)

	// Retry re-queues one of the user's failed jobs.
	Retry(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error)
}

type jobServiceImpl struct {
	queue    JobQueue
	onSubmit func()
	logger   *slog.Logger
}

var _ JobService = (*jobServiceImpl)(nil)

// NewJobService creates a JobService. onSubmit, when not nil, runs after
// every successful submit or retry; an embedded worker pool passes its
// Wake method here.
func NewJobService(q JobQueue, onSubmit func(), logger *slog.Logger) (JobService, error) {
	if q == nil {
		return nil, fmt.Errorf("%w: queue cannot be nil", domain.ErrValidation)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if onSubmit == nil {
		onSubmit = func() {}
	}
	return &jobServiceImpl{
		queue:    q,
		onSubmit: onSubmit,
		logger:   logger.With(slog.String("component", "job_service")),
	}, nil
}

func (s *jobServiceImpl) Submit(
	ctx context.Context,
	userID uuid.UUID,
	tier domain.SubscriptionTier,
	input domain.JobInput,
	estimate *time.Duration,
) (*Submission, error) {
	id, err := s.queue.Enqueue(ctx, queue.EnqueueRequest{
		UserID:            userID,
		Tier:              tier,
		Input:             input,
		EstimatedDuration: estimate,
	})
	if err != nil {
		return nil, err
	}
	s.onSubmit()

	sub := &Submission{JobID: id, Status: domain.JobStatusQueued}
	pos, err := s.queue.Position(ctx, id)
	switch {
	case err == nil:
		sub.Position = pos
	case errors.Is(err, queue.ErrNotQueued):
		// Already claimed by a worker.
		if job, gerr := s.queue.GetJob(ctx, id); gerr == nil {
			sub.Status = job.Status
		}
	default:
		logger.FromContext(ctx).Warn("could not compute queue position", "job_id", id, "error", err)
	}
	return sub, nil
}

func (s *jobServiceImpl) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error) {
	job, err := s.queue.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		logger.FromContext(ctx).Debug("job access denied",
			"job_id", jobID,
			"user_id", userID)
		return nil, ErrNotOwned
	}
	return job, nil
}

func (s *jobServiceImpl) ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Job, error) {
	return s.queue.ListJobs(ctx, userID, limit)
}

func (s *jobServiceImpl) Position(ctx context.Context, userID, jobID uuid.UUID) (int, error) {
	if _, err := s.GetJob(ctx, userID, jobID); err != nil {
		return 0, err
	}
	return s.queue.Position(ctx, jobID)
}

func (s *jobServiceImpl) Cancel(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error) {
	if _, err := s.GetJob(ctx, userID, jobID); err != nil {
		return nil, err
	}
	ok, err := s.queue.Cancel(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotCancellable
	}
	return s.queue.GetJob(ctx, jobID)
}

func (s *jobServiceImpl) Retry(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error) {
	if _, err := s.GetJob(ctx, userID, jobID); err != nil {
		return nil, err
	}
	ok, err := s.queue.Retry(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotRetryable
	}
	s.onSubmit()
	return s.queue.GetJob(ctx, jobID)
}
