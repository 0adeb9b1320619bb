package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// EventType names a job state change.
type EventType string

// Job event types.
const (
	JobQueued    EventType = "job.queued"
	JobStarted   EventType = "job.started"
	JobProgress  EventType = "job.progress"
	JobCompleted EventType = "job.completed"
	JobFailed    EventType = "job.failed"
	JobCancelled EventType = "job.cancelled"
	JobRetried   EventType = "job.retried"
)

// JobEvent is the change notification delivered to a job's owner.
type JobEvent struct {
	Type      EventType        `json:"type"`
	JobID     uuid.UUID        `json:"job_id"`
	UserID    uuid.UUID        `json:"user_id"`
	Status    domain.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewJobEvent snapshots job into an event of type t.
func NewJobEvent(t EventType, job *domain.Job) JobEvent {
	return JobEvent{
		Type:      t,
		JobID:     job.ID,
		UserID:    job.UserID,
		Status:    job.Status,
		Progress:  job.Progress,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher delivers job events to interested parties.
type Publisher interface {
	// Publish sends event to every subscriber of the event's user.
	// Implementations must not block on slow subscribers.
	Publish(ctx context.Context, event JobEvent) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, event JobEvent) error

// Publish implements Publisher.
func (f PublisherFunc) Publish(ctx context.Context, event JobEvent) error {
	return f(ctx, event)
}
