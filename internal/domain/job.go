package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType identifies the kind of source content a job processes.
type JobType string

// Supported job types.
const (
	JobTypeText         JobType = "text"
	JobTypeFile         JobType = "file"
	JobTypeVideo        JobType = "video"
	JobTypePlatformLink JobType = "platform-link"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeText, JobTypeFile, JobTypeVideo, JobTypePlatformLink:
		return true
	}
	return false
}

// JobStatus represents the processing state of a job.
type JobStatus string

// Possible job status values.
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s,
// except a retry out of failed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is the unit of work tracked from submission to a terminal state.
//
// Priority and CreatedAt never change after creation. QueuedAt is the FIFO
// key within a priority tier; it equals CreatedAt until the job is retried.
type Job struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	JobType           JobType         `json:"job_type"`
	Status            JobStatus       `json:"status"`
	Priority          Priority        `json:"priority"`
	Input             json.RawMessage `json:"input"`
	Output            *JobOutput      `json:"output,omitempty"`
	Progress          int             `json:"progress"`
	ErrorMessage      string          `json:"error_message,omitempty"`
	ErrorDetails      *ErrorDetails   `json:"error_details,omitempty"`
	RetryCount        int             `json:"retry_count"`
	MaxRetries        int             `json:"max_retries"`
	EstimatedDuration *time.Duration  `json:"estimated_duration,omitempty"`
	WorkerID          string          `json:"worker_id,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	QueuedAt          time.Time       `json:"queued_at"`
	StartedAt         *time.Time      `json:"started_at,omitempty"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewJob creates a queued job for userID. The input is validated and
// encoded as the persisted payload; the priority is fixed from then on.
func NewJob(userID uuid.UUID, input JobInput, priority Priority, maxRetries int) (*Job, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: user ID cannot be empty", ErrValidation)
	}
	if input == nil {
		return nil, fmt.Errorf("%w: input is required", ErrInvalidInput)
	}
	if !priority.Valid() {
		return nil, ErrInvalidPriority
	}
	if maxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries cannot be negative", ErrValidation)
	}
	if err := input.Validate(); err != nil {
		return nil, err
	}

	raw, err := EncodeInput(input)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Job{
		ID:         uuid.New(),
		UserID:     userID,
		JobType:    input.Type(),
		Status:     JobStatusQueued,
		Priority:   priority,
		Input:      raw,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		QueuedAt:   now,
		UpdatedAt:  now,
	}, nil
}

// CanRetry reports whether the job may be put back in the queue.
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// Lease identifies one processing run of a job: the worker that claimed it
// and the retry count at claim time. Every claim follows either the
// original enqueue or a Retry, and Retry increments RetryCount, so a job
// re-claimed by the same worker still gets a new lease.
type Lease struct {
	WorkerID string
	Attempt  int
}

// Lease returns the lease of the job's current processing run.
func (j *Job) Lease() Lease {
	return Lease{WorkerID: j.WorkerID, Attempt: j.RetryCount}
}

// ErrorDetails is structured diagnostic data attached to a failed job.
type ErrorDetails struct {
	Stage        string              `json:"stage,omitempty"`
	Kind         string              `json:"kind,omitempty"`
	Panic        bool                `json:"panic,omitempty"`
	FailedChunks []FailedChunkRecord `json:"failed_chunks,omitempty"`
}
