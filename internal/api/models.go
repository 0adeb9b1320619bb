package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// SubmitJobRequest is the body of POST /api/jobs. Input is decoded
// according to JobType: {"text"} for text, {"storage_key", "file_name",
// "mime_type"} for file and video, {"platform", "url", "language"} for
// platform-link.
type SubmitJobRequest struct {
	JobType                  domain.JobType  `json:"job_type" validate:"required,oneof=text file video platform-link"`
	Input                    json.RawMessage `json:"input" validate:"required"`
	EstimatedDurationSeconds int             `json:"estimated_duration_seconds,omitempty" validate:"gte=0"`
}

// SubmitJobResponse is returned with 202 Accepted.
type SubmitJobResponse struct {
	JobID    uuid.UUID        `json:"job_id"`
	Status   domain.JobStatus `json:"status"`
	Position int              `json:"position"`
}

// JobResponse is the client view of a job. The raw input and worker
// identity are not exposed.
type JobResponse struct {
	ID           uuid.UUID            `json:"id"`
	JobType      domain.JobType       `json:"job_type"`
	Status       domain.JobStatus     `json:"status"`
	Priority     domain.Priority      `json:"priority"`
	Progress     int                  `json:"progress"`
	Output       *domain.JobOutput    `json:"output,omitempty"`
	ErrorMessage string               `json:"error_message,omitempty"`
	ErrorDetails *domain.ErrorDetails `json:"error_details,omitempty"`
	RetryCount   int                  `json:"retry_count"`
	MaxRetries   int                  `json:"max_retries"`
	CanRetry     bool                 `json:"can_retry"`
	CreatedAt    time.Time            `json:"created_at"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// JobListResponse is returned by GET /api/jobs.
type JobListResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// PositionResponse is returned by GET /api/jobs/{id}/position.
type PositionResponse struct {
	JobID    uuid.UUID `json:"job_id"`
	Position int       `json:"position"`
}

func jobToResponse(job *domain.Job) JobResponse {
	return JobResponse{
		ID:           job.ID,
		JobType:      job.JobType,
		Status:       job.Status,
		Priority:     job.Priority,
		Progress:     job.Progress,
		Output:       job.Output,
		ErrorMessage: job.ErrorMessage,
		ErrorDetails: job.ErrorDetails,
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
		CanRetry:     job.CanRetry(),
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}
