package api

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/phrazzld/scry-notes/internal/api/middleware"
	"github.com/phrazzld/scry-notes/internal/api/shared"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/service"
)

// notesPage wraps rendered notes in a minimal standalone document.
var notesPage = template.Must(template.New("notes").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Notes</title></head>
<body>
<article>
{{.Notes}}
</article>
{{if .Summary}}<section><h2>Summary</h2><p>{{.Summary}}</p></section>{{end}}
</body>
</html>
`))

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobs     service.JobService
	markdown goldmark.Markdown
	logger   *slog.Logger
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobs service.JobService, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		jobs:     jobs,
		markdown: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		logger:   logger.With(slog.String("component", "job_handler")),
	}
}

// SubmitJob handles POST /api/jobs
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}
	tier, _ := middleware.GetTier(r)

	var req SubmitJobRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleValidationError(w, r, err)
		return
	}

	input, err := domain.DecodeInput(req.JobType, req.Input)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	sub, err := h.jobs.Submit(r.Context(), userID, tier, input, estimate(req.EstimatedDurationSeconds))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Info("job submitted",
		slog.String("job_id", sub.JobID.String()),
		slog.String("job_type", string(req.JobType)),
		slog.String("tier", string(tier)))

	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitJobResponse{
		JobID:    sub.JobID,
		Status:   sub.Status,
		Position: sub.Position,
	})
}

func estimate(seconds int) *time.Duration {
	if seconds <= 0 {
		return nil
	}
	d := time.Duration(seconds) * time.Second
	return &d
}

// ListJobs handles GET /api/jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", MaxListLimit))
		return
	}

	jobs, err := h.jobs.ListJobs(r.Context(), userID, limit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := JobListResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, jobToResponse(job))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// GetJob handles GET /api/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.jobs.GetJob(r.Context(), userID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// GetPosition handles GET /api/jobs/{id}/position
func (h *JobHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	pos, err := h.jobs.Position(r.Context(), userID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, PositionResponse{JobID: jobID, Position: pos})
}

// CancelJob handles POST /api/jobs/{id}/cancel
func (h *JobHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.jobs.Cancel(r.Context(), userID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	logger.FromContext(r.Context()).Info("job cancelled", slog.String("job_id", jobID.String()))
	shared.RespondWithJSON(w, r, http.StatusOK, jobToResponse(job))
}

// RetryJob handles POST /api/jobs/{id}/retry
func (h *JobHandler) RetryJob(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.jobs.Retry(r.Context(), userID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	logger.FromContext(r.Context()).Info("job retried",
		slog.String("job_id", jobID.String()),
		slog.Int("retry_count", job.RetryCount))
	shared.RespondWithJSON(w, r, http.StatusAccepted, jobToResponse(job))
}

// GetNotesHTML handles GET /api/jobs/{id}/notes.html. Notes exist only on
// completed jobs.
func (h *JobHandler) GetNotesHTML(w http.ResponseWriter, r *http.Request) {
	userID, jobID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	job, err := h.jobs.GetJob(r.Context(), userID, jobID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	if job.Status != domain.JobStatusCompleted || job.Output == nil {
		shared.RespondWithError(w, r, http.StatusConflict, "Notes are available once the job completes")
		return
	}

	var notes bytes.Buffer
	if err := h.markdown.Convert([]byte(job.Output.Notes), &notes); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to render notes", err)
		return
	}

	var page bytes.Buffer
	err = notesPage.Execute(&page, struct {
		Notes   template.HTML
		Summary string
	}{
		// goldmark escapes raw HTML unless WithUnsafe is set.
		Notes:   template.HTML(notes.String()),
		Summary: job.Output.Summary,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to render notes", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(page.Bytes()); err != nil {
		logger.FromContext(r.Context()).Warn("failed to write notes page", "error", err)
	}
}
