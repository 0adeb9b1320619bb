// Package memory provides an in-process JobStore used by tests and by
// single-binary deployments that run without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/store"
)

type entry struct {
	job     *domain.Job
	seq     uint64 // queue position key; renewed on retry
	created uint64
}

// JobStore keeps jobs in a map guarded by a single mutex. Every transition
// runs under the lock, which makes claims single-owner.
type JobStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*entry
	nextSeq uint64
	now     func() time.Time
}

var _ store.JobStore = (*JobStore)(nil)

// NewJobStore creates an empty store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[uuid.UUID]*entry),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *JobStore) seq() uint64 {
	s.nextSeq++
	return s.nextSeq
}

// ahead reports whether a is claimed before b.
func ahead(a, b *entry) bool {
	ra, rb := a.job.Priority.Rank(), b.job.Priority.Rank()
	if ra != rb {
		return ra > rb
	}
	return a.seq < b.seq
}

// Create implements store.JobStore.
func (s *JobStore) Create(_ context.Context, job *domain.Job) error {
	if job == nil || job.ID == uuid.Nil {
		return store.NewStoreError("job", "create", "job ID is required", store.ErrInvalidEntity)
	}
	if !job.Priority.Valid() {
		return store.NewStoreError("job", "create", "invalid priority", store.ErrInvalidEntity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return store.NewStoreError("job", "create", job.ID.String(), store.ErrDuplicate)
	}
	seq := s.seq()
	s.jobs[job.ID] = &entry{job: cloneJob(job), seq: seq, created: seq}
	return nil
}

// Get implements store.JobStore.
func (s *JobStore) Get(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return cloneJob(e.job), nil
}

// ClaimNext implements store.JobStore.
func (s *JobStore) ClaimNext(ctx context.Context, workerID string) (*domain.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var best *entry
	for _, e := range s.jobs {
		if e.job.Status != domain.JobStatusQueued {
			continue
		}
		if best == nil || ahead(e, best) {
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}

	now := s.now()
	best.job.Status = domain.JobStatusProcessing
	best.job.WorkerID = workerID
	best.job.StartedAt = &now
	best.job.UpdatedAt = now
	return cloneJob(best.job), nil
}

// UpdateProgress implements store.JobStore.
func (s *JobStore) UpdateProgress(_ context.Context, id uuid.UUID, lease domain.Lease, progress int, status *domain.JobStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return false, store.ErrJobNotFound
	}
	if e.job.Status != domain.JobStatusProcessing || e.job.Lease() != lease {
		return false, nil
	}
	if status != nil && *status != e.job.Status {
		return false, nil
	}

	e.job.Progress = max(e.job.Progress, store.ClampProgress(progress))
	e.job.UpdatedAt = s.now()
	return true, nil
}

// Complete implements store.JobStore.
func (s *JobStore) Complete(_ context.Context, id uuid.UUID, lease domain.Lease, params store.CompleteParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return false, store.ErrJobNotFound
	}
	if e.job.Status != domain.JobStatusProcessing || e.job.Lease() != lease {
		return false, nil
	}

	now := s.now()
	e.job.CompletedAt = &now
	e.job.UpdatedAt = now
	e.job.Output = params.Output
	if params.Success {
		e.job.Status = domain.JobStatusCompleted
		e.job.Progress = 100
		e.job.ErrorMessage = ""
		e.job.ErrorDetails = nil
	} else {
		e.job.Status = domain.JobStatusFailed
		e.job.ErrorMessage = params.ErrorMessage
		e.job.ErrorDetails = params.ErrorDetails
	}
	return true, nil
}

// Retry implements store.JobStore.
func (s *JobStore) Retry(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return false, store.ErrJobNotFound
	}
	if !e.job.CanRetry() {
		return false, nil
	}

	now := s.now()
	e.seq = s.seq()
	e.job.Status = domain.JobStatusQueued
	e.job.RetryCount++
	e.job.Progress = 0
	e.job.Output = nil
	e.job.ErrorMessage = ""
	e.job.ErrorDetails = nil
	e.job.WorkerID = ""
	e.job.StartedAt = nil
	e.job.CompletedAt = nil
	e.job.QueuedAt = now
	e.job.UpdatedAt = now
	return true, nil
}

// Cancel implements store.JobStore.
func (s *JobStore) Cancel(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return false, store.ErrJobNotFound
	}
	if e.job.Status != domain.JobStatusQueued {
		return false, nil
	}

	now := s.now()
	e.job.Status = domain.JobStatusCancelled
	e.job.CompletedAt = &now
	e.job.UpdatedAt = now
	return true, nil
}

// Position implements store.JobStore.
func (s *JobStore) Position(_ context.Context, id uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.jobs[id]
	if !ok {
		return 0, store.ErrJobNotFound
	}
	if target.job.Status != domain.JobStatusQueued {
		return 0, store.ErrNotQueued
	}

	n := 0
	for _, e := range s.jobs {
		if e != target && e.job.Status == domain.JobStatusQueued && ahead(e, target) {
			n++
		}
	}
	return n, nil
}

// ListByUser implements store.JobStore.
func (s *JobStore) ListByUser(_ context.Context, userID uuid.UUID, limit int) ([]*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []*entry
	for _, e := range s.jobs {
		if e.job.UserID == userID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].created > entries[j].created
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	jobs := make([]*domain.Job, len(entries))
	for i, e := range entries {
		jobs[i] = cloneJob(e.job)
	}
	return jobs, nil
}

// FailStale implements store.JobStore.
func (s *JobStore) FailStale(_ context.Context, olderThan time.Duration, message string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-olderThan)
	var ids []uuid.UUID
	for id, e := range s.jobs {
		if e.job.Status != domain.JobStatusProcessing || !e.job.UpdatedAt.Before(cutoff) {
			continue
		}
		e.job.Status = domain.JobStatusFailed
		e.job.ErrorMessage = message
		e.job.ErrorDetails = &domain.ErrorDetails{Stage: "worker"}
		e.job.CompletedAt = &now
		e.job.UpdatedAt = now
		ids = append(ids, id)
	}
	return ids, nil
}

func cloneJob(j *domain.Job) *domain.Job {
	c := *j
	if j.Input != nil {
		c.Input = append([]byte(nil), j.Input...)
	}
	return &c
}
