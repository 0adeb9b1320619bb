package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// StaleJobMessage is recorded on jobs failed by the reaper.
const StaleJobMessage = "worker stopped responding"

// StaleJobs is the part of the queue the reaper needs.
type StaleJobs interface {
	FailStale(ctx context.Context, olderThan time.Duration, message string) ([]uuid.UUID, error)
	Retry(ctx context.Context, id uuid.UUID) (bool, error)
}

// Reaper periodically fails processing jobs whose worker stopped reporting
// and re-queues the ones with retries left.
type Reaper struct {
	jobs   StaleJobs
	maxAge time.Duration
	cron   *cron.Cron
	logger *slog.Logger
}

// NewReaper schedules a sweep on schedule, a cron spec such as "@every 1m".
func NewReaper(jobs StaleJobs, schedule string, maxAge time.Duration, logger *slog.Logger) (*Reaper, error) {
	if maxAge <= 0 {
		return nil, fmt.Errorf("stale job age must be positive, got %s", maxAge)
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reaper{
		jobs:   jobs,
		maxAge: maxAge,
		cron:   cron.New(),
		logger: logger.With("component", "job_reaper"),
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.sweep(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid reaper schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start begins running sweeps in the background.
func (r *Reaper) Start() {
	r.cron.Start()
	r.logger.Info("job reaper started", "max_age", r.maxAge)
}

// Stop halts scheduling and waits for a running sweep, or for ctx.
func (r *Reaper) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce performs a single sweep and reports how many jobs were failed
// and how many of those were re-queued.
func (r *Reaper) RunOnce(ctx context.Context) (failed, requeued int, err error) {
	ids, err := r.jobs.FailStale(ctx, r.maxAge, StaleJobMessage)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fail stale jobs: %w", err)
	}

	for _, id := range ids {
		ok, err := r.jobs.Retry(ctx, id)
		if err != nil {
			r.logger.Error("failed to requeue stale job", "job_id", id, "error", err)
			continue
		}
		if ok {
			requeued++
		}
	}
	return len(ids), requeued, nil
}

func (r *Reaper) sweep(ctx context.Context) {
	failed, requeued, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.Error("stale job sweep failed", "error", err)
		return
	}
	if failed > 0 {
		r.logger.Warn("reaped stale jobs", "failed", failed, "requeued", requeued)
	}
}
