package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
	"github.com/phrazzld/scry-notes/internal/queue"
	"github.com/phrazzld/scry-notes/internal/redact"
)

// JobSource is the part of the queue a worker pool consumes.
type JobSource interface {
	DequeueNext(ctx context.Context, workerID string) (*domain.Job, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, lease domain.Lease, progress int, status *domain.JobStatus) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, lease domain.Lease, req queue.CompleteRequest) (bool, error)
}

// ProgressFunc reports a job's progress in percent.
type ProgressFunc func(ctx context.Context, progress int)

// Processor turns a claimed job into its output.
type Processor interface {
	Process(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error)
}

// PoolConfig holds configuration for the worker pool
type PoolConfig struct {
	// WorkerID identifies this process as the owner of claimed jobs.
	WorkerID string

	// PollInterval is how long the poll loop waits after finding the
	// queue empty.
	PollInterval time.Duration

	// Concurrency caps the number of jobs processed at once.
	Concurrency int

	// CompleteTimeout bounds the final Complete call, which runs even
	// while the pool is shutting down.
	CompleteTimeout time.Duration
}

// DefaultPoolConfig returns a PoolConfig with reasonable defaults
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		PollInterval:    5 * time.Second,
		Concurrency:     3,
		CompleteTimeout: 10 * time.Second,
	}
}

// completion is sent by a job goroutine when it finishes.
type completion struct {
	jobID    uuid.UUID
	success  bool
	recorded bool
	err      error
	duration time.Duration
}

// Pool polls the queue and processes up to Concurrency jobs at a time.
//
// Capacity is a channel of tokens: the poll loop takes a token before each
// claim and blocks while all tokens are out. Job goroutines report on the
// completion channel and the collector returns their tokens.
type Pool struct {
	source    JobSource
	processor Processor
	cfg       PoolConfig
	logger    *slog.Logger

	tokens chan struct{}
	done   chan completion
	wake   chan struct{}

	jobs       sync.WaitGroup
	loopDone   chan struct{}
	collected  chan struct{}
	stopLoop   context.CancelFunc
	cancelJobs context.CancelFunc

	mu      sync.Mutex
	started bool
	stopped bool
}

// ErrPoolStarted is returned when Start is called twice.
var ErrPoolStarted = errors.New("worker pool already started")

// NewPool creates a worker pool. Invalid config values fall back to the
// defaults.
func NewPool(source JobSource, processor Processor, cfg PoolConfig, log *slog.Logger) *Pool {
	if log == nil {
		log = slog.Default()
	}
	def := DefaultPoolConfig()
	if cfg.Concurrency <= 0 {
		log.Warn("invalid concurrency specified, using default",
			"specified", cfg.Concurrency,
			"default", def.Concurrency)
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.CompleteTimeout <= 0 {
		cfg.CompleteTimeout = def.CompleteTimeout
	}
	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + uuid.NewString()[:8]
	}

	return &Pool{
		source:    source,
		processor: processor,
		cfg:       cfg,
		logger:    log.With("component", "worker_pool", "worker_id", cfg.WorkerID),
		tokens:    make(chan struct{}, cfg.Concurrency),
		done:      make(chan completion, cfg.Concurrency),
		wake:      make(chan struct{}, 1),
		loopDone:  make(chan struct{}),
		collected: make(chan struct{}),
	}
}

// WorkerID returns the owner ID recorded on claimed jobs.
func (p *Pool) WorkerID() string {
	return p.cfg.WorkerID
}

// Start launches the poll loop and the completion collector. Cancelling
// ctx stops polling; jobs already running continue until Stop.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrPoolStarted
	}
	p.started = true

	loopCtx, stopLoop := context.WithCancel(ctx)
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	p.stopLoop = stopLoop
	p.cancelJobs = cancelJobs

	go p.collect()
	go p.poll(loopCtx, jobCtx)

	p.logger.Info("worker pool started",
		"concurrency", p.cfg.Concurrency,
		"poll_interval", p.cfg.PollInterval)
	return nil
}

// Wake makes an idle poll loop check the queue immediately.
func (p *Pool) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Stop stops polling and waits up to timeout for running jobs. Jobs still
// running after the timeout are cancelled; they record a failure before
// Stop returns. Only the first call does any work.
func (p *Pool) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	p.stopLoop()
	<-p.loopDone

	finished := make(chan struct{})
	go func() {
		p.jobs.Wait()
		close(finished)
	}()

	var err error
	select {
	case <-finished:
	case <-time.After(timeout):
		err = fmt.Errorf("worker pool: jobs still running after %s, cancelling", timeout)
		p.logger.Warn("shutdown timeout reached, cancelling running jobs", "timeout", timeout)
		p.cancelJobs()
		<-finished
	}

	p.cancelJobs()
	close(p.done)
	<-p.collected
	p.logger.Info("worker pool stopped")
	return err
}

func (p *Pool) poll(ctx, jobCtx context.Context) {
	defer close(p.loopDone)

	timer := time.NewTimer(p.cfg.PollInterval)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case p.tokens <- struct{}{}:
		case <-ctx.Done():
			return
		}

		job, err := p.source.DequeueNext(ctx, p.cfg.WorkerID)
		if err != nil || job == nil {
			<-p.tokens
			if err != nil && ctx.Err() == nil {
				p.logger.Error("failed to claim job", "error", err)
			}

			timer.Reset(p.cfg.PollInterval)
			select {
			case <-ctx.Done():
				return
			case <-p.wake:
				timer.Stop()
			case <-timer.C:
			}
			continue
		}

		p.jobs.Add(1)
		go p.run(jobCtx, job)
	}
}

func (p *Pool) collect() {
	defer close(p.collected)

	for c := range p.done {
		<-p.tokens

		log := p.logger.With("job_id", c.jobID, "duration_ms", c.duration.Milliseconds())
		switch {
		case !c.recorded:
			log.Error("job outcome was not recorded", "success", c.success, "error", c.err)
		case c.success:
			log.Info("job completed")
		default:
			log.Warn("job failed", "error", c.err)
		}
	}
}

func (p *Pool) run(ctx context.Context, job *domain.Job) {
	defer p.jobs.Done()

	start := time.Now()
	c := completion{jobID: job.ID}
	defer func() {
		c.duration = time.Since(start)
		p.done <- c
	}()

	log := p.logger.With("job_id", job.ID, "job_type", job.JobType, "priority", job.Priority)
	ctx = logger.WithLogger(ctx, log)

	output, err := p.process(ctx, job)
	c.success = err == nil
	c.err = err

	req := queue.CompleteRequest{Success: err == nil, Output: output}
	if err != nil {
		req.ErrorMessage = redact.Secrets(err.Error())
		req.ErrorDetails = errorDetails(err)
	}

	completeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.CompleteTimeout)
	defer cancel()
	applied, cerr := p.source.Complete(completeCtx, job.ID, job.Lease(), req)
	switch {
	case cerr != nil:
		log.Error("failed to record job outcome", "error", cerr)
	case !applied:
		log.Warn("job was no longer held by this run when it finished")
		c.recorded = true
	default:
		c.recorded = true
	}
}

// process runs the processor and converts a panic into a job failure so
// one job cannot take down the pool.
func (p *Pool) process(ctx context.Context, job *domain.Job) (output *domain.JobOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
			logger.FromContext(ctx).Error("job processing panicked", "panic", r)
		}
	}()

	lease := job.Lease()
	report := func(ctx context.Context, progress int) {
		processing := domain.JobStatusProcessing
		if _, err := p.source.UpdateProgress(ctx, job.ID, lease, progress, &processing); err != nil && ctx.Err() == nil {
			logger.FromContext(ctx).Warn("failed to update progress", "progress", progress, "error", err)
		}
	}
	return p.processor.Process(ctx, job, report)
}
