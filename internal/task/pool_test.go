package task

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/queue"
	"github.com/phrazzld/scry-notes/internal/store/memory"
)

func newTestQueue() *queue.Queue {
	return queue.New(memory.NewJobStore(), nil, testLogger())
}

func enqueueText(t *testing.T, q *queue.Queue, text string) uuid.UUID {
	t.Helper()
	id, err := q.Enqueue(context.Background(), queue.EnqueueRequest{
		UserID: uuid.New(),
		Tier:   domain.TierBasic,
		Input:  domain.TextInput{Text: text},
	})
	require.NoError(t, err)
	return id
}

func testPoolConfig(concurrency int) PoolConfig {
	return PoolConfig{
		WorkerID:        "test-worker",
		PollInterval:    10 * time.Millisecond,
		Concurrency:     concurrency,
		CompleteTimeout: time.Second,
	}
}

func waitForStatus(t *testing.T, q *queue.Queue, id uuid.UUID, want domain.JobStatus) *domain.Job {
	t.Helper()
	var job *domain.Job
	require.Eventually(t, func() bool {
		var err error
		job, err = q.GetJob(context.Background(), id)
		return err == nil && job.Status == want
	}, 2*time.Second, 5*time.Millisecond, "job %s never reached %s", id, want)
	return job
}

func successOutput() *domain.JobOutput {
	return &domain.JobOutput{Notes: "notes", Summary: "summary", Quiz: domain.Quiz{}}
}

func TestPool_ProcessesAllJobs(t *testing.T) {
	t.Parallel()

	q := newTestQueue()
	var processed atomic.Int32
	proc := ProcessorFunc(func(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error) {
		report(ctx, 50)
		processed.Add(1)
		return successOutput(), nil
	})

	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = enqueueText(t, q, "some text")
	}

	pool := NewPool(q, proc, testPoolConfig(2), testLogger())
	require.NoError(t, pool.Start(context.Background()))

	for _, id := range ids {
		job := waitForStatus(t, q, id, domain.JobStatusCompleted)
		assert.Equal(t, 100, job.Progress)
		assert.Equal(t, "test-worker", job.WorkerID)
		require.NotNil(t, job.Output)
	}
	require.NoError(t, pool.Stop(time.Second))
	assert.Equal(t, int32(5), processed.Load())
}

func TestPool_RespectsConcurrency(t *testing.T) {
	t.Parallel()

	const concurrency = 2
	q := newTestQueue()

	var running, peak atomic.Int32
	release := make(chan struct{})
	proc := ProcessorFunc(func(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return successOutput(), nil
	})

	ids := make([]uuid.UUID, 6)
	for i := range ids {
		ids[i] = enqueueText(t, q, "text")
	}

	pool := NewPool(q, proc, testPoolConfig(concurrency), testLogger())
	require.NoError(t, pool.Start(context.Background()))

	require.Eventually(t, func() bool { return running.Load() == concurrency }, time.Second, 5*time.Millisecond)
	// Give the poll loop time to overreach if it were going to.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(concurrency), running.Load())

	close(release)
	for _, id := range ids {
		waitForStatus(t, q, id, domain.JobStatusCompleted)
	}
	require.NoError(t, pool.Stop(time.Second))
	assert.LessOrEqual(t, peak.Load(), int32(concurrency))
}

func TestPool_IsolatesFailures(t *testing.T) {
	t.Parallel()

	q := newTestQueue()
	panicky := enqueueText(t, q, "panic")
	failing := enqueueText(t, q, "fail")
	healthy := enqueueText(t, q, "ok")

	proc := ProcessorFunc(func(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error) {
		in, err := domain.DecodeInput(job.JobType, job.Input)
		if err != nil {
			return nil, err
		}
		switch in.(domain.TextInput).Text {
		case "panic":
			var m map[string]int
			m["boom"]++
		case "fail":
			return nil, &StageError{Stage: StageExtract, Err: domain.ErrEmptyContent}
		}
		return successOutput(), nil
	})

	pool := NewPool(q, proc, testPoolConfig(3), testLogger())
	require.NoError(t, pool.Start(context.Background()))

	job := waitForStatus(t, q, panicky, domain.JobStatusFailed)
	require.NotNil(t, job.ErrorDetails)
	assert.True(t, job.ErrorDetails.Panic)
	assert.Equal(t, StageWorker, job.ErrorDetails.Stage)
	assert.Contains(t, job.ErrorMessage, "panicked")

	job = waitForStatus(t, q, failing, domain.JobStatusFailed)
	require.NotNil(t, job.ErrorDetails)
	assert.Equal(t, StageExtract, job.ErrorDetails.Stage)
	assert.False(t, job.ErrorDetails.Panic)

	waitForStatus(t, q, healthy, domain.JobStatusCompleted)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_StopTimeoutCancelsRunningJobs(t *testing.T) {
	t.Parallel()

	q := newTestQueue()
	id := enqueueText(t, q, "slow")

	started := make(chan struct{})
	proc := ProcessorFunc(func(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})

	pool := NewPool(q, proc, testPoolConfig(1), testLogger())
	require.NoError(t, pool.Start(context.Background()))
	<-started

	err := pool.Stop(20 * time.Millisecond)
	require.Error(t, err)

	job, err := q.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, context.Canceled.Error())
}

func TestPool_StopWaitsForRunningJobs(t *testing.T) {
	t.Parallel()

	q := newTestQueue()
	id := enqueueText(t, q, "slow")

	started := make(chan struct{})
	proc := ProcessorFunc(func(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error) {
		close(started)
		time.Sleep(30 * time.Millisecond)
		return successOutput(), nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	pool := NewPool(q, proc, testPoolConfig(1), testLogger())
	require.NoError(t, pool.Start(ctx))
	<-started
	cancel()

	require.NoError(t, pool.Stop(time.Second))
	job, err := q.GetJob(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
}

func TestPool_StartTwice(t *testing.T) {
	t.Parallel()

	pool := NewPool(newTestQueue(), ProcessorFunc(nil), testPoolConfig(1), testLogger())
	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolStarted)
	require.NoError(t, pool.Stop(time.Second))
}

func TestPool_StopWithoutStart(t *testing.T) {
	t.Parallel()

	pool := NewPool(newTestQueue(), ProcessorFunc(nil), testPoolConfig(1), testLogger())
	assert.NoError(t, pool.Stop(time.Second))
}

func TestPool_StopTwice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		concurrent bool
	}{
		{name: "sequential"},
		{name: "concurrent", concurrent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pool := NewPool(newTestQueue(), ProcessorFunc(nil), testPoolConfig(1), testLogger())
			require.NoError(t, pool.Start(context.Background()))

			if !tt.concurrent {
				require.NoError(t, pool.Stop(time.Second))
				assert.NotPanics(t, func() { assert.NoError(t, pool.Stop(time.Second)) })
				return
			}

			var wg sync.WaitGroup
			for i := 0; i < 3; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, pool.Stop(time.Second))
				}()
			}
			wg.Wait()
		})
	}
}

func TestPool_StaleRunDoesNotOverwriteRetriedJob(t *testing.T) {
	t.Parallel()

	q := newTestQueue()
	id := enqueueText(t, q, "text")

	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	proc := ProcessorFunc(func(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error) {
		if job.RetryCount == 0 {
			close(firstStarted)
			<-releaseFirst
			report(ctx, 95)
			return nil, &StageError{Stage: StageExtract, Err: domain.ErrEmptyContent}
		}
		return &domain.JobOutput{Notes: "second run"}, nil
	})

	pool := NewPool(q, proc, testPoolConfig(2), testLogger())
	require.NoError(t, pool.Start(context.Background()))
	<-firstStarted

	// The reaper gives up on the first run and the job is queued again.
	ctx := context.Background()
	_, err := q.FailStale(ctx, -time.Second, "worker stopped responding")
	require.NoError(t, err)
	ok, err := q.Retry(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)

	job := waitForStatus(t, q, id, domain.JobStatusCompleted)
	require.NotNil(t, job.Output)
	assert.Equal(t, "second run", job.Output.Notes)

	close(releaseFirst)
	require.NoError(t, pool.Stop(time.Second))

	job, err = q.GetJob(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, "second run", job.Output.Notes)
	assert.Empty(t, job.ErrorMessage)
}

func TestPool_WakeSkipsPollInterval(t *testing.T) {
	t.Parallel()

	q := newTestQueue()
	proc := ProcessorFunc(func(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error) {
		return successOutput(), nil
	})

	cfg := testPoolConfig(1)
	cfg.PollInterval = time.Hour
	pool := NewPool(q, proc, cfg, testLogger())
	require.NoError(t, pool.Start(context.Background()))

	// The first poll finds the queue empty and goes idle for an hour.
	time.Sleep(20 * time.Millisecond)
	id := enqueueText(t, q, "now")
	pool.Wake()

	waitForStatus(t, q, id, domain.JobStatusCompleted)
	require.NoError(t, pool.Stop(time.Second))
}

func TestNewPool_Defaults(t *testing.T) {
	t.Parallel()

	pool := NewPool(newTestQueue(), ProcessorFunc(nil), PoolConfig{Concurrency: -1}, nil)
	def := DefaultPoolConfig()
	assert.Equal(t, def.Concurrency, pool.cfg.Concurrency)
	assert.Equal(t, def.PollInterval, pool.cfg.PollInterval)
	assert.Equal(t, def.CompleteTimeout, pool.cfg.CompleteTimeout)
	assert.NotEmpty(t, pool.WorkerID())
}

type recordingSource struct {
	JobSource
	mu       sync.Mutex
	progress []int
}

func (s *recordingSource) UpdateProgress(ctx context.Context, id uuid.UUID, lease domain.Lease, progress int, status *domain.JobStatus) (bool, error) {
	s.mu.Lock()
	s.progress = append(s.progress, progress)
	s.mu.Unlock()
	return s.JobSource.UpdateProgress(ctx, id, lease, progress, status)
}

func TestPool_ReportsProgressThroughSource(t *testing.T) {
	t.Parallel()

	q := newTestQueue()
	src := &recordingSource{JobSource: q}
	id := enqueueText(t, q, "one two three")

	proc := NewJobProcessor(nil, &MockAggregator{}, &MockQuizGenerator{}, &MockSummaryGenerator{}, 100, testLogger())
	pool := NewPool(src, proc, testPoolConfig(1), testLogger())
	require.NoError(t, pool.Start(context.Background()))

	job := waitForStatus(t, q, id, domain.JobStatusCompleted)
	require.NoError(t, pool.Stop(time.Second))

	require.NotNil(t, job.Output)
	assert.Equal(t, "combined notes", job.Output.Notes)
	src.mu.Lock()
	defer src.mu.Unlock()
	assert.Equal(t, []int{ProgressExtracted, ProgressChunked, ProgressNotes, ProgressQuiz, ProgressSummary}, src.progress)
}
