package task

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/extract"
	"github.com/phrazzld/scry-notes/internal/generation"
)

func newTestJob(t *testing.T, input domain.JobInput) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(uuid.New(), input, domain.PriorityNormal, 3)
	require.NoError(t, err)
	return job
}

type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) report(_ context.Context, v int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, v)
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("word ", n))
}

func TestJobProcessor_TextJob(t *testing.T) {
	t.Parallel()

	agg := &MockAggregator{}
	p := NewJobProcessor(nil, agg, &MockQuizGenerator{}, &MockSummaryGenerator{}, 100, testLogger())
	job := newTestJob(t, domain.TextInput{Text: words(250)})

	progress := &progressLog{}
	out, err := p.Process(context.Background(), job, progress.report)
	require.NoError(t, err)

	assert.Len(t, agg.chunks, 3)
	assert.Equal(t, "combined notes", out.Notes)
	assert.Equal(t, "a short summary", out.Summary)
	assert.Len(t, out.Quiz, 1)
	assert.False(t, out.PartialSuccess)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, 3, out.ChunkCount)
	assert.Equal(t, 250, out.WordCount)

	assert.Equal(t, []int{
		ProgressExtracted,
		ProgressChunked,
		10 + 70*1/3,
		10 + 70*2/3,
		ProgressNotes,
		ProgressQuiz,
		ProgressSummary,
	}, progress.values)
	for i := 1; i < len(progress.values); i++ {
		assert.GreaterOrEqual(t, progress.values[i], progress.values[i-1])
	}
}

func TestJobProcessor_PartialSuccess(t *testing.T) {
	t.Parallel()

	failed := []domain.FailedChunkRecord{{Index: 1, Reason: "timeout", Attempts: 3}}
	agg := &MockAggregator{AggregateFn: func(_ context.Context, chunks []domain.Chunk, _ func(int, int)) (generation.Aggregation, error) {
		return generation.Aggregation{Combined: "part one\n\n---\n\npart three", FailedChunks: failed, Succeeded: 2, Total: 3}, nil
	}}
	p := NewJobProcessor(nil, agg, &MockQuizGenerator{}, &MockSummaryGenerator{}, 100, testLogger())

	out, err := p.Process(context.Background(), newTestJob(t, domain.TextInput{Text: words(250)}), nil)
	require.NoError(t, err)
	assert.True(t, out.PartialSuccess)
	assert.Equal(t, failed, out.FailedChunks)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "1 of 3 chunks failed")
}

func TestJobProcessor_DerivedArtifactFailuresBecomeWarnings(t *testing.T) {
	t.Parallel()

	quiz := &MockQuizGenerator{GenerateFn: func(context.Context, string) (domain.Quiz, error) {
		return domain.Quiz{}, generation.ErrQuizUnavailable
	}}
	summary := &MockSummaryGenerator{GenerateFn: func(context.Context, string) (string, error) {
		return generation.FallbackSummary, generation.ErrSummaryUnavailable
	}}
	p := NewJobProcessor(nil, &MockAggregator{}, quiz, summary, 100, testLogger())

	out, err := p.Process(context.Background(), newTestJob(t, domain.TextInput{Text: words(20)}), nil)
	require.NoError(t, err)
	assert.Empty(t, out.Quiz)
	assert.NotNil(t, out.Quiz)
	assert.Equal(t, generation.FallbackSummary, out.Summary)
	require.Len(t, out.Warnings, 2)
	assert.Contains(t, out.Warnings[0], "quiz")
	assert.Contains(t, out.Warnings[1], "summary")
}

func TestJobProcessor_UsesExtractorForNonTextJobs(t *testing.T) {
	t.Parallel()

	var seen domain.JobInput
	extractor := &MockExtractor{ExtractFn: func(_ context.Context, in domain.JobInput) (string, error) {
		seen = in
		return words(30), nil
	}}
	agg := &MockAggregator{}
	p := NewJobProcessor(extractor, agg, &MockQuizGenerator{}, &MockSummaryGenerator{}, 100, testLogger())

	input := domain.PlatformLinkInput{Platform: domain.PlatformYouTube, URL: "https://youtube.com/watch?v=x", Language: "en"}
	out, err := p.Process(context.Background(), newTestJob(t, input), nil)
	require.NoError(t, err)
	assert.Equal(t, input, seen)
	assert.Equal(t, 30, out.WordCount)
	assert.Len(t, agg.chunks, 1)
}

func TestJobProcessor_FatalErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("download failed")
	fileInput := domain.FileInput{StorageKey: "u/a.txt", FileName: "a.txt", MimeType: "text/plain"}

	tests := []struct {
		name      string
		job       func(t *testing.T) *domain.Job
		extractor *MockExtractor
		agg       *MockAggregator
		wantStage string
		wantIs    error
	}{
		{
			name: "undecodable input",
			job: func(t *testing.T) *domain.Job {
				job := newTestJob(t, domain.TextInput{Text: "x"})
				job.JobType = domain.JobTypeFile
				return job
			},
			wantStage: StageDecode,
		},
		{
			name:      "extraction failure",
			job:       func(t *testing.T) *domain.Job { return newTestJob(t, fileInput) },
			extractor: &MockExtractor{ExtractFn: func(context.Context, domain.JobInput) (string, error) { return "", boom }},
			wantStage: StageExtract,
			wantIs:    boom,
		},
		{
			name:      "no extractor configured",
			job:       func(t *testing.T) *domain.Job { return newTestJob(t, fileInput) },
			wantStage: StageExtract,
			wantIs:    extract.ErrNotConfigured,
		},
		{
			name:      "extraction returned nothing",
			job:       func(t *testing.T) *domain.Job { return newTestJob(t, fileInput) },
			extractor: &MockExtractor{ExtractFn: func(context.Context, domain.JobInput) (string, error) { return "", nil }},
			wantStage: StageExtract,
			wantIs:    domain.ErrEmptyContent,
		},
		{
			name:      "extraction returned whitespace",
			job:       func(t *testing.T) *domain.Job { return newTestJob(t, fileInput) },
			extractor: &MockExtractor{ExtractFn: func(context.Context, domain.JobInput) (string, error) { return " \n\t ", nil }},
			wantStage: StageChunk,
			wantIs:    domain.ErrEmptyContent,
		},
		{
			name: "all chunks failed",
			job:  func(t *testing.T) *domain.Job { return newTestJob(t, domain.TextInput{Text: words(10)}) },
			agg: &MockAggregator{AggregateFn: func(context.Context, []domain.Chunk, func(int, int)) (generation.Aggregation, error) {
				return generation.Aggregation{}, &generation.AllChunksFailedError{FailedChunks: []domain.FailedChunkRecord{{Index: 0, Reason: "auth"}}}
			}},
			wantStage: StageAggregate,
			wantIs:    generation.ErrAllChunksFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := tt.agg
			if agg == nil {
				agg = &MockAggregator{}
			}
			var extractor extract.Extractor
			if tt.extractor != nil {
				extractor = tt.extractor
			}
			p := NewJobProcessor(extractor, agg, &MockQuizGenerator{}, &MockSummaryGenerator{}, 100, testLogger())

			out, err := p.Process(context.Background(), tt.job(t), nil)
			require.Error(t, err)
			assert.Nil(t, out)

			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.wantStage, stageErr.Stage)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestJobProcessor_ExtractionTimeout(t *testing.T) {
	t.Parallel()

	fileInput := domain.FileInput{StorageKey: "u/a.pdf", FileName: "a.pdf", MimeType: "application/pdf"}
	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })

	tests := []struct {
		name      string
		extract   func(ctx context.Context, in domain.JobInput) (string, error)
		wantIs    error
		wantPanic bool
	}{
		{
			name: "blocks until cancelled",
			extract: func(ctx context.Context, _ domain.JobInput) (string, error) {
				<-ctx.Done()
				return "", ctx.Err()
			},
			wantIs: context.DeadlineExceeded,
		},
		{
			name: "ignores context",
			extract: func(context.Context, domain.JobInput) (string, error) {
				<-stuck
				return "too late", nil
			},
			wantIs: context.DeadlineExceeded,
		},
		{
			name: "returns an unrelated error after the deadline",
			extract: func(ctx context.Context, _ domain.JobInput) (string, error) {
				<-ctx.Done()
				return "", errors.New("connection reset")
			},
			wantIs: context.DeadlineExceeded,
		},
		{
			name: "panics",
			extract: func(context.Context, domain.JobInput) (string, error) {
				panic("decoder crashed")
			},
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var progress progressLog
			p := NewJobProcessor(&MockExtractor{ExtractFn: tt.extract}, &MockAggregator{},
				&MockQuizGenerator{}, &MockSummaryGenerator{}, 100, testLogger(),
				WithExtractTimeout(60*time.Millisecond),
				WithExtractHeartbeat(10*time.Millisecond))

			out, err := p.Process(context.Background(), newTestJob(t, fileInput), progress.report)
			require.Error(t, err)
			assert.Nil(t, out)

			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, StageExtract, stageErr.Stage)
			assert.Equal(t, StageExtract, errorDetails(err).Stage)
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
			assert.Equal(t, tt.wantPanic, errorDetails(err).Panic)

			progress.mu.Lock()
			defer progress.mu.Unlock()
			require.NotEmpty(t, progress.values)
			for _, v := range progress.values {
				assert.Equal(t, ProgressStarted, v, "only heartbeats before extraction finishes")
			}
			if tt.wantIs != nil {
				assert.Greater(t, len(progress.values), 1, "heartbeat repeats while extraction runs")
			}
		})
	}
}

func TestJobProcessor_ExtractionCancelledByCaller(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	extractor := &MockExtractor{ExtractFn: func(ctx context.Context, _ domain.JobInput) (string, error) {
		cancel()
		<-ctx.Done()
		return "", ctx.Err()
	}}
	p := NewJobProcessor(extractor, &MockAggregator{}, &MockQuizGenerator{}, &MockSummaryGenerator{}, 100, testLogger(),
		WithExtractTimeout(time.Minute))

	input := domain.FileInput{StorageKey: "u/a.txt", FileName: "a.txt", MimeType: "text/plain"}
	_, err := p.Process(ctx, newTestJob(t, input), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewJobProcessor_ExtractDefaults(t *testing.T) {
	t.Parallel()

	p := NewJobProcessor(nil, &MockAggregator{}, &MockQuizGenerator{}, &MockSummaryGenerator{}, 100, nil,
		WithExtractTimeout(0), WithExtractHeartbeat(-time.Second))
	assert.Equal(t, DefaultExtractTimeout, p.extractTimeout)
	assert.Equal(t, DefaultExtractHeartbeat, p.extractHeartbeat)
}

func TestJobProcessor_CancelledDuringQuiz(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	quiz := &MockQuizGenerator{GenerateFn: func(context.Context, string) (domain.Quiz, error) {
		cancel()
		return domain.Quiz{}, generation.ErrQuizUnavailable
	}}
	p := NewJobProcessor(nil, &MockAggregator{}, quiz, &MockSummaryGenerator{}, 100, testLogger())

	_, err := p.Process(ctx, newTestJob(t, domain.TextInput{Text: "some words"}), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestErrorDetails(t *testing.T) {
	t.Parallel()

	failed := []domain.FailedChunkRecord{{Index: 0, Reason: "rate limited"}}
	tests := []struct {
		name string
		err  error
		want domain.ErrorDetails
	}{
		{name: "plain", err: errors.New("x"), want: domain.ErrorDetails{Stage: StageWorker}},
		{name: "panic", err: newPanicError("nil map"), want: domain.ErrorDetails{Stage: StageWorker, Panic: true}},
		{
			name: "service error in stage",
			err:  &StageError{Stage: StageExtract, Err: generation.NewServiceError("openai", 401, errors.New("bad key"))},
			want: domain.ErrorDetails{Stage: StageExtract, Kind: string(generation.KindAuth)},
		},
		{
			name: "all chunks failed",
			err:  &StageError{Stage: StageAggregate, Err: &generation.AllChunksFailedError{FailedChunks: failed}},
			want: domain.ErrorDetails{Stage: StageAggregate, Kind: "allChunksFailed", FailedChunks: failed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, *errorDetails(tt.err))
		})
	}
}
