package task

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/generation"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error)

func (f ProcessorFunc) Process(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error) {
	return f(ctx, job, report)
}

// MockAggregator implements Aggregator with an overridable function.
type MockAggregator struct {
	AggregateFn func(ctx context.Context, chunks []domain.Chunk, onProgress func(done, total int)) (generation.Aggregation, error)
	chunks      []domain.Chunk
}

func (m *MockAggregator) Aggregate(ctx context.Context, chunks []domain.Chunk, onProgress func(done, total int)) (generation.Aggregation, error) {
	m.chunks = chunks
	if m.AggregateFn != nil {
		return m.AggregateFn(ctx, chunks, onProgress)
	}
	for i := range chunks {
		onProgress(i+1, len(chunks))
	}
	return generation.Aggregation{Combined: "combined notes", Succeeded: len(chunks), Total: len(chunks)}, nil
}

// MockQuizGenerator implements QuizGenerator.
type MockQuizGenerator struct {
	GenerateFn func(ctx context.Context, notes string) (domain.Quiz, error)
}

func (m *MockQuizGenerator) Generate(ctx context.Context, notes string) (domain.Quiz, error) {
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, notes)
	}
	return domain.Quiz{{
		ID:            "q1",
		Question:      "What is in the notes?",
		Options:       domain.QuizOptions{A: "notes", B: "nothing", C: "noise"},
		CorrectAnswer: "A",
	}}, nil
}

// MockSummaryGenerator implements SummaryGenerator.
type MockSummaryGenerator struct {
	GenerateFn func(ctx context.Context, notes string) (string, error)
}

func (m *MockSummaryGenerator) Generate(ctx context.Context, notes string) (string, error) {
	if m.GenerateFn != nil {
		return m.GenerateFn(ctx, notes)
	}
	return "a short summary", nil
}

// MockExtractor implements extract.Extractor.
type MockExtractor struct {
	ExtractFn func(ctx context.Context, input domain.JobInput) (string, error)
}

func (m *MockExtractor) Extract(ctx context.Context, input domain.JobInput) (string, error) {
	return m.ExtractFn(ctx, input)
}

// MockStaleJobs implements StaleJobs.
type MockStaleJobs struct {
	mu          sync.Mutex
	FailStaleFn func(ctx context.Context, olderThan time.Duration, message string) ([]uuid.UUID, error)
	RetryFn     func(ctx context.Context, id uuid.UUID) (bool, error)
	retried     []uuid.UUID
}

func (m *MockStaleJobs) FailStale(ctx context.Context, olderThan time.Duration, message string) ([]uuid.UUID, error) {
	return m.FailStaleFn(ctx, olderThan, message)
}

func (m *MockStaleJobs) Retry(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	m.retried = append(m.retried, id)
	m.mu.Unlock()
	return m.RetryFn(ctx, id)
}
