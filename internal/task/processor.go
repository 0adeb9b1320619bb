package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/scry-notes/internal/chunk"
	"github.com/phrazzld/scry-notes/internal/domain"
	"github.com/phrazzld/scry-notes/internal/extract"
	"github.com/phrazzld/scry-notes/internal/generation"
	"github.com/phrazzld/scry-notes/internal/platform/logger"
)

// Progress checkpoints reported while a job runs. Note generation
// advances linearly between ProgressChunked and ProgressNotes.
// ProgressStarted is repeated while extraction runs.
const (
	ProgressStarted   = 1
	ProgressExtracted = 5
	ProgressChunked   = 10
	ProgressNotes     = 80
	ProgressQuiz      = 85
	ProgressSummary   = 95
)

// Aggregator generates the combined notes for a job's chunks.
type Aggregator interface {
	Aggregate(ctx context.Context, chunks []domain.Chunk, onProgress func(done, total int)) (generation.Aggregation, error)
}

// QuizGenerator derives a quiz from notes.
type QuizGenerator interface {
	Generate(ctx context.Context, notes string) (domain.Quiz, error)
}

// SummaryGenerator derives a summary from notes.
type SummaryGenerator interface {
	Generate(ctx context.Context, notes string) (string, error)
}

// Extraction defaults.
const (
	DefaultExtractTimeout   = 5 * time.Minute
	DefaultExtractHeartbeat = 30 * time.Second
)

// JobProcessor runs the content pipeline for one job: decode the input,
// extract source text, chunk it, generate notes, then a quiz and a summary.
type JobProcessor struct {
	extractor        extract.Extractor
	notes            Aggregator
	quiz             QuizGenerator
	summary          SummaryGenerator
	maxWords         int
	extractTimeout   time.Duration
	extractHeartbeat time.Duration
	logger           *slog.Logger
}

var _ Processor = (*JobProcessor)(nil)

// ProcessorOption configures a JobProcessor.
type ProcessorOption func(*JobProcessor)

// WithExtractTimeout bounds how long a single extraction may run.
func WithExtractTimeout(d time.Duration) ProcessorOption {
	return func(p *JobProcessor) {
		if d > 0 {
			p.extractTimeout = d
		}
	}
}

// WithExtractHeartbeat sets how often progress is re-reported while
// extraction runs. It must stay well below the reaper's stuck-job age.
func WithExtractHeartbeat(d time.Duration) ProcessorOption {
	return func(p *JobProcessor) {
		if d > 0 {
			p.extractHeartbeat = d
		}
	}
}

// NewJobProcessor creates a JobProcessor. extractor may be nil when only
// text jobs are accepted.
func NewJobProcessor(
	extractor extract.Extractor,
	notes Aggregator,
	quiz QuizGenerator,
	summary SummaryGenerator,
	maxWords int,
	log *slog.Logger,
	opts ...ProcessorOption,
) *JobProcessor {
	if maxWords <= 0 {
		maxWords = chunk.DefaultMaxWords
	}
	if log == nil {
		log = slog.Default()
	}
	p := &JobProcessor{
		extractor:        extractor,
		notes:            notes,
		quiz:             quiz,
		summary:          summary,
		maxWords:         maxWords,
		extractTimeout:   DefaultExtractTimeout,
		extractHeartbeat: DefaultExtractHeartbeat,
		logger:           log.With("component", "job_processor"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process implements Processor.
func (p *JobProcessor) Process(ctx context.Context, job *domain.Job, report ProgressFunc) (*domain.JobOutput, error) {
	log := logger.FromContext(ctx)
	if report == nil {
		report = func(context.Context, int) {}
	}

	input, err := domain.DecodeInput(job.JobType, job.Input)
	if err != nil {
		return nil, &StageError{Stage: StageDecode, Err: err}
	}

	text, err := p.sourceText(ctx, input, report)
	if err != nil {
		return nil, &StageError{Stage: StageExtract, Err: err}
	}
	report(ctx, ProgressExtracted)

	chunks := chunk.Split(text, p.maxWords)
	if len(chunks) == 0 {
		return nil, &StageError{Stage: StageChunk, Err: domain.ErrEmptyContent}
	}
	report(ctx, ProgressChunked)
	log.Info("content chunked", "chunks", len(chunks), "max_words", p.maxWords)

	span := ProgressNotes - ProgressChunked
	agg, err := p.notes.Aggregate(ctx, chunks, func(done, total int) {
		report(ctx, ProgressChunked+span*done/total)
	})
	if err != nil {
		return nil, &StageError{Stage: StageAggregate, Err: err}
	}

	out := &domain.JobOutput{
		Notes:          agg.Combined,
		PartialSuccess: agg.PartialSuccess(),
		FailedChunks:   agg.FailedChunks,
		ChunkCount:     len(chunks),
		WordCount:      chunk.WordCount(text),
	}
	if out.PartialSuccess {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("%d of %d chunks failed; notes do not cover the whole source", len(agg.FailedChunks), agg.Total))
	}

	quiz, err := p.quiz.Generate(ctx, agg.Combined)
	if cerr := ctx.Err(); cerr != nil {
		return nil, &StageError{Stage: StageQuiz, Err: cerr}
	}
	if err != nil {
		log.Warn("quiz unavailable", "error", err)
		out.Warnings = append(out.Warnings, "quiz could not be generated: "+err.Error())
		quiz = domain.Quiz{}
	}
	out.Quiz = quiz
	report(ctx, ProgressQuiz)

	summary, err := p.summary.Generate(ctx, agg.Combined)
	if cerr := ctx.Err(); cerr != nil {
		return nil, &StageError{Stage: StageSummary, Err: cerr}
	}
	if err != nil {
		log.Warn("summary unavailable", "error", err)
		out.Warnings = append(out.Warnings, "summary could not be generated: "+err.Error())
		if summary == "" {
			summary = generation.FallbackSummary
		}
	}
	out.Summary = summary
	report(ctx, ProgressSummary)

	return out, nil
}

// sourceText returns the text to chunk. Extraction runs once and is not
// retried; its failure fails the job.
func (p *JobProcessor) sourceText(ctx context.Context, input domain.JobInput, report ProgressFunc) (string, error) {
	if in, ok := input.(domain.TextInput); ok {
		return in.Text, nil
	}
	if p.extractor == nil {
		return "", fmt.Errorf("%w: %s", extract.ErrNotConfigured, input.Type())
	}

	text, err := p.extract(ctx, input, report)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("%w: extracted %s produced no text", domain.ErrEmptyContent, input.Type())
	}
	return text, nil
}

type extraction struct {
	text string
	err  error
}

// extract runs the extractor under the extraction timeout and keeps the
// job's updated_at fresh until it returns. The extractor runs in its own
// goroutine so one that ignores ctx still releases the job at the deadline.
func (p *JobProcessor) extract(ctx context.Context, input domain.JobInput, report ProgressFunc) (string, error) {
	extractCtx, cancel := context.WithTimeout(ctx, p.extractTimeout)
	defer cancel()

	report(ctx, ProgressStarted)

	done := make(chan extraction, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- extraction{err: newPanicError(r)}
			}
		}()
		text, err := p.extractor.Extract(extractCtx, input)
		done <- extraction{text: text, err: err}
	}()

	heartbeat := time.NewTicker(p.extractHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case res := <-done:
			if res.err != nil && extractCtx.Err() != nil {
				return "", p.extractAbort(ctx)
			}
			return res.text, res.err
		case <-extractCtx.Done():
			return "", p.extractAbort(ctx)
		case <-heartbeat.C:
			report(ctx, ProgressStarted)
		}
	}
}

// extractAbort reports why extraction stopped: the job was cancelled, or
// the extraction timeout expired.
func (p *JobProcessor) extractAbort(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.FromContext(ctx).Warn("extraction timed out", "timeout", p.extractTimeout)
	return fmt.Errorf("extraction timed out after %s: %w", p.extractTimeout, context.DeadlineExceeded)
}
