package generation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// ChunkSeparator joins the notes of consecutive chunks.
const ChunkSeparator = "\n\n---\n\n"

// ChunkRunner processes a single chunk. *ChunkProcessor implements it.
type ChunkRunner interface {
	Process(ctx context.Context, chunk domain.Chunk) domain.ChunkResult
}

// Aggregation is the combined output of all chunks of a job.
type Aggregation struct {
	Combined     string
	FailedChunks []domain.FailedChunkRecord
	Succeeded    int
	Total        int
}

// PartialSuccess reports whether some, but not all, chunks failed.
func (a Aggregation) PartialSuccess() bool {
	return len(a.FailedChunks) > 0 && a.Succeeded > 0
}

// AllChunksFailedError reports a job in which no chunk produced content.
// It matches ErrAllChunksFailed with errors.Is.
type AllChunksFailedError struct {
	FailedChunks []domain.FailedChunkRecord
}

func (e *AllChunksFailedError) Error() string {
	if len(e.FailedChunks) == 0 {
		return ErrAllChunksFailed.Error()
	}
	first := e.FailedChunks[0]
	return fmt.Sprintf("%s: %d of %d chunks failed, first failure at chunk %d: %s",
		ErrAllChunksFailed, len(e.FailedChunks), len(e.FailedChunks), first.Index, first.Reason)
}

func (e *AllChunksFailedError) Unwrap() error {
	return ErrAllChunksFailed
}

// Aggregator fans a job's chunks out to a ChunkRunner and joins the results.
type Aggregator struct {
	runner ChunkRunner
	logger *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(runner ChunkRunner, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{runner: runner, logger: logger.With("component", "aggregator")}
}

// Aggregate processes every chunk concurrently and waits for all of them.
// Successful notes are joined in chunk order with ChunkSeparator. A chunk
// whose notes are blank counts as failed. If no chunk succeeds, the error is
// an *AllChunksFailedError. onProgress, when set, is called from a single
// goroutine after each chunk finishes.
func (a *Aggregator) Aggregate(ctx context.Context, chunks []domain.Chunk, onProgress func(done, total int)) (Aggregation, error) {
	total := len(chunks)
	if total == 0 {
		return Aggregation{}, domain.ErrEmptyContent
	}

	results := make(chan domain.ChunkResult, total)
	for _, c := range chunks {
		go func(c domain.Chunk) {
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("chunk processing panicked", "chunk_index", c.Index, "panic", r)
					results <- domain.ChunkResult{ChunkIndex: c.Index, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			results <- a.runner.Process(ctx, c)
		}(c)
	}

	collected := make([]domain.ChunkResult, 0, total)
	for len(collected) < total {
		collected = append(collected, <-results)
		if onProgress != nil {
			onProgress(len(collected), total)
		}
	}

	slices.SortFunc(collected, func(x, y domain.ChunkResult) int {
		return x.ChunkIndex - y.ChunkIndex
	})

	byIndex := make(map[int]domain.Chunk, total)
	for _, c := range chunks {
		byIndex[c.Index] = c
	}

	agg := Aggregation{Total: total}
	parts := make([]string, 0, total)
	for _, res := range collected {
		content := strings.TrimSpace(res.Content)
		if res.Err == nil && content != "" {
			parts = append(parts, content)
			agg.Succeeded++
			continue
		}

		reason := "chunk produced empty content"
		if res.Err != nil {
			reason = res.Err.Error()
		}
		c := byIndex[res.ChunkIndex]
		agg.FailedChunks = append(agg.FailedChunks, domain.FailedChunkRecord{
			Index:     res.ChunkIndex,
			Reason:    reason,
			Attempts:  res.Attempts,
			StartWord: c.StartWord,
			EndWord:   c.EndWord,
		})
	}

	if agg.Succeeded == 0 {
		return agg, &AllChunksFailedError{FailedChunks: agg.FailedChunks}
	}

	agg.Combined = strings.Join(parts, ChunkSeparator)
	if len(agg.FailedChunks) > 0 {
		a.logger.Warn("aggregation completed with failed chunks",
			"failed", len(agg.FailedChunks),
			"total", total)
	}
	return agg, nil
}
