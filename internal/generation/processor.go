package generation

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/phrazzld/scry-notes/internal/domain"
)

const (
	// MaxChunkTokens is the largest estimated token count a chunk may have
	// before it is sent to the service.
	MaxChunkTokens = 3000

	// NoteTemperature is used for note generation.
	NoteTemperature float32 = 0.7
)

// EstimateTokens approximates the token count of content as one token per
// four characters, rounded up.
func EstimateTokens(content string) int {
	return (utf8.RuneCountInString(content) + 3) / 4
}

// ChunkProcessor turns one chunk into notes through the Client.
type ChunkProcessor struct {
	client Client
	opts   Options
	logger *slog.Logger
}

// NewChunkProcessor creates a ChunkProcessor with validated dependencies.
func NewChunkProcessor(client Client, opts Options, logger *slog.Logger) (*ChunkProcessor, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChunkProcessor{
		client: client,
		opts:   opts,
		logger: logger.With("component", "chunk_processor"),
	}, nil
}

// Process generates notes for chunk. It never returns an error: failures,
// including an oversized chunk, are reported in the result so sibling
// chunks keep going.
func (p *ChunkProcessor) Process(ctx context.Context, chunk domain.Chunk) domain.ChunkResult {
	result := domain.ChunkResult{ChunkIndex: chunk.Index}

	if tokens := EstimateTokens(chunk.Content); tokens > MaxChunkTokens {
		p.logger.Warn("chunk rejected before generation",
			"chunk_index", chunk.Index,
			"estimated_tokens", tokens,
			"limit", MaxChunkTokens)
		result.Err = fmt.Errorf("%w: estimated %d tokens, limit %d", ErrChunkTooLarge, tokens, MaxChunkTokens)
		return result
	}

	req := Request{
		SystemPrompt: noteSystemPrompt,
		UserPrompt:   noteUserPrompt,
		Content:      chunk.Content,
		Temperature:  NoteTemperature,
	}

	var notes string
	attempts, err := p.opts.Retry.Do(ctx, p.logger, fmt.Sprintf("chunk %d", chunk.Index),
		func(ctx context.Context, _ int) error {
			text, err := call(ctx, p.client, p.opts, req)
			if err != nil {
				return err
			}
			notes = text
			return nil
		})

	result.Attempts = attempts
	if err != nil {
		p.logger.Error("chunk generation failed",
			"chunk_index", chunk.Index,
			"attempts", attempts,
			"error", err)
		result.Err = err
		return result
	}

	result.Content = notes
	return result
}
