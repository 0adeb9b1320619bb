package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	// SummaryTemperature matches the quiz temperature.
	SummaryTemperature float32 = 0.3

	// SummaryMaxOutputTokens bounds the length requested from the service.
	SummaryMaxOutputTokens = 600

	// SummaryMaxRunes caps the stored summary.
	SummaryMaxRunes = 2400

	// FallbackSummary is returned when no summary could be generated.
	FallbackSummary = "A summary could not be generated for this content. The full notes are available above."
)

// SummaryGenerator condenses aggregated notes into a short summary.
type SummaryGenerator struct {
	client Client
	opts   Options
	logger *slog.Logger
}

// NewSummaryGenerator creates a SummaryGenerator with validated dependencies.
func NewSummaryGenerator(client Client, opts Options, logger *slog.Logger) (*SummaryGenerator, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryGenerator{
		client: client,
		opts:   opts,
		logger: logger.With("component", "summary_generator"),
	}, nil
}

// Generate returns a summary of notes. A blank response counts as a failed
// attempt. When every attempt fails it returns FallbackSummary together
// with an error wrapping ErrSummaryUnavailable.
func (g *SummaryGenerator) Generate(ctx context.Context, notes string) (string, error) {
	req := Request{
		SystemPrompt:    summarySystemPrompt,
		UserPrompt:      summaryUserPrompt,
		Content:         notes,
		Temperature:     SummaryTemperature,
		MaxOutputTokens: SummaryMaxOutputTokens,
	}

	var summary string
	attempts, err := g.opts.Retry.Do(ctx, g.logger, "summary", func(ctx context.Context, _ int) error {
		text, err := call(ctx, g.client, g.opts, req)
		if err != nil {
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return ErrEmptyResponse
		}
		summary = truncateRunes(text, SummaryMaxRunes)
		return nil
	})
	if err != nil {
		g.logger.Error("summary generation exhausted retries", "attempts", attempts, "error", err)
		return FallbackSummary, fmt.Errorf("%w after %d attempts: %w", ErrSummaryUnavailable, attempts, err)
	}
	return summary, nil
}

// truncateRunes shortens s to at most n runes, cutting at the last space
// when one is available.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)[:n]
	cut := string(runes)
	if i := strings.LastIndexAny(cut, " \n"); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
