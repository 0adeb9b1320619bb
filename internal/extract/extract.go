// Package extract turns non-text job inputs into plain text before they
// reach the chunker: uploaded documents, uploaded media through a
// transcription service, and content on external platforms.
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/phrazzld/scry-notes/internal/domain"
)

var (
	// ErrUnsupportedFormat is returned for a mime type or platform no
	// extractor handles.
	ErrUnsupportedFormat = errors.New("unsupported source format")

	// ErrSourceNotFound is returned when a referenced upload does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrNoCaptions is returned for a video without caption tracks.
	ErrNoCaptions = errors.New("no captions available")

	// ErrNotConfigured is returned when the extractor for an input type was
	// not wired in.
	ErrNotConfigured = errors.New("extractor not configured")
)

// Extractor produces the source text for a job input.
type Extractor interface {
	Extract(ctx context.Context, input domain.JobInput) (string, error)
}

// Router dispatches each input variant to its extractor. Text inputs pass
// through unchanged.
type Router struct {
	Files *FileExtractor
	Media *MediaExtractor
	Links *LinkExtractor
}

var _ Extractor = (*Router)(nil)

// Extract implements Extractor.
func (r *Router) Extract(ctx context.Context, input domain.JobInput) (string, error) {
	switch in := input.(type) {
	case domain.TextInput:
		return in.Text, nil
	case domain.FileInput:
		if r.Files == nil {
			return "", fmt.Errorf("%w: file", ErrNotConfigured)
		}
		return r.Files.Extract(ctx, in)
	case domain.VideoInput:
		if r.Media == nil {
			return "", fmt.Errorf("%w: video", ErrNotConfigured)
		}
		return r.Media.Extract(ctx, in)
	case domain.PlatformLinkInput:
		if r.Links == nil {
			return "", fmt.Errorf("%w: platform link", ErrNotConfigured)
		}
		return r.Links.Extract(ctx, in)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedFormat, input)
	}
}
