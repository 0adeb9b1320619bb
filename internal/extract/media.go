package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// Transcriber converts audio or video into text.
type Transcriber interface {
	Transcribe(ctx context.Context, media io.Reader, fileName, mimeType, language string) (string, error)
}

// MediaExtractor transcribes uploaded video and audio.
type MediaExtractor struct {
	storage     Storage
	transcriber Transcriber
	logger      *slog.Logger
}

// NewMediaExtractor creates a MediaExtractor.
func NewMediaExtractor(storage Storage, transcriber Transcriber, logger *slog.Logger) *MediaExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaExtractor{
		storage:     storage,
		transcriber: transcriber,
		logger:      logger.With("component", "media_extractor"),
	}
}

// Extract returns the transcript of the referenced upload.
func (e *MediaExtractor) Extract(ctx context.Context, in domain.VideoInput) (string, error) {
	if e.transcriber == nil {
		return "", fmt.Errorf("%w: transcription", ErrNotConfigured)
	}

	f, err := e.storage.Open(in.StorageKey)
	if err != nil {
		return "", err
	}
	defer f.Close()

	text, err := e.transcriber.Transcribe(ctx, f, path.Base(in.StorageKey), in.MimeType, in.Language)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	e.logger.InfoContext(ctx, "transcribed media", "storage_key", in.StorageKey, "characters", len(text))
	return text, nil
}
