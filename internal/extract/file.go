package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"unicode/utf8"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// MaxFileBytes caps how much of an uploaded document is read.
const MaxFileBytes = 20 << 20

// FileExtractor reads uploaded text, Markdown and HTML documents.
type FileExtractor struct {
	storage Storage
	logger  *slog.Logger
}

// NewFileExtractor creates a FileExtractor over storage.
func NewFileExtractor(storage Storage, logger *slog.Logger) *FileExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileExtractor{storage: storage, logger: logger.With("component", "file_extractor")}
}

// Extract returns the text of the referenced upload.
func (e *FileExtractor) Extract(ctx context.Context, in domain.FileInput) (string, error) {
	mediaType, _, err := mime.ParseMediaType(in.MimeType)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, in.MimeType)
	}

	switch mediaType {
	case "text/plain", "text/markdown", "text/x-markdown", "text/html", "application/xhtml+xml":
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
	}

	f, err := e.storage.Open(in.StorageKey)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
		return HTMLToMarkdown(io.LimitReader(f, MaxFileBytes), "")
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxFileBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", in.StorageKey, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not valid UTF-8", ErrUnsupportedFormat, in.StorageKey)
	}

	e.logger.DebugContext(ctx, "read uploaded document", "storage_key", in.StorageKey, "bytes", len(data))
	return string(data), nil
}
