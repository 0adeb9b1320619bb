package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/phrazzld/scry-notes/internal/domain"
)

// LinkExtractor fetches content that lives on an external platform.
type LinkExtractor struct {
	http     *http.Client
	captions CaptionFetcher
	logger   *slog.Logger
}

// NewLinkExtractor creates a LinkExtractor. A nil httpClient uses
// http.DefaultClient.
func NewLinkExtractor(httpClient *http.Client, captions CaptionFetcher, logger *slog.Logger) *LinkExtractor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkExtractor{http: httpClient, captions: captions, logger: logger.With("component", "link_extractor")}
}

// Extract returns the text behind a platform link.
func (e *LinkExtractor) Extract(ctx context.Context, in domain.PlatformLinkInput) (string, error) {
	switch in.Platform {
	case domain.PlatformYouTube:
		if e.captions == nil {
			return "", fmt.Errorf("%w: captions", ErrNotConfigured)
		}
		text, err := e.captions.Captions(ctx, in.URL, in.Language)
		if err != nil {
			return "", err
		}
		e.logger.InfoContext(ctx, "fetched captions", "url", in.URL, "characters", len(text))
		return text, nil
	case domain.PlatformWeb:
		return e.fetchPage(ctx, in.URL)
	default:
		return "", fmt.Errorf("%w: platform %q", ErrUnsupportedFormat, in.Platform)
	}
}

func (e *LinkExtractor) fetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,text/plain;q=0.9")

	resp, err := e.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s returned status %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, MaxFileBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "text/plain", "text/markdown":
		data, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", url, err)
		}
		return string(data), nil
	case "", "text/html", "application/xhtml+xml":
		text, err := HTMLToMarkdown(body, url)
		if err != nil {
			return "", err
		}
		e.logger.InfoContext(ctx, "fetched web page", "url", url, "characters", len(text))
		return text, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mediaType)
	}
}
