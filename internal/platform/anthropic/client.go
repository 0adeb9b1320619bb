// Package anthropic adapts the Anthropic Messages API to the
// generation.Client interface.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/phrazzld/scry-notes/internal/generation"
)

const (
	// ProviderName labels errors raised by this adapter.
	ProviderName = "anthropic"

	// DefaultModel is used when no model is configured.
	DefaultModel = string(anthropic.ModelClaudeSonnet4_5)

	// DefaultMaxTokens is sent when a request leaves the output length open;
	// the Messages API requires a value.
	DefaultMaxTokens = 4096
)

// Config holds the settings needed to reach the Anthropic API.
type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// Client implements generation.Client with the Messages API.
type Client struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

var _ generation.Client = (*Client)(nil)

// NewClient creates an Anthropic-backed generation client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Client{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
		logger: logger.With("component", "anthropic_client", "model", cfg.Model),
	}, nil
}

// Generate sends req as a single user message with the system prompt in
// the system field, and concatenates the text blocks of the reply.
func (c *Client) Generate(ctx context.Context, req generation.Request) (string, error) {
	maxTokens := int64(DefaultMaxTokens)
	if req.MaxOutputTokens > 0 {
		maxTokens = int64(req.MaxOutputTokens)
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(float64(req.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt())),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", mapError(err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	c.logger.DebugContext(ctx, "message finished", "stop_reason", resp.StopReason)
	return text.String(), nil
}

// mapError classifies an error returned by the Anthropic SDK.
func mapError(err error) *generation.ServiceError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return generation.NewServiceError(ProviderName, apiErr.StatusCode, err)
	}
	return generation.NewServiceError(ProviderName, 0, err)
}
