// Package openai adapts the OpenAI API to the generation.Client interface
// and provides Whisper transcription for video jobs.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"github.com/phrazzld/scry-notes/internal/generation"
)

const (
	// ProviderName labels errors raised by this adapter.
	ProviderName = "openai"

	// DefaultModel is used when no chat model is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultTranscriptionModel is used when no transcription model is configured.
	DefaultTranscriptionModel = string(openai.AudioModelWhisper1)
)

// Config holds the settings needed to reach the OpenAI API.
type Config struct {
	APIKey             string
	Model              string
	TranscriptionModel string
	BaseURL            string
	HTTPClient         *http.Client
}

// Client implements generation.Client with chat completions.
type Client struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

var _ generation.Client = (*Client)(nil)

func requestOptions(cfg Config) []option.RequestOption {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		// Retries are owned by the generation package.
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}
	return opts
}

// NewClient creates an OpenAI-backed generation client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		client: openai.NewClient(requestOptions(cfg)...),
		model:  cfg.Model,
		logger: logger.With("component", "openai_client", "model", cfg.Model),
	}, nil
}

// Generate sends req as a system message and a user message.
func (c *Client) Generate(ctx context.Context, req generation.Request) (string, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.Prompt()))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(float64(req.Temperature)),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", mapError(err)
	}
	if len(completion.Choices) == 0 {
		return "", &generation.ServiceError{
			Kind:     generation.KindUnknown,
			Provider: ProviderName,
			Err:      generation.ErrEmptyResponse,
		}
	}

	c.logger.DebugContext(ctx, "chat completion finished",
		"finish_reason", completion.Choices[0].FinishReason,
		"total_tokens", completion.Usage.TotalTokens)
	return completion.Choices[0].Message.Content, nil
}

// mapError classifies an error returned by the OpenAI SDK.
func mapError(err error) *generation.ServiceError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return generation.NewServiceError(ProviderName, apiErr.StatusCode, err)
	}
	return generation.NewServiceError(ProviderName, 0, err)
}
