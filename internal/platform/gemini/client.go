package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-notes/internal/generation"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Config holds the settings needed to reach the Gemini API.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint. Empty uses the public endpoint.
	BaseURL string
	// HTTPClient overrides the transport. Nil uses the SDK default.
	HTTPClient *http.Client
}

// Client implements generation.Client using the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

var _ generation.Client = (*Client)(nil)

// NewClient creates a Gemini-backed generation client.
func NewClient(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Client{
		client: client,
		model:  cfg.Model,
		logger: logger.With("component", "gemini_client", "model", cfg.Model),
	}, nil
}

// Generate sends req as a single user turn with the system prompt as the
// system instruction.
func (c *Client) Generate(ctx context.Context, req generation.Request) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}

	contents := []*genai.Content{genai.NewContentFromText(req.Prompt(), genai.RoleUser)}

	c.logger.DebugContext(ctx, "calling Gemini", "prompt_length", len(req.Prompt()))
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", mapError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", blockedError(string(resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", blockedError(string(genai.FinishReasonSafety))
	}

	return resp.Text(), nil
}
