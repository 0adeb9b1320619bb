package openai

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/phrazzld/scry-notes/internal/generation"
)

// Transcriber turns audio or video files into text with the OpenAI
// transcription endpoint.
type Transcriber struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// NewTranscriber creates a Transcriber.
func NewTranscriber(cfg Config, logger *slog.Logger) (*Transcriber, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = DefaultTranscriptionModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcriber{
		client: openai.NewClient(requestOptions(cfg)...),
		model:  cfg.TranscriptionModel,
		logger: logger.With("component", "openai_transcriber"),
	}, nil
}

// Transcribe uploads media and returns its transcript. language is an
// optional ISO-639-1 hint.
func (t *Transcriber) Transcribe(ctx context.Context, media io.Reader, fileName, mimeType, language string) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(media, fileName, mimeType),
		Model: openai.AudioModel(t.model),
	}
	if language != "" {
		params.Language = openai.String(language)
	}

	t.logger.InfoContext(ctx, "transcribing media", "file_name", fileName, "model", t.model)
	resp, err := t.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", mapError(err)
	}
	return resp.Text, nil
}
