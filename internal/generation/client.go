package generation

import (
	"context"
	"strings"
)

// Request is a single generation call.
type Request struct {
	// SystemPrompt sets the model's role and output rules.
	SystemPrompt string
	// UserPrompt is the instruction for this call.
	UserPrompt string
	// Content is the material the instruction applies to. It may be empty.
	Content string
	// Temperature controls sampling randomness.
	Temperature float32
	// MaxOutputTokens bounds the response length. Zero leaves it to the
	// provider.
	MaxOutputTokens int
}

// Prompt returns the user turn sent to the provider: the instruction
// followed by the content.
func (r Request) Prompt() string {
	if strings.TrimSpace(r.Content) == "" {
		return r.UserPrompt
	}
	return r.UserPrompt + "\n\n" + r.Content
}

// Client is the boundary to an external text-generation service. Errors
// should be *ServiceError values so callers can decide whether to retry.
// Implementations must not retry on their own.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f ClientFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
