package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phrazzld/scry-notes/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(context.Background(), Config{
		APIKey:  "test-key",
		Model:   "gemini-test",
		BaseURL: server.URL,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{}, nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}

func TestGenerateSendsRequestAndReturnsText(t *testing.T) {
	t.Parallel()

	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-test:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"## Notes"}]},"finishReason":"STOP"}]}`)
	})

	text, err := client.Generate(context.Background(), generation.Request{
		SystemPrompt: "be brief",
		UserPrompt:   "Summarize:",
		Content:      "the source",
		Temperature:  0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, "## Notes", text)

	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), "be brief")
	assert.Contains(t, string(encoded), "Summarize:\\n\\nthe source")
}

func TestGenerateClassifiesAPIErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   string
		want   generation.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, generation.KindRateLimit},
		{"bad key", http.StatusForbidden, `{"error":{"code":403,"message":"denied","status":"PERMISSION_DENIED"}}`, generation.KindAuth},
		{"bad request", http.StatusBadRequest, `{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`, generation.KindBadRequest},
		{"overloaded", http.StatusServiceUnavailable, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`, generation.KindNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.Generate(context.Background(), generation.Request{UserPrompt: "hi"})
			var svcErr *generation.ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Equal(t, tt.want, svcErr.Kind)
			assert.Equal(t, ProviderName, svcErr.Provider)
		})
	}
}

func TestGenerateReportsBlockedPrompt(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	})

	_, err := client.Generate(context.Background(), generation.Request{UserPrompt: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrContentBlocked))
	assert.False(t, generation.IsRetryable(err))
}
