package generation

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions() Options {
	return Options{
		Timeout: time.Second,
		Retry:   RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond},
	}
}

// recordingClient returns scripted responses and records every request.
type recordingClient struct {
	mu       sync.Mutex
	requests []Request
	respond  func(call int, req Request) (string, error)
}

func (c *recordingClient) Generate(_ context.Context, req Request) (string, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	n := len(c.requests)
	c.mu.Unlock()
	return c.respond(n, req)
}

func (c *recordingClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func (c *recordingClient) Requests() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.requests...)
}
