package events

import (
	"context"
	"log/slog"
	"sync"
)

// FanOut forwards each event to every registered publisher, for example
// the local broker plus a cross-process notifier.
type FanOut struct {
	publishers []Publisher
	mu         sync.RWMutex
	logger     *slog.Logger
}

var _ Publisher = (*FanOut)(nil)

// NewFanOut creates a FanOut over publishers.
func NewFanOut(logger *slog.Logger, publishers ...Publisher) *FanOut {
	return &FanOut{
		publishers: publishers,
		logger:     logger.With("component", "event_fanout"),
	}
}

// Register adds a publisher.
func (f *FanOut) Register(p Publisher) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishers = append(f.publishers, p)
}

// Publish sends event to all publishers. A failing publisher does not
// stop delivery to the others; the first error is returned.
func (f *FanOut) Publish(ctx context.Context, event JobEvent) error {
	f.mu.RLock()
	publishers := make([]Publisher, len(f.publishers))
	copy(publishers, f.publishers)
	f.mu.RUnlock()

	var firstErr error
	for i, p := range publishers {
		if err := p.Publish(ctx, event); err != nil {
			f.logger.Error("publisher failed to deliver event",
				"error", err,
				"publisher_index", i,
				"job_id", event.JobID,
				"event_type", event.Type)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
