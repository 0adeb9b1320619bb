package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultBuffer is the per-subscription channel capacity used when a
// caller asks for zero.
const DefaultBuffer = 16

// Broker routes job events to in-process subscribers keyed by user ID.
type Broker struct {
	mu     sync.RWMutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	logger *slog.Logger
}

var _ Publisher = (*Broker)(nil)

// NewBroker creates an empty broker.
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		logger: logger.With("component", "event_broker"),
	}
}

// Subscription receives the events of one user until closed.
type Subscription struct {
	// C delivers events. It is closed by Close.
	C <-chan JobEvent

	ch     chan JobEvent
	userID uuid.UUID
	broker *Broker
	once   sync.Once
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		defer b.mu.Unlock()

		if set, ok := b.subs[s.userID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(b.subs, s.userID)
			}
		}
		close(s.ch)
	})
}

// Subscribe registers a subscription for userID's events.
func (b *Broker) Subscribe(userID uuid.UUID, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan JobEvent, buffer)
	sub := &Subscription{C: ch, ch: ch, userID: userID, broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[userID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Publish delivers event to the user's subscribers. A subscriber whose
// buffer is full misses the event; Publish never blocks.
func (b *Broker) Publish(_ context.Context, event JobEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[event.UserID] {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber",
				"job_id", event.JobID,
				"user_id", event.UserID,
				"event_type", event.Type)
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions for userID.
func (b *Broker) Subscribers(userID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}
