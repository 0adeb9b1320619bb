package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/scry-notes/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(userID uuid.UUID, t EventType) JobEvent {
	return JobEvent{Type: t, JobID: uuid.New(), UserID: userID, Status: domain.JobStatusQueued}
}

func TestNewJobEvent(t *testing.T) {
	t.Parallel()

	job, err := domain.NewJob(uuid.New(), domain.TextInput{Text: "text"}, domain.PriorityHigh, 3)
	require.NoError(t, err)
	job.Progress = 40

	ev := NewJobEvent(JobProgress, job)
	assert.Equal(t, JobProgress, ev.Type)
	assert.Equal(t, job.ID, ev.JobID)
	assert.Equal(t, job.UserID, ev.UserID)
	assert.Equal(t, domain.JobStatusQueued, ev.Status)
	assert.Equal(t, 40, ev.Progress)
	assert.WithinDuration(t, time.Now(), ev.Timestamp, time.Minute)
}

func TestBroker_RoutesByUser(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	alice, bob := uuid.New(), uuid.New()

	subA := b.Subscribe(alice, 4)
	defer subA.Close()
	subB := b.Subscribe(bob, 4)
	defer subB.Close()

	ev := event(alice, JobQueued)
	require.NoError(t, b.Publish(context.Background(), ev))

	select {
	case got := <-subA.C:
		assert.Equal(t, ev.JobID, got.JobID)
	case <-time.After(time.Second):
		t.Fatal("alice did not receive her event")
	}

	select {
	case got := <-subB.C:
		t.Fatalf("bob received alice's event %v", got)
	default:
	}
}

func TestBroker_MultipleSubscribersSameUser(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	user := uuid.New()

	s1 := b.Subscribe(user, 1)
	s2 := b.Subscribe(user, 1)
	assert.Equal(t, 2, b.Subscribers(user))

	require.NoError(t, b.Publish(context.Background(), event(user, JobStarted)))
	assert.Len(t, s1.C, 1)
	assert.Len(t, s2.C, 1)

	s1.Close()
	s2.Close()
	assert.Zero(t, b.Subscribers(user))
}

func TestBroker_PublishDoesNotBlockOnFullSubscriber(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	user := uuid.New()
	sub := b.Subscribe(user, 1)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = b.Publish(context.Background(), event(user, JobProgress))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, sub.C, 1)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	user := uuid.New()
	sub := b.Subscribe(user, 0)

	sub.Close()
	sub.Close()

	_, open := <-sub.C
	assert.False(t, open)
	assert.NoError(t, b.Publish(context.Background(), event(user, JobQueued)))
}

func TestBroker_ConcurrentSubscribeAndPublish(t *testing.T) {
	t.Parallel()
	b := NewBroker(testLogger())
	user := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := b.Subscribe(user, 2)
			sub.Close()
		}()
		go func() {
			defer wg.Done()
			_ = b.Publish(context.Background(), event(user, JobProgress))
		}()
	}
	wg.Wait()
	assert.Zero(t, b.Subscribers(user))
}

func TestFanOut(t *testing.T) {
	t.Parallel()

	t.Run("delivers to every publisher", func(t *testing.T) {
		var mu sync.Mutex
		var got []int
		record := func(n int) Publisher {
			return PublisherFunc(func(context.Context, JobEvent) error {
				mu.Lock()
				defer mu.Unlock()
				got = append(got, n)
				return nil
			})
		}

		f := NewFanOut(testLogger(), record(1))
		f.Register(record(2))
		require.NoError(t, f.Publish(context.Background(), event(uuid.New(), JobQueued)))
		assert.Equal(t, []int{1, 2}, got)
	})

	t.Run("returns first error and keeps delivering", func(t *testing.T) {
		first := errors.New("first")
		calls := 0
		failing := func(err error) Publisher {
			return PublisherFunc(func(context.Context, JobEvent) error {
				calls++
				return err
			})
		}

		f := NewFanOut(testLogger(), failing(first), failing(errors.New("second")), failing(nil))
		err := f.Publish(context.Background(), event(uuid.New(), JobFailed))
		assert.ErrorIs(t, err, first)
		assert.Equal(t, 3, calls)
	})

	t.Run("no publishers", func(t *testing.T) {
		f := NewFanOut(testLogger())
		assert.NoError(t, f.Publish(context.Background(), event(uuid.New(), JobQueued)))
	})
}
