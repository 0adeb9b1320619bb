package generation

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// CallLimiter bounds the number of generation calls in flight across all
// jobs handled by a process, and optionally their rate. A nil *CallLimiter
// imposes no limit.
type CallLimiter struct {
	sem      *semaphore.Weighted
	rate     *rate.Limiter
	inFlight atomic.Int64
}

// NewCallLimiter allows at most maxInFlight concurrent calls. A positive
// requestsPerSecond additionally spaces call starts with a token bucket.
func NewCallLimiter(maxInFlight int, requestsPerSecond float64) *CallLimiter {
	if maxInFlight < 1 {
		maxInFlight = 1
	}
	l := &CallLimiter{sem: semaphore.NewWeighted(int64(maxInFlight))}
	if requestsPerSecond > 0 {
		burst := max(1, int(requestsPerSecond))
		l.rate = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return l
}

// Acquire blocks until a call slot is free. The returned release must be
// called exactly once when the call completes.
func (l *CallLimiter) Acquire(ctx context.Context) (func(), error) {
	if l == nil {
		return func() {}, nil
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if l.rate != nil {
		if err := l.rate.Wait(ctx); err != nil {
			l.sem.Release(1)
			return nil, err
		}
	}
	l.inFlight.Add(1)

	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			l.inFlight.Add(-1)
			l.sem.Release(1)
		}
	}, nil
}

// InFlight reports the number of calls currently holding a slot.
func (l *CallLimiter) InFlight() int {
	if l == nil {
		return 0
	}
	return int(l.inFlight.Load())
}
