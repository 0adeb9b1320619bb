package generation

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Options are the call settings shared by every component in this package.
type Options struct {
	// Limiter bounds in-flight calls. Nil means unbounded.
	Limiter *CallLimiter
	// Timeout is the wall-clock limit for a single call.
	Timeout time.Duration
	// Retry is the policy applied around each call.
	Retry RetryPolicy
}

// DefaultCallTimeout is the per-call wall-clock limit.
const DefaultCallTimeout = 60 * time.Second

// DefaultOptions returns a 60s timeout, the default retry policy and no
// limiter.
func DefaultOptions() Options {
	return Options{Timeout: DefaultCallTimeout, Retry: DefaultRetryPolicy()}
}

func (o Options) validate() error {
	if o.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if o.Retry.MaxRetries < 0 || o.Retry.BaseDelay < 0 {
		return fmt.Errorf("%w: retry policy cannot be negative", ErrInvalidConfig)
	}
	if o.Retry.Jitter < 0 || o.Retry.Jitter > 1 {
		return fmt.Errorf("%w: jitter must be within [0, 1]", ErrInvalidConfig)
	}
	return nil
}

type callResult struct {
	text string
	err  error
}

// call makes one limited, time-bounded request. The slot is acquired
// before the timeout starts. A call still running when the timeout fires is
// abandoned and reported as KindTimeout.
func call(ctx context.Context, client Client, opts Options, req Request) (string, error) {
	release, err := opts.Limiter.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	callCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		text, err := client.Generate(callCtx, req)
		done <- callResult{text: text, err: err}
	}()

	select {
	case res := <-done:
		if res.err == nil {
			return res.text, nil
		}
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", &ServiceError{Kind: KindTimeout, Err: res.err}
		}
		var svcErr *ServiceError
		if errors.As(res.err, &svcErr) || ctx.Err() != nil {
			return "", res.err
		}
		return "", &ServiceError{Kind: Classify(res.err), Err: res.err}
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &ServiceError{
			Kind: KindTimeout,
			Err:  fmt.Errorf("no response within %s: %w", opts.Timeout, context.DeadlineExceeded),
		}
	}
}
