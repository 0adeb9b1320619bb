package service

import "errors"

// Sentinel errors returned by JobService. Callers check them with
// errors.Is; the API layer maps each to a status code.
var (
	// ErrNotOwned indicates the job belongs to a different user. The API
	// reports it as not found so job IDs cannot be probed.
	ErrNotOwned = errors.New("job is owned by another user")

	// ErrNotCancellable indicates the job has already left the queue.
	ErrNotCancellable = errors.New("only queued jobs can be cancelled")

	// ErrNotRetryable indicates the job is not failed or has no retries left.
	ErrNotRetryable = errors.New("job cannot be retried")
)
