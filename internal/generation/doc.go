// Package generation drives the external text-generation service for the
// content pipeline. It defines the Client boundary and the ServiceError
// taxonomy adapters report through, the shared limiter that bounds
// in-flight calls, and the components built on top of them: the chunk
// processor, the aggregator, and the quiz and summary generators.
//
// Adapters never retry. Retry, backoff and the per-call timeout belong to
// the components in this package so each can apply its own policy.
package generation
