package shared

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is the type of request context keys set by the API.
type ContextKey string

// Context keys for request-scoped values.
const (
	// UserIDContextKey holds the authenticated user's uuid.UUID.
	UserIDContextKey ContextKey = "userID"

	// TierContextKey holds the authenticated user's domain.SubscriptionTier.
	TierContextKey ContextKey = "tier"

	// TraceIDKey holds the request's trace ID.
	TraceIDKey ContextKey = "traceID"
)

// TraceIDHeader carries the trace ID on responses.
const TraceIDHeader = "X-Trace-ID"

// SetTraceID adds a new trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// GetTraceID retrieves the trace ID from the context.
// If no trace ID exists, it returns an empty string.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}
