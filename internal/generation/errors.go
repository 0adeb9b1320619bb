package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Common errors returned by the generation package
var (
	// ErrNilClient is returned when a component is built without a Client.
	ErrNilClient = errors.New("generation client cannot be nil")

	// ErrInvalidConfig is returned when a component configuration is invalid.
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrChunkTooLarge is returned without calling the service when a
	// chunk's estimated token count exceeds MaxChunkTokens.
	ErrChunkTooLarge = errors.New("chunk exceeds token limit")

	// ErrEmptyResponse is returned when the service answers with no text
	// where text is required.
	ErrEmptyResponse = errors.New("empty response from language model")

	// ErrAllChunksFailed is returned by the aggregator when no chunk
	// produced usable content.
	ErrAllChunksFailed = errors.New("all chunks failed")

	// ErrQuizUnavailable is returned alongside an empty quiz when every
	// attempt failed.
	ErrQuizUnavailable = errors.New("quiz generation failed")

	// ErrSummaryUnavailable is returned alongside FallbackSummary when
	// every attempt failed.
	ErrSummaryUnavailable = errors.New("summary generation failed")
)

// Kind classifies a service failure.
type Kind string

// Service error kinds.
const (
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindRateLimit  Kind = "rateLimit"
	KindBadRequest Kind = "badRequest"
	KindTimeout    Kind = "timeout"
	KindUnknown    Kind = "unknown"
)

// Retryable reports whether another attempt could succeed. Auth and bad
// request failures are terminal.
func (k Kind) Retryable() bool {
	switch k {
	case KindAuth, KindBadRequest:
		return false
	}
	return true
}

// ServiceError is a classified failure of the external generation service.
type ServiceError struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	if e.Provider != "" {
		b.WriteString(e.Provider)
		b.WriteByte(' ')
	}
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError classifies err, preferring the HTTP status code when the
// provider reported one and falling back to the error text.
func NewServiceError(provider string, statusCode int, err error) *ServiceError {
	kind := ClassifyStatus(statusCode)
	if kind == KindUnknown {
		kind = Classify(err)
	}
	return &ServiceError{Kind: kind, Provider: provider, StatusCode: statusCode, Err: err}
}

// ClassifyStatus maps an HTTP status code to a Kind. Codes without a more
// specific meaning map to KindUnknown.
func ClassifyStatus(code int) Kind {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusTooManyRequests:
		return KindRateLimit
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusBadGateway, code == http.StatusServiceUnavailable:
		return KindNetwork
	case code >= 400 && code < 500:
		return KindBadRequest
	}
	return KindUnknown
}

// Classify returns the Kind for any error: the kind of a wrapped
// ServiceError, timeout for deadline errors, network for transport errors,
// and otherwise whatever the error text suggests.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}

	return ClassifyMessage(err.Error())
}

var messageKinds = []struct {
	kind    Kind
	needles []string
}{
	{KindTimeout, []string{"deadline exceeded", "timed out", "timeout"}},
	{KindRateLimit, []string{"rate limit", "rate_limit", "too many requests", "resource_exhausted", "resource exhausted", "quota"}},
	{KindAuth, []string{"unauthorized", "unauthenticated", "permission denied", "permission_denied", "forbidden", "api key", "api_key"}},
	{KindBadRequest, []string{"invalid argument", "invalid_argument", "bad request", "invalid_request", "failed_precondition"}},
	{KindNetwork, []string{"connection refused", "connection reset", "no such host", "broken pipe", "network", "unavailable", "eof"}},
}

// ClassifyMessage inspects error text reported by a service.
func ClassifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	for _, mk := range messageKinds {
		for _, needle := range mk.needles {
			if strings.Contains(lower, needle) {
				return mk.kind
			}
		}
	}
	return KindUnknown
}

// IsRetryable reports whether a failed attempt should be retried.
// ServiceErrors follow their Kind; cancellation of the caller's context is
// final; any other failure, such as malformed output, is retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Kind.Retryable()
	}
	return !errors.Is(err, context.Canceled)
}
