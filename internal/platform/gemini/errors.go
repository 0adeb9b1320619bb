package gemini

import (
	"errors"
	"fmt"

	"github.com/phrazzld/scry-notes/internal/generation"
	"google.golang.org/genai"
)

// ProviderName labels errors raised by this adapter.
const ProviderName = "gemini"

// ErrContentBlocked is returned when Gemini refuses the prompt or stops
// generation for safety reasons.
var ErrContentBlocked = errors.New("content blocked by language model safety filters")

// mapError classifies an error returned by the genai SDK.
func mapError(err error) *generation.ServiceError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		svcErr := generation.NewServiceError(ProviderName, apiErr.Code, err)
		if svcErr.Kind == generation.KindUnknown && apiErr.Status != "" {
			svcErr.Kind = generation.ClassifyMessage(apiErr.Status)
		}
		return svcErr
	}
	return generation.NewServiceError(ProviderName, 0, err)
}

func blockedError(reason string) *generation.ServiceError {
	return &generation.ServiceError{
		Kind:     generation.KindBadRequest,
		Provider: ProviderName,
		Err:      fmt.Errorf("%w: %s", ErrContentBlocked, reason),
	}
}
