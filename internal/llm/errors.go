package llm

import (
	"errors"
	"net/http"

	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned by calls made without a configured key.
var ErrMissingAPIKey = errors.New("gemini api key is not configured")

// StatusOverloaded is the upstream status for a transient capacity error.
const StatusOverloaded = http.StatusServiceUnavailable

func apiError(err error) (genai.APIError, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return *apiErrPtr, true
	}
	return genai.APIError{}, false
}

// StatusCode returns the upstream HTTP status carried by err, or 0 when the
// error did not come from an upstream response.
func StatusCode(err error) int {
	if apiErr, ok := apiError(err); ok {
		return apiErr.Code
	}
	return 0
}

// Message returns the upstream error message, falling back to err.Error().
func Message(err error) string {
	if apiErr, ok := apiError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsOverloaded reports whether the upstream signalled overload.
func IsOverloaded(err error) bool {
	return StatusCode(err) == StatusOverloaded
}

// IsRateLimited reports whether the upstream rejected the call for rate.
func IsRateLimited(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}
