package cleanup

import (
	"errors"
	"fmt"

	"github.com/raine/katazuke-proxy/internal/quota"
)

// ErrInvalidImage is returned when the request carries no usable image.
var ErrInvalidImage = errors.New("image data is required")

// QuotaError is returned when the daily limit of a capability is reached.
type QuotaError struct {
	Capability quota.Capability
	Usage      quota.Status
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("daily limit reached for %s", e.Capability)
}

// BackendError is a failed generation call. Overloaded is set when the
// backend stayed overloaded through retries and fallback.
type BackendError struct {
	Status     int
	Message    string
	Overloaded bool
	Model      string
	// Calls is the number of backend calls made before giving up.
	Calls int
	Err   error
}

func (e *BackendError) Error() string {
	if e.Overloaded {
		return fmt.Sprintf("model %s overloaded: %s", e.Model, e.Message)
	}
	return fmt.Sprintf("model %s rejected request (status %d): %s", e.Model, e.Status, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NoImageError is returned when the backend answered without an image.
type NoImageError struct {
	// Text is whatever the backend said instead.
	Text string
}

func (e *NoImageError) Error() string {
	return "generation returned no image"
}
