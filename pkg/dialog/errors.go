package dialog

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("dialog: API key required")

	// ErrNoChoices is returned when the API responds without any completion.
	ErrNoChoices = errors.New("dialog: no choices returned")
)

// APIError represents an error response from a generation API.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Provider identifies which provider returned the error.
	Provider string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("dialog [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	return fmt.Errorf("dialog [%s]: %w", provider, err)
}
