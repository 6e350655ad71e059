package stt

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrNoAPIKey is returned when the API key is missing.
	ErrNoAPIKey = errors.New("stt: API key required")

	// ErrEmptyAudio is returned when the audio payload has no samples.
	ErrEmptyAudio = errors.New("stt: empty audio payload")

	// ErrProviderUnavailable is returned when no providers are available.
	ErrProviderUnavailable = errors.New("stt: no providers available")
)

// APIError represents an error response from an STT API.
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
	return fmt.Sprintf("stt [%s]: API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == 429
}

// IsUnauthorized returns true if this is an authentication error (HTTP 401).
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == 401
}

// WrapError wraps an error with provider context.
func WrapError(provider string, err error) error {
	return fmt.Errorf("stt [%s]: %w", provider, err)
}
