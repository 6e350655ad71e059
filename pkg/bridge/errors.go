package bridge

import "errors"

// Sentinel errors for common error conditions.
var (
	// ErrSessionClosed is returned when sending on a stopped session.
	ErrSessionClosed = errors.New("bridge: session closed")

	// ErrNoStream is returned when sending before the carrier has named
	// the stream.
	ErrNoStream = errors.New("bridge: stream not started")
)
