package core

import "github.com/pkg/errors"

// Error taxonomy of the coordination layer. None of these is fatal to a
// connection or a room; callers log and drop.
var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyBound      = errors.New("connection already bound to another user")
	ErrMalformedEnvelope = errors.New("malformed signaling envelope")

	// ErrClosed is returned by a SignalConnection whose transport is gone
	// but whose registry entry has not been reconciled yet.
	ErrClosed = errors.New("connection closed")
)
