package session

import (
	"context"
	"errors"
)

// Error taxonomy from spec §7. These sentinels name the error classes; of
// them only ErrNilProvider is returned by code in this package, and the turn
// pipeline passes vendor errors through as returned rather than wrapping
// them in these values.
var (
	// ErrEmptySTT marks a transcript that came back empty — not a failure,
	// just "no speech detected"; the turn aborts silently.
	ErrEmptySTT = errors.New("transcription returned empty text")

	// ErrUpstreamTransient marks a retryable vendor failure (5xx, socket
	// reset). STT gets one silent retry; LLM/TTS surface immediately.
	ErrUpstreamTransient = errors.New("upstream transient failure")

	// ErrUpstreamPermanent marks a non-retryable vendor failure (4xx).
	ErrUpstreamPermanent = errors.New("upstream permanent failure")

	// ErrTransport marks a broken client connection or write timeout.
	ErrTransport = errors.New("transport failure")

	// ErrCancellation marks expected cancellation (barge-in, timeout) —
	// not surfaced to the client as an error.
	ErrCancellation = errors.New("operation cancelled")

	// ErrInternalInvariant marks a programmer bug; the session is closed
	// with a generic error.
	ErrInternalInvariant = errors.New("internal invariant violated")

	// ErrNilProvider guards constructors against a missing adapter.
	ErrNilProvider = errors.New("required provider is nil")
)

// IsCancellation reports whether err represents expected cancellation
// (including context.Canceled, which subtasks see directly from ctx.Err()).
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrCancellation) || errors.Is(err, context.Canceled)
}
