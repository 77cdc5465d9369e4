package model

import "errors"

// Failure taxonomy shared by both backend variants. Native runtime errors
// are wrapped with %w and surface verbatim underneath these.
var (
	// ErrNotLoaded is returned when a stream is requested before a model
	// has been loaded (or after a failed load left the runtime empty).
	ErrNotLoaded = errors.New("no model loaded")

	// ErrFileMissing is returned when a model source does not exist or is
	// too small to be a real model, which usually means a corrupt or
	// partial download.
	ErrFileMissing = errors.New("model source missing or incomplete")

	// ErrCancelled is returned when cooperative cancellation is observed
	// mid-stream. Callers treat it as a soft outcome: partial output up to
	// the cancellation point stays with the caller.
	ErrCancelled = errors.New("generation cancelled")

	// ErrStopStream is returned by a TokenCallback to request early,
	// successful termination of a stream. Backends stop consuming output
	// and return nil. It never escapes a Stream call.
	ErrStopStream = errors.New("stop consuming stream")
)
