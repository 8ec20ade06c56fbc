package service

import "errors"

// Sentinel errors returned by the session and proctoring services.
// Handlers match them with errors.Is.
var (
	// ErrNotFound covers missing, foreign and already finished sessions alike.
	ErrNotFound = errors.New("session not found")
	// ErrSessionNotActive is returned when proctoring targets a session that
	// is not ONGOING or not owned by the caller.
	ErrSessionNotActive = errors.New("session not active")
	// ErrDecodeFailure means the current frame could not be decoded.
	ErrDecodeFailure = errors.New("frame decode failure")
	// ErrPersistence wraps storage failures while recording state.
	ErrPersistence = errors.New("persistence failure")
)
