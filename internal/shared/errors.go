package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates the input must change before a retry can succeed.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState occurs when an action violates a document's status workflow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict indicates a uniqueness or idempotency conflict.
	ErrConflict = errors.New("conflict")
)
