// Package apperr holds the sentinel errors shared across layers.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid input")

	// ErrNotHeld is returned when a holder heartbeats a lease it does not own.
	ErrNotHeld = errors.New("lease not held")
	// ErrLeaseLost is returned when another holder took over a lease before commit.
	ErrLeaseLost = errors.New("lease lost")
	// ErrSourceMissing is returned when the image vanished from the pool before it could be moved.
	ErrSourceMissing = errors.New("source image missing")
	// ErrSkipped is returned when an image has been excluded from labeling.
	ErrSkipped = errors.New("image skipped")
	// ErrLabeled is returned when an image already has an annotation.
	ErrLabeled = errors.New("image already labeled")
)

// Invalid wraps field-level validation errors so callers can match ErrInvalid
// and still reach the underlying details with errors.As.
func Invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalid, err)
}
