package filecat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a file id is unknown or soft-deleted.
	ErrNotFound = errors.New("not found")

	// ErrModelNotTrained is returned by Classify before any model was trained or loaded.
	ErrModelNotTrained = errors.New("model not trained")

	// ErrLowConfidence is returned by Classify when the best prediction is below
	// the configured minimum confidence.
	ErrLowConfidence = errors.New("prediction below minimum confidence")

	// ErrValidation is the umbrella error for rejected requests. Use errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrCancelled marks a job stopped by the user.
	ErrCancelled = errors.New("cancelled by user")

	// ErrJobNotFound is returned for unknown or evicted job ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrAborted wraps the item error that stopped a batch with ContinueOnError off.
	ErrAborted = errors.New("batch aborted")

	// ErrShuttingDown is returned when submitting to a coordinator that is stopping.
	ErrShuttingDown = errors.New("coordinator shutting down")
)

// ValidationError describes a malformed request. It is rejected before any job
// is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError is a shorthand for &ValidationError{...}.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
