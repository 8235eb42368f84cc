package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEvent indicates an event that cannot take part in reconciliation.
	ErrMalformedEvent = errors.New("malformed event")

	// ErrWriteConflict indicates the persistence layer rejected a write because
	// the stored record no longer matches what the operation expected.
	ErrWriteConflict = errors.New("persistence write conflict")
)

// MalformedEventError describes why an event was rejected.
type MalformedEventError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event: %s %s", e.Field, e.Reason)
}

// Is implements errors.Is support
func (e *MalformedEventError) Is(target error) bool {
	return target == ErrMalformedEvent
}
