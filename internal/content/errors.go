package content

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicatePath = errors.New("path already exists")
	ErrValidation    = errors.New("invalid input")
	ErrTransport     = errors.New("transport error")
)

// ValidationError reports a rejected input value. It matches ErrValidation.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransportError wraps a backend failure that is not a uniqueness or
// existence violation (unreachable store, rejected call, cancelled context).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ReloadError reports a write that reached the backend but whose follow-up
// listing failed. The local record set is stale until the next reload.
type ReloadError struct {
	Op  string
	Err error
}

func (e *ReloadError) Error() string { return e.Op + " written, refresh failed: " + e.Err.Error() }

func (e *ReloadError) Unwrap() error { return e.Err }

// classify keeps the taxonomy errors as they are and turns everything else
// into a TransportError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrDuplicatePath) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrTransport) {
		return fmt.Errorf("%s: %w", op, err)
	}
	// context cancellation lands here too
	return &TransportError{Op: op, Err: err}
}
