// internal/common/errs/errs.go
// Error taxonomy shared by the client core

package errs

import (
	"errors"
	"fmt"
)

// NetworkError indicates the backend was unreachable or answered non-2xx.
// Surfaced to the caller so the UI can show an explicit error state.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Network wraps err as a NetworkError for the given operation.
func Network(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// TransientError indicates an operation failed on the wire but its local
// optimistic effect proceeded anyway. Reported for telemetry, never fatal.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s (local state advanced): %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError for the given operation.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// NotFoundError indicates an operation referenced a match or message identity
// absent from local state. Always recovered locally.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NotFound builds a NotFoundError for the given kind and identity.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// ValidationError indicates malformed input rejected before any request was
// sent.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validation builds a ValidationError with the given reason.
func Validation(reason string) error {
	return &ValidationError{Reason: reason}
}

func IsNetwork(err error) bool {
	var e *NetworkError
	return errors.As(err, &e)
}

func IsTransient(err error) bool {
	var e *TransientError
	return errors.As(err, &e)
}

func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

func IsValidation(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}
