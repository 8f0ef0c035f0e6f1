package errors

import (
	"errors"
	"fmt"
)

// Registry/transport errors.
var (
	ErrAPIRequest  = errors.New("registry request failed")
	ErrAPIResponse = errors.New("unexpected registry response")
)

// Domain errors.
var (
	ErrNotFound      = errors.New("entry not found")
	ErrAlreadyShared = errors.New("file is already shared with this recipient")
	ErrNotShared     = errors.New("no share record exists for this recipient")
)

// ValidationError is a precondition failure on a mutation. It is raised
// before any authoritative write, so no state change has happened and
// retrying without changing the request cannot succeed.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Validation builds a ValidationError for the given operation.
func Validation(op, format string, args ...any) error {
	return &ValidationError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err (or any error in its chain) is a
// ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransientError wraps an error that is likely temporary and safe to retry.
// Authoritative writes that fail with a TransientError have their optimistic
// local update reverted; background reconciliation passes log it and wait
// for the next trigger.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(err error) error {
	if err == nil {
		return nil
	}

	return &TransientError{Err: err}
}

// IsTransient reports whether err (or any error in its chain) is a
// TransientError, meaning the caller may retry after a backoff.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
