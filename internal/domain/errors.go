package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a keyed lookup misses.
var ErrNotFound = errors.New("not found")

// ValidationError is a caller mistake detected before any store mutation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError names the missing entity. It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string { return e.Resource + " " + e.ID + " not found" }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// StoreError wraps a failed or timed-out Event Store call on the primary path.
// The operation is considered not applied.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return "store: " + e.Op + ": " + e.Err.Error() }

func (e *StoreError) Unwrap() error { return e.Err }

// NotificationError reports a failed post-commit side effect. It is only ever
// logged; it never reaches the caller of the primary operation.
type NotificationError struct {
	Task string
	Err  error
}

func (e *NotificationError) Error() string { return "notify " + e.Task + ": " + e.Err.Error() }

func (e *NotificationError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
