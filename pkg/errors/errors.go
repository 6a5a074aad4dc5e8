// Package errors provides the error types used throughout gasgit.
//
// Errors are wrapped with context as they propagate up the stack so that the
// final message reads like a sentence describing what the process was doing
// when it failed. Errors that should be shown to users verbatim implement the
// FriendlyError interface.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error with the given message.
func New(msg string) error {
	return errors.New(msg)
}

// ContextError annotates an error with what the caller was doing when the
// error occurred.
type ContextError struct {
	Context string
	Err     error
}

func (err ContextError) Error() string {
	return fmt.Sprintf("%s: %s", err.Context, err.Err)
}

// Unwrap returns the wrapped error so that errors.Is and errors.As see
// through the context annotation.
func (err ContextError) Unwrap() error {
	return err.Err
}

// WithContext wraps err with a short description of the operation that
// failed. If err is nil, WithContext returns nil so callers can wrap
// unconditionally.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return ContextError{Context: context, Err: err}
}

// RootCause returns the innermost error in the chain. It's used to branch on
// the original failure without the context annotations getting in the way.
func RootCause(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
