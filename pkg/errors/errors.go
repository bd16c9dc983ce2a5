// Package errors provides the error helpers used throughout packsync. Errors
// are wrapped with short context strings as they propagate up the stack, so
// that the final message reads like a trace of what was being attempted,
// e.g. "fetch index: open: 404 Not Found".
package errors

import (
	goErrors "errors"
	"fmt"
)

// New returns an error with the given message.
func New(msg string) error {
	return goErrors.New(msg)
}

// Errorf formats an error message.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Is is a passthrough to the standard library so that callers only need to
// import this package.
func Is(err, target error) bool {
	return goErrors.Is(err, target)
}

// As is a passthrough to the standard library.
func As(err error, target interface{}) bool {
	return goErrors.As(err, target)
}

type withContext struct {
	context string
	err     error
}

// WithContext annotates `err` with a description of what was happening when
// it occurred. A nil error stays nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return withContext{context: context, err: err}
}

func (err withContext) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.err)
}

func (err withContext) Unwrap() error {
	return err.err
}

// FriendlyMessage passes through the friendly message of the wrapped error so
// that context added after a FriendlyError was created doesn't hide it.
func (err withContext) FriendlyMessage() string {
	if friendly, ok := err.err.(Friendly); ok {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}

// RootCause strips all context from `err` and returns the original error.
func RootCause(err error) error {
	for {
		ctxErr, ok := err.(withContext)
		if !ok {
			return err
		}
		err = ctxErr.err
	}
}

// Friendly is implemented by errors that have a message meant to be read by
// users rather than developers.
type Friendly interface {
	FriendlyMessage() string
}

// FriendlyError is an error whose message is shown to users as-is.
type FriendlyError struct {
	msg string
}

// NewFriendlyError creates a FriendlyError from a format string.
func NewFriendlyError(template string, args ...interface{}) error {
	return FriendlyError{fmt.Sprintf(template, args...)}
}

func (err FriendlyError) Error() string {
	return err.msg
}

// FriendlyMessage implements the Friendly interface.
func (err FriendlyError) FriendlyMessage() string {
	return err.msg
}

// GetFriendlyMessage returns the friendly message for `err` if one is
// available.
func GetFriendlyMessage(err error) (string, bool) {
	if friendly, ok := err.(Friendly); ok {
		if _, isCtx := err.(withContext); isCtx {
			if _, ok := RootCause(err).(Friendly); !ok {
				return "", false
			}
		}
		return friendly.FriendlyMessage(), true
	}
	return "", false
}
