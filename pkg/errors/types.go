package errors

import (
	"fmt"
)

// ErrOptionsCancelled is returned when the user dismisses the optional
// component selection. The run is aborted without saving anything.
var ErrOptionsCancelled = New("optional component selection cancelled")

// MissingFieldError represents a missing required field.
type MissingFieldError struct {
	Field string
}

func (err MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", err.Field)
}

// FileNotFound represents when we were unable to access a file
// because the path didn't exist.
type FileNotFound struct {
	Path string
}

func (err FileNotFound) Error() string {
	return fmt.Sprintf("%q does not exist", err.Path)
}

// HashMismatchError is returned when downloaded content doesn't hash to the
// value declared by the pack.
type HashMismatchError struct {
	File     string
	Expected string
	Actual   string
}

func (err HashMismatchError) Error() string {
	return fmt.Sprintf("invalid hash for %s: expected %s, calculated %s",
		err.File, err.Expected, err.Actual)
}

// UnsupportedHashFormatError is returned for hash formats that packsync
// doesn't know how to compute.
type UnsupportedHashFormatError struct {
	Format string
}

func (err UnsupportedHashFormatError) Error() string {
	return fmt.Sprintf("unsupported hash format %q", err.Format)
}

// HTTPStatusError is returned when a remote server responds with a non-2xx
// status.
type HTTPStatusError struct {
	URL    string
	Status string
	Code   int
}

func (err HTTPStatusError) Error() string {
	return fmt.Sprintf("%s responded with %s", err.URL, err.Status)
}
