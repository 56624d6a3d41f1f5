package models

import (
	"errors"
	"fmt"
)

// ConfigError marks a fatal pre-run configuration problem: an invalid
// pattern, an unknown profile, a nonsensical parallelism. It aborts the
// run before any file is touched.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the wrapped error.
func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, message string, err error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Err: err}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// Common pipeline errors.
var (
	// ErrProfileNotFound indicates the requested profile name is unknown.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrDuplicateIdentifier indicates two files resolved to the same
	// identifier after renaming.
	ErrDuplicateIdentifier = errors.New("duplicate identifier after rename")

	// ErrDestinationExists indicates an organization move would collide
	// with an existing folder.
	ErrDestinationExists = errors.New("destination folder already exists")

	// ErrSchedulerClosed indicates a submit after the scheduler stopped
	// accepting jobs.
	ErrSchedulerClosed = errors.New("scheduler closed")
)
