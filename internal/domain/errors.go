// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Every error produced by a pipeline stage wraps one
// of these so callers can classify it with errors.Is.
var (
	// ErrValidation is returned when a request, URL or path is rejected
	// before any side effect takes place.
	ErrValidation = errors.New("validation failed")

	// ErrFetch is returned when the source endpoint cannot be read.
	ErrFetch = errors.New("fetch failed")

	// ErrEmptyResult is returned when a source yields zero records.
	ErrEmptyResult = errors.New("no records returned by source")

	// ErrQuotaExceeded is returned when the daily artifact budget is spent.
	ErrQuotaExceeded = errors.New("daily artifact quota exceeded")

	// ErrArtifactTooLarge is returned when a rendered artifact is over the byte cap.
	ErrArtifactTooLarge = errors.New("artifact exceeds size limit")

	// ErrPersistence is returned when an artifact or counter cannot be written.
	ErrPersistence = errors.New("persistence failed")

	// ErrTaskNotFound is returned when a task ID is unknown to the registry.
	ErrTaskNotFound = errors.New("task not found")
)

// Invalidf builds an ErrValidation-wrapped error with a formatted reason.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// FetchError describes a failed page retrieval.
type FetchError struct {
	Page       int   // 1-based page index that failed
	StatusCode int   // HTTP status, zero when no response was received
	Err        error // underlying cause
}

// Error implements the error interface for FetchError.
func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch page %d: unexpected status %d: %v", e.Page, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch page %d: %v", e.Page, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports FetchError as an ErrFetch.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}
