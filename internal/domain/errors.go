package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a caller contract violation or malformed rule text.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnresolvedLocation signals that no geocoder could resolve the user position.
	ErrUnresolvedLocation = errors.New("unresolved location")
	// ErrFeatureFetchFailed signals that the geo feature service exhausted its retries.
	ErrFeatureFetchFailed = errors.New("feature fetch failed")
	// ErrScheduleParseFailed signals an unparsable opening_hours value. Never fatal.
	ErrScheduleParseFailed = errors.New("schedule parse failed")
	// ErrAddressLookupDegraded signals that an estimated address could not be obtained. Never fatal.
	ErrAddressLookupDegraded = errors.New("address lookup degraded")
	// ErrPresetNotFound signals a missing search preset.
	ErrPresetNotFound = errors.New("preset not found")
	// ErrTimeout signals that the request deadline expired before the search completed.
	ErrTimeout = errors.New("search timed out")
	// ErrProviderUnavailable signals a transient upstream failure. Retryable.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

// ValidationError reports a malformed line of rule text.
type ValidationError struct {
	Line   int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: line %d: %s", ErrInvalidInput.Error(), e.Line, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError creates a ValidationError for a 1-based line number.
func NewValidationError(line int, reason string) error {
	return &ValidationError{Line: line, Reason: reason}
}

// Category is the user-presentable class of a failed search.
type Category string

const (
	CategoryInvalidInput       Category = "invalid_input"
	CategoryLocationNotFound   Category = "location_not_found"
	CategoryMapDataUnavailable Category = "map_data_unavailable"
	CategoryPresetNotFound     Category = "preset_not_found"
	CategoryTimeout            Category = "timeout"
	CategoryUnexpected         Category = "unexpected"
)

// CategoryOf maps an error to the category the presentation layer shows to users.
func CategoryOf(err error) Category {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.Is(err, ErrInvalidInput):
		return CategoryInvalidInput
	case errors.Is(err, ErrPresetNotFound):
		return CategoryPresetNotFound
	case errors.Is(err, ErrUnresolvedLocation):
		return CategoryLocationNotFound
	case errors.Is(err, ErrFeatureFetchFailed):
		return CategoryMapDataUnavailable
	default:
		return CategoryUnexpected
	}
}
