package txsched

import (
	"errors"
	"fmt"
)

// Request-level errors. They are detected before any job exists.
var (
	ErrMissingScheduleTime        = errors.New("scheduleAt is required")
	ErrScheduleInPast             = errors.New("schedule time must be in the future")
	ErrMissingIntervalOrFrequency = errors.New("both interval and frequency are required for recurring jobs")
	ErrUnsupportedIntervalUnit    = errors.New("invalid interval unit")
	ErrInvalidInterval            = errors.New("interval value must be a positive integer")
	ErrInvalidRequest             = errors.New("invalid request")
)

var (
	// ErrDuplicateJobID means the registry already holds a job with the same
	// identifier. Identifiers are random UUIDs, so this is an internal fault.
	ErrDuplicateJobID = errors.New("duplicate job id")

	// ErrDispatchFailure wraps every failure to deliver a payload to the queue.
	ErrDispatchFailure = errors.New("dispatch failed")

	ErrJobNotFound = errors.New("job not found")
)

// ValidationError reports a single malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// IsRequestError reports whether err was caused by the request itself rather
// than by the service.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrMissingScheduleTime) ||
		errors.Is(err, ErrScheduleInPast) ||
		errors.Is(err, ErrMissingIntervalOrFrequency) ||
		errors.Is(err, ErrUnsupportedIntervalUnit) ||
		errors.Is(err, ErrInvalidInterval)
}
