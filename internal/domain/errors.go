package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrJobNotFound is returned when a job cannot be found in the database
	ErrJobNotFound = errors.New("job not found")

	// ErrAccountNotFound is returned when an account cannot be resolved
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountExists is returned when creating an account whose email is taken
	ErrAccountExists = errors.New("account already exists")

	// ErrJobNotReady is returned when issues are requested before the job finished
	ErrJobNotReady = errors.New("result is not Finished")

	// ErrRateLimited is returned when admission is denied
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when a bearer token does not match any account
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrInvalidMessage is returned when a queue message cannot be parsed
	ErrInvalidMessage = errors.New("invalid queue message")
)

// ValidationError reports a malformed submission; the job is never created
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// RateLimitError carries the violated window and when to retry
type RateLimitError struct {
	Window     string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for window %s, retry after %s", e.Window, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// ProcessingError wraps analyzer or internal faults raised while consuming a job.
// It is captured into Job.Error and never returned to API callers.
type ProcessingError struct {
	JobID string
	Err   error
}

func (e *ProcessingError) Error() string {
	return e.Err.Error()
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewProcessingError creates a new processing error
func NewProcessingError(jobID string, err error) error {
	return &ProcessingError{JobID: jobID, Err: err}
}
