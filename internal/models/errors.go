package models

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound means no record exists for the id (never created, or expired).
	ErrJobNotFound = errors.New("job not found")

	// ErrResultNotReady means the job exists but has not reached a terminal state.
	ErrResultNotReady = errors.New("result not ready")

	// ErrUnknownParser means the parser tag matches no registered strategy.
	ErrUnknownParser = errors.New("unknown parser")

	// ErrNotImplemented is raised by placeholder strategies before any dispatch.
	ErrNotImplemented = errors.New("not implemented")

	// ErrPollTimeout means a job did not reach a terminal state within the
	// polling budget.
	ErrPollTimeout = errors.New("timed out waiting for job to finish")
)

// ValidationError rejects bad input at the ingestion boundary. Its message
// is user-visible; no job record exists when one is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
