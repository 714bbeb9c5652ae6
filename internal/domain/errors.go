// Package domain provides the payload, execution, and error types shared
// across the pipeline.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a stage failure.
type ErrorKind string

const (
	// ErrInvalidInput indicates a required key was missing or malformed
	// in the stage's input payload.
	ErrInvalidInput ErrorKind = "invalid_input"

	// ErrInvocationFailure indicates the external model service call
	// failed or returned a non-success status.
	ErrInvocationFailure ErrorKind = "invocation_failure"

	// ErrParseFailure indicates the model response did not match the
	// stage's expected output schema.
	ErrParseFailure ErrorKind = "parse_failure"

	// ErrTimeout indicates the stage exceeded its wall-clock budget.
	ErrTimeout ErrorKind = "timeout"
)

// StageError is the error returned by a stage executor. It carries the
// stage name and failure kind for logging and tracing; the orchestrator
// discards both when recording the terminal error payload.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Cause error
}

func (e *StageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Cause)
	}
	return fmt.Sprintf("stage %s: %s", e.Stage, e.Kind)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the failure could succeed on a repeat
// attempt. Invalid input and parse failures are deterministic and are
// never retryable.
func (e *StageError) Retryable() bool {
	return e.Kind == ErrInvocationFailure || e.Kind == ErrTimeout
}

// NewStageError creates a stage error of the given kind.
func NewStageError(stage string, kind ErrorKind, cause error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Cause: cause}
}

// ErrorKindOf extracts the kind from err, or "" if err is not a
// stage error.
func ErrorKindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
