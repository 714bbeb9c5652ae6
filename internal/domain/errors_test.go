package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestStageError_Error(t *testing.T) {
	err := NewStageError("VisualAnalysis", ErrInvalidInput, fmt.Errorf("missing required key %q", "image_data"))

	want := `stage VisualAnalysis: invalid_input: missing required key "image_data"`
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestStageError_Unwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStageError("ActivityPattern", ErrInvocationFailure, cause)

	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
}

func TestStageError_Retryable(t *testing.T) {
	tests := []struct {
		kind ErrorKind
		want bool
	}{
		{ErrInvalidInput, false},
		{ErrParseFailure, false},
		{ErrInvocationFailure, true},
		{ErrTimeout, true},
	}

	for _, tt := range tests {
		err := NewStageError("s", tt.kind, nil)
		if got := err.Retryable(); got != tt.want {
			t.Errorf("Retryable() for %s = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestErrorKindOf(t *testing.T) {
	stageErr := NewStageError("s", ErrTimeout, errors.New("deadline"))
	wrapped := fmt.Errorf("run failed: %w", stageErr)

	if got := ErrorKindOf(wrapped); got != ErrTimeout {
		t.Errorf("ErrorKindOf(wrapped) = %q, want %q", got, ErrTimeout)
	}
	if got := ErrorKindOf(errors.New("plain")); got != "" {
		t.Errorf("ErrorKindOf(plain) = %q, want empty", got)
	}
}

func TestErrorRecord_Fixed(t *testing.T) {
	data, err := json.Marshal(ErrorRecord())
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	want := `{"error":"Workflow execution failed"}`
	if string(data) != want {
		t.Errorf("ErrorRecord() = %s, want %s", data, want)
	}
}
