package domain

import "time"

// Status is the lifecycle state of a pipeline execution.
type Status string

const (
	// StatusRunning indicates the execution has been admitted and is
	// progressing through stages.
	StatusRunning Status = "running"

	// StatusSucceeded indicates the final stage completed and the
	// execution's output holds its structured result.
	StatusSucceeded Status = "succeeded"

	// StatusFailed indicates a stage failed and the execution's output
	// holds the fixed error record.
	StatusFailed Status = "failed"
)

// Terminal reports whether no further transition can occur.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ExecutionRecord identifies one pipeline run. It is created when the
// trigger endpoint admits a request and mutated only by the orchestrator
// driving that run; callers hold the ID as a read reference.
type ExecutionRecord struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	CurrentStage string     `json:"current_stage,omitempty"`
	Output       Payload    `json:"output,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// workflowFailedMessage is the fixed terminal failure marker. It is
// byte-identical regardless of which stage failed or why; diagnostics go
// to the log channel, not the record.
const workflowFailedMessage = "Workflow execution failed"

// ErrorRecord returns the payload recorded on an execution when any
// stage fails.
func ErrorRecord() Payload {
	return Payload{"error": workflowFailedMessage}
}
