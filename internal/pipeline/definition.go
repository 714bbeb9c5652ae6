package pipeline

import (
	"fmt"

	"github.com/prodlens/prodlens/internal/stage"
)

// HandleError is the shared terminal catch target. Every stage catches
// into it, and it always records the fixed error payload no matter which
// stage failed or why.
const HandleError = "HandleError"

// StageDef describes one stage in the pipeline sequence.
type StageDef struct {
	Name     string
	Executor stage.Executor
	// Next is the stage entered on success. Empty marks the
	// success terminal.
	Next string
	// Catch is the stage entered on any failure. Must be HandleError.
	Catch string
}

// Definition is the ordered stage sequence. The first entry is the
// pipeline's entry stage.
type Definition struct {
	Stages []StageDef
}

// NewDefinition builds the standard three-stage analysis pipeline:
// VisualAnalysis → ActivityPattern → ProductivityAssessment, each
// catching into the shared error terminal.
func NewDefinition(visual, pattern, assessment stage.Executor) Definition {
	return Definition{Stages: []StageDef{
		{Name: stage.StageVisualAnalysis, Executor: visual, Next: stage.StageActivityPattern, Catch: HandleError},
		{Name: stage.StageActivityPattern, Executor: pattern, Next: stage.StageProductivityAssessment, Catch: HandleError},
		{Name: stage.StageProductivityAssessment, Executor: assessment, Next: "", Catch: HandleError},
	}}
}

// Validate checks the structural invariants: a non-empty acyclic
// sequence with one entry, every Next resolving to a defined stage, and
// a single shared catch target.
func (d Definition) Validate() error {
	if len(d.Stages) == 0 {
		return fmt.Errorf("pipeline has no stages")
	}

	byName := make(map[string]StageDef, len(d.Stages))
	for _, s := range d.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage with empty name")
		}
		if s.Name == HandleError {
			return fmt.Errorf("stage name %q is reserved", HandleError)
		}
		if s.Executor == nil {
			return fmt.Errorf("stage %s: no executor", s.Name)
		}
		if s.Catch != HandleError {
			return fmt.Errorf("stage %s: catch target must be %s, got %q", s.Name, HandleError, s.Catch)
		}
		if _, dup := byName[s.Name]; dup {
			return fmt.Errorf("duplicate stage %s", s.Name)
		}
		byName[s.Name] = s
	}

	// Walk the success chain from the entry; it must terminate without
	// revisiting a stage.
	seen := make(map[string]bool, len(d.Stages))
	name := d.Stages[0].Name
	for name != "" {
		if seen[name] {
			return fmt.Errorf("cycle through stage %s", name)
		}
		seen[name] = true
		s, ok := byName[name]
		if !ok {
			return fmt.Errorf("next target %q is not a defined stage", name)
		}
		name = s.Next
	}

	for _, s := range d.Stages {
		if !seen[s.Name] {
			return fmt.Errorf("stage %s is unreachable from the entry stage", s.Name)
		}
	}
	return nil
}

// stageByName returns the definition for name.
func (d Definition) stageByName(name string) (StageDef, bool) {
	for _, s := range d.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageDef{}, false
}

// Entry returns the pipeline's entry stage name.
func (d Definition) Entry() string {
	return d.Stages[0].Name
}
