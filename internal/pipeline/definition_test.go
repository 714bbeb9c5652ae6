package pipeline

import (
	"testing"

	"github.com/prodlens/prodlens/internal/stage"
)

func validStages() []StageDef {
	v := &fakeExecutor{name: "v"}
	p := &fakeExecutor{name: "p"}
	a := &fakeExecutor{name: "a"}
	return testDefinition(v, p, a).Stages
}

func TestDefinition_Validate(t *testing.T) {
	def := Definition{Stages: validStages()}
	if err := def.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := def.Entry(); got != stage.StageVisualAnalysis {
		t.Errorf("Entry() = %q, want %q", got, stage.StageVisualAnalysis)
	}
}

func TestDefinition_Validate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]StageDef) []StageDef
	}{
		{"empty", func(s []StageDef) []StageDef { return nil }},
		{"missing executor", func(s []StageDef) []StageDef {
			s[1].Executor = nil
			return s
		}},
		{"wrong catch", func(s []StageDef) []StageDef {
			s[2].Catch = "SomewhereElse"
			return s
		}},
		{"dangling next", func(s []StageDef) []StageDef {
			s[1].Next = "NoSuchStage"
			return s
		}},
		{"cycle", func(s []StageDef) []StageDef {
			s[2].Next = s[0].Name
			return s
		}},
		{"duplicate name", func(s []StageDef) []StageDef {
			s[1].Name = s[0].Name
			return s
		}},
		{"unreachable stage", func(s []StageDef) []StageDef {
			s[1].Next = "" // terminates early, leaving stage 3 orphaned
			return s
		}},
		{"reserved name", func(s []StageDef) []StageDef {
			s[1].Name = HandleError
			return s
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := Definition{Stages: tt.mutate(validStages())}
			if err := def.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
