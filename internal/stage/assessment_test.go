package stage

import (
	"context"
	"strings"
	"testing"

	"github.com/prodlens/prodlens/internal/domain"
	"github.com/prodlens/prodlens/internal/testutil"
)

const assessmentJSON = `{
  "productivity_score": {
    "overall": 78,
    "breakdown": {"focus": 80, "efficiency": 75, "task_completion": 79}
  },
  "recommendations": [
    {"category": "workflow", "suggestion": "batch context switches", "expected_impact": "less fragmentation"}
  ],
  "productivity_metrics": {
    "focus_time_ratio": "72%",
    "task_switching_cost": "moderate",
    "productive_hours": "6"
  }
}`

func activityPatternInput() domain.Payload {
	return domain.Payload{
		"activity_pattern": map[string]any{
			"activity_summary":        "coding",
			"timeline":                []any{},
			"productivity_indicators": map[string]any{},
		},
	}
}

func TestAssessment_Execute(t *testing.T) {
	ms := testutil.NewModelServer(t, testutil.ModelResponse{Text: assessmentJSON})
	s := NewAssessment(newOptions(t, ms, 0))

	out, err := s.Execute(context.Background(), activityPatternInput())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	score, ok := out.GetMap("productivity_score")
	if !ok {
		t.Fatalf("output missing productivity_score: %+v", out)
	}
	if score["overall"] != 78.0 {
		t.Errorf("overall = %v, want 78", score["overall"])
	}
	if _, ok := out["recommendations"]; !ok {
		t.Error("output missing recommendations")
	}
	if _, ok := out["productivity_metrics"]; !ok {
		t.Error("output missing productivity_metrics")
	}
}

func TestAssessment_Execute_MissingInput(t *testing.T) {
	ms := testutil.NewModelServer(t, testutil.ModelResponse{Text: assessmentJSON})
	s := NewAssessment(newOptions(t, ms, 0))

	for _, input := range []domain.Payload{
		{},
		{"activity_pattern": "not an object"},
	} {
		_, err := s.Execute(context.Background(), input)
		if domain.ErrorKindOf(err) != domain.ErrInvalidInput {
			t.Errorf("input %v: kind = %q, want invalid_input", input, domain.ErrorKindOf(err))
		}
	}
	if ms.Calls() != 0 {
		t.Errorf("model calls = %d, want 0", ms.Calls())
	}
}

func TestAssessment_Execute_ScoreOutOfRange(t *testing.T) {
	bad := strings.Replace(assessmentJSON, `"overall": 78`, `"overall": 140`, 1)
	ms := testutil.NewModelServer(t, testutil.ModelResponse{Text: bad})
	s := NewAssessment(newOptions(t, ms, 0))

	_, err := s.Execute(context.Background(), activityPatternInput())
	if domain.ErrorKindOf(err) != domain.ErrParseFailure {
		t.Errorf("kind = %q, want parse_failure (err = %v)", domain.ErrorKindOf(err), err)
	}
}

func TestAssessment_Execute_MissingSections(t *testing.T) {
	ms := testutil.NewModelServer(t, testutil.ModelResponse{
		Text: `{"productivity_score": {"overall": 50}}`,
	})
	s := NewAssessment(newOptions(t, ms, 0))

	_, err := s.Execute(context.Background(), activityPatternInput())
	if domain.ErrorKindOf(err) != domain.ErrParseFailure {
		t.Errorf("kind = %q, want parse_failure (err = %v)", domain.ErrorKindOf(err), err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"bare", `{"a": 1}`, true},
		{"fenced", "```json\n{\"a\": 1}\n```", true},
		{"prose around", `Here you go: {"a": 1} hope that helps`, true},
		{"no object", "nothing here", false},
		{"invalid", `{"a": `, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := extractJSON(tt.in)
			if tt.ok && err != nil {
				t.Fatalf("extractJSON() error = %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatalf("extractJSON() = %v, want error", out)
			}
		})
	}
}
