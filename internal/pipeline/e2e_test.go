package pipeline

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/prodlens/prodlens/internal/api/bedrock"
	"github.com/prodlens/prodlens/internal/domain"
	"github.com/prodlens/prodlens/internal/stage"
	"github.com/prodlens/prodlens/internal/storage/memory"
	"github.com/prodlens/prodlens/internal/testutil"
)

const e2ePatternJSON = `{
  "activity_summary": "Sustained development work across an IDE and terminal.",
  "timeline": [{"period": "observed", "activity": "editing and testing"}],
  "productivity_indicators": {"focus_areas": ["development"], "tool_usage": "IDE-heavy", "task_organization": "structured"}
}`

const e2eAssessmentJSON = `{
  "productivity_score": {"overall": 82, "breakdown": {"focus": 85, "efficiency": 80, "task_completion": 81}},
  "recommendations": [{"category": "tooling", "suggestion": "automate test runs", "expected_impact": "faster cycles"}],
  "productivity_metrics": {"focus_time_ratio": "75%", "task_switching_cost": "low", "productive_hours": "6.5"}
}`

func newPipeline(t *testing.T, ms *testutil.ModelServer, timeout time.Duration) (*Orchestrator, *memory.Store) {
	t.Helper()

	opts := stage.Options{
		Client:  bedrock.NewClient("test-key", bedrock.WithBaseURL(ms.URL)),
		ModelID: "nova-lite",
		Timeout: timeout,
	}
	def := NewDefinition(stage.NewVisual(opts), stage.NewPattern(opts), stage.NewAssessment(opts))

	store := memory.New()
	o, err := NewOrchestrator(def, store, testLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return o, store
}

// Valid screenshot in, scored assessment out.
func TestPipeline_EndToEnd(t *testing.T) {
	ms := testutil.NewModelServer(t,
		testutil.ModelResponse{Text: "An IDE with an open test file and a terminal running go test."},
		testutil.ModelResponse{Text: e2ePatternJSON},
		testutil.ModelResponse{Text: e2eAssessmentJSON},
	)
	o, store := newPipeline(t, ms, 0)

	id, _, err := o.Start(context.Background(), domain.Payload{"image_data": "aGVsbG8="})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rec := waitTerminal(t, store, id)
	if rec.Status != domain.StatusSucceeded {
		t.Fatalf("status = %s, want succeeded (output %v)", rec.Status, rec.Output)
	}
	if ms.Calls() != 3 {
		t.Errorf("model calls = %d, want 3", ms.Calls())
	}

	score, ok := rec.Output.GetMap("productivity_score")
	if !ok {
		t.Fatalf("output missing productivity_score: %v", rec.Output)
	}
	overall, _ := score["overall"].(float64)
	if overall < 0 || overall > 100 {
		t.Errorf("overall = %v, want 0..100", score["overall"])
	}
	if _, ok := rec.Output["recommendations"]; !ok {
		t.Error("output missing recommendations")
	}
	if _, ok := rec.Output["productivity_metrics"]; !ok {
		t.Error("output missing productivity_metrics")
	}
}

// Missing image_data fails in the entry stage without any model call.
func TestPipeline_EndToEnd_MissingImage(t *testing.T) {
	ms := testutil.NewModelServer(t, testutil.ModelResponse{Text: "unused"})
	o, store := newPipeline(t, ms, 0)

	id, _, err := o.Start(context.Background(), domain.Payload{})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rec := waitTerminal(t, store, id)
	if rec.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if ms.Calls() != 0 {
		t.Errorf("model calls = %d, want 0", ms.Calls())
	}

	data, _ := json.Marshal(rec.Output)
	if got, want := string(data), `{"error":"Workflow execution failed"}`; got != want {
		t.Errorf("output = %s, want %s", got, want)
	}
}

// A second-stage timeout fails the run; the third stage never executes.
func TestPipeline_EndToEnd_PatternTimeout(t *testing.T) {
	ms := testutil.NewModelServer(t,
		testutil.ModelResponse{Text: "An IDE."},
		testutil.ModelResponse{Hang: true},
	)
	o, store := newPipeline(t, ms, 100*time.Millisecond)

	id, _, err := o.Start(context.Background(), domain.Payload{"image_data": "aGVsbG8="})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rec := waitTerminal(t, store, id)
	if rec.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want failed", rec.Status)
	}
	if ms.Calls() != 2 {
		t.Errorf("model calls = %d, want 2 (assessment must not run)", ms.Calls())
	}
}
