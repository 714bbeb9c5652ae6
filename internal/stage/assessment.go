package stage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prodlens/prodlens/internal/api/bedrock"
	"github.com/prodlens/prodlens/internal/domain"
)

// StageProductivityAssessment is the pipeline's success-terminal stage.
const StageProductivityAssessment = "ProductivityAssessment"

const assessmentSystemPrompt = "You are an AI assistant specialized in analyzing productivity patterns and providing detailed assessments with recommendations."

const assessmentPromptFormat = `Based on this activity data: %s

Analyze the productivity and provide the assessment in this format:
{
    "productivity_score": {
        "overall": score_0_to_100,
        "breakdown": {
            "focus": score,
            "efficiency": score,
            "task_completion": score
        }
    },
    "recommendations": [
        {
            "category": "category",
            "suggestion": "detailed suggestion",
            "expected_impact": "predicted improvement"
        }
    ],
    "productivity_metrics": {
        "focus_time_ratio": "percentage",
        "task_switching_cost": "impact",
        "productive_hours": "number"
    }
}`

// Assessment scores productivity from an activity pattern. It requires
// "activity_pattern" and its output is the scored assessment object
// itself: productivity_score, recommendations, productivity_metrics.
type Assessment struct {
	opts Options
}

// NewAssessment creates the productivity assessment stage.
func NewAssessment(opts Options) *Assessment {
	return &Assessment{opts: opts}
}

func (s *Assessment) Name() string { return StageProductivityAssessment }

func (s *Assessment) Execute(ctx context.Context, input domain.Payload) (domain.Payload, error) {
	pattern, ok := input.GetMap(KeyActivityPattern)
	if !ok {
		return nil, domain.NewStageError(s.Name(), domain.ErrInvalidInput,
			fmt.Errorf("missing required key %q", KeyActivityPattern))
	}

	patternJSON, err := json.Marshal(pattern)
	if err != nil {
		return nil, domain.NewStageError(s.Name(), domain.ErrInvalidInput,
			fmt.Errorf("activity pattern is not serializable: %w", err))
	}

	req := &bedrock.InvokeRequest{
		System: []bedrock.SystemBlock{{Text: assessmentSystemPrompt}},
		Messages: []bedrock.Message{{
			Role:    "user",
			Content: []bedrock.ContentPart{{Text: fmt.Sprintf(assessmentPromptFormat, patternJSON)}},
		}},
		InferenceConfig: &bedrock.InferenceConfig{
			MaxTokens:   4096,
			Temperature: bedrock.Float64(0.7),
			TopP:        bedrock.Float64(0.8),
		},
	}

	resp, err := invoke(ctx, s.Name(), s.opts, req)
	if err != nil {
		return nil, err
	}

	assessment, err := extractJSON(resp.Text())
	if err != nil {
		return nil, domain.NewStageError(s.Name(), domain.ErrParseFailure, err)
	}

	if err := validateAssessment(assessment); err != nil {
		return nil, domain.NewStageError(s.Name(), domain.ErrParseFailure, err)
	}

	return domain.Payload(assessment), nil
}

func validateAssessment(assessment map[string]any) error {
	score, ok := assessment["productivity_score"].(map[string]any)
	if !ok {
		return fmt.Errorf("model response missing \"productivity_score\"")
	}

	overall, ok := score["overall"].(float64)
	if !ok {
		return fmt.Errorf("productivity_score missing numeric \"overall\"")
	}
	if overall < 0 || overall > 100 {
		return fmt.Errorf("overall score %v out of range 0..100", overall)
	}

	if _, ok := assessment["recommendations"].([]any); !ok {
		return fmt.Errorf("model response missing \"recommendations\"")
	}
	if _, ok := assessment["productivity_metrics"].(map[string]any); !ok {
		return fmt.Errorf("model response missing \"productivity_metrics\"")
	}
	return nil
}
