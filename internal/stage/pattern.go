package stage

import (
	"context"
	"fmt"

	"github.com/prodlens/prodlens/internal/api/bedrock"
	"github.com/prodlens/prodlens/internal/domain"
)

// StageActivityPattern is the second pipeline stage.
const StageActivityPattern = "ActivityPattern"

// KeyActivityPattern is the output key the pattern stage guarantees.
const KeyActivityPattern = "activity_pattern"

const patternSystemPrompt = "You are an AI assistant specialized in analyzing employee productivity based on screen activity and application usage patterns."

const patternPromptFormat = `Based on this screen activity data: %s

Analyze the activity pattern and respond with JSON in this format:
{
    "activity_summary": "one paragraph summary of the observed activity",
    "timeline": [
        {
            "period": "observed period or sequence",
            "activity": "what was happening"
        }
    ],
    "productivity_indicators": {
        "focus_areas": ["area1", "area2"],
        "tool_usage": "distribution of tools and applications in use",
        "task_organization": "assessment of task organization"
    }
}`

// patternRequiredKeys are the keys the model's JSON must carry.
var patternRequiredKeys = []string{"activity_summary", "timeline", "productivity_indicators"}

// Pattern infers the activity pattern behind a visual description. It
// requires "visual_analysis" and produces a structured pattern object
// under "activity_pattern".
type Pattern struct {
	opts Options
}

// NewPattern creates the activity pattern stage.
func NewPattern(opts Options) *Pattern {
	return &Pattern{opts: opts}
}

func (s *Pattern) Name() string { return StageActivityPattern }

func (s *Pattern) Execute(ctx context.Context, input domain.Payload) (domain.Payload, error) {
	visual, ok := input.GetString(KeyVisualAnalysis)
	if !ok {
		return nil, domain.NewStageError(s.Name(), domain.ErrInvalidInput,
			fmt.Errorf("missing required key %q", KeyVisualAnalysis))
	}

	req := &bedrock.InvokeRequest{
		System: []bedrock.SystemBlock{{Text: patternSystemPrompt}},
		Messages: []bedrock.Message{{
			Role:    "user",
			Content: []bedrock.ContentPart{{Text: fmt.Sprintf(patternPromptFormat, visual)}},
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

	pattern, err := extractJSON(resp.Text())
	if err != nil {
		return nil, domain.NewStageError(s.Name(), domain.ErrParseFailure, err)
	}

	for _, key := range patternRequiredKeys {
		if _, ok := pattern[key]; !ok {
			return nil, domain.NewStageError(s.Name(), domain.ErrParseFailure,
				fmt.Errorf("model response missing %q", key))
		}
	}

	return domain.Payload{KeyActivityPattern: pattern}, nil
}
