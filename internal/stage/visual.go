package stage

import (
	"context"
	"fmt"

	"github.com/prodlens/prodlens/internal/api/bedrock"
	"github.com/prodlens/prodlens/internal/domain"
)

// StageVisualAnalysis is the pipeline's entry stage.
const StageVisualAnalysis = "VisualAnalysis"

// KeyImageData is the input key the visual stage requires.
const KeyImageData = "image_data"

// KeyVisualAnalysis is the output key the visual stage guarantees.
const KeyVisualAnalysis = "visual_analysis"

const visualSystemPrompt = "You are an expert at analyzing screenshots and UI elements."

const visualUserPrompt = `Analyze this screenshot and provide:
1. All visible applications and windows
2. UI elements and their states
3. Any visible timestamps
4. User interactions visible
5. Type of work being performed`

// Visual describes the UI state captured in a screenshot. It requires a
// base64 image under "image_data" and produces a free-form description
// under "visual_analysis".
type Visual struct {
	opts Options
}

// NewVisual creates the visual analysis stage.
func NewVisual(opts Options) *Visual {
	return &Visual{opts: opts}
}

func (s *Visual) Name() string { return StageVisualAnalysis }

func (s *Visual) Execute(ctx context.Context, input domain.Payload) (domain.Payload, error) {
	imageData, ok := input.GetString(KeyImageData)
	if !ok {
		return nil, domain.NewStageError(s.Name(), domain.ErrInvalidInput,
			fmt.Errorf("missing required key %q", KeyImageData))
	}

	req := &bedrock.InvokeRequest{
		System: []bedrock.SystemBlock{{Text: visualSystemPrompt}},
		Messages: []bedrock.Message{{
			Role: "user",
			Content: []bedrock.ContentPart{
				{Image: &bedrock.ImageBlock{
					Format: "png",
					Source: bedrock.ImageSource{Bytes: imageData},
				}},
				{Text: visualUserPrompt},
			},
		}},
		InferenceConfig: &bedrock.InferenceConfig{
			MaxTokens:   300,
			Temperature: bedrock.Float64(0.3),
			TopP:        bedrock.Float64(0.1),
			TopK:        bedrock.Int(20),
		},
	}

	resp, err := invoke(ctx, s.Name(), s.opts, req)
	if err != nil {
		return nil, err
	}

	description := resp.Text()
	if description == "" {
		return nil, domain.NewStageError(s.Name(), domain.ErrParseFailure,
			fmt.Errorf("model returned no text content"))
	}

	return domain.Payload{KeyVisualAnalysis: description}, nil
}
