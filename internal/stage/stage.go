// Package stage implements the pipeline's stage executors. Each executor
// turns its input payload into one model invocation, then parses the
// model's response into the stage's declared output schema.
package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prodlens/prodlens/internal/api/bedrock"
	"github.com/prodlens/prodlens/internal/domain"
)

// DefaultTimeout bounds a single stage invocation.
const DefaultTimeout = 300 * time.Second

// Executor is one unit of pipeline work.
type Executor interface {
	Name() string
	Execute(ctx context.Context, input domain.Payload) (domain.Payload, error)
}

// ModelInvoker is the slice of the model client the stages use.
type ModelInvoker interface {
	InvokeModel(ctx context.Context, modelID string, req *bedrock.InvokeRequest) (*bedrock.InvokeResponse, error)
}

// Options configures a stage executor.
type Options struct {
	Client  ModelInvoker
	ModelID string
	// Timeout overrides DefaultTimeout when positive.
	Timeout time.Duration
}

func (o Options) timeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return DefaultTimeout
}

// invoke performs the stage's single outbound model call under the
// stage's wall-clock budget and maps transport failures to the error
// taxonomy. Retry, if ever added, belongs above this layer.
func invoke(ctx context.Context, stageName string, opts Options, req *bedrock.InvokeRequest) (*bedrock.InvokeResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.timeout())
	defer cancel()

	resp, err := opts.Client.InvokeModel(ctx, opts.ModelID, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewStageError(stageName, domain.ErrTimeout, err)
		}
		return nil, domain.NewStageError(stageName, domain.ErrInvocationFailure, err)
	}
	return resp, nil
}

// extractJSON pulls a single JSON object out of model text. Models often
// wrap JSON in a markdown code fence or surround it with prose, so the
// text is scanned from the first '{' to the last '}'.
func extractJSON(text string) (map[string]any, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	first := strings.Index(cleaned, "{")
	last := strings.LastIndex(cleaned, "}")
	if first == -1 || last == -1 || last < first {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned[first:last+1]), &out); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	return out, nil
}
