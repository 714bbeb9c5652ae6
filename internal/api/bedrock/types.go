// Package bedrock provides types and an HTTP client for the external
// generative-model service. The wire format is the messages-v1 envelope:
// a system prompt, a message list whose content parts are text or
// base64 images, and an inference configuration.
package bedrock

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is the request envelope version the service accepts.
const SchemaVersion = "messages-v1"

// InvokeRequest is a model invocation request.
type InvokeRequest struct {
	SchemaVersion   string           `json:"schemaVersion"`
	System          []SystemBlock    `json:"system,omitempty"`
	Messages        []Message        `json:"messages"`
	InferenceConfig *InferenceConfig `json:"inferenceConfig,omitempty"`
}

// SystemBlock is one block of the system prompt.
type SystemBlock struct {
	Text string `json:"text"`
}

// Message is one conversation turn.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ContentPart is a single content part: text or an inline image.
type ContentPart struct {
	Text  string      `json:"text,omitempty"`
	Image *ImageBlock `json:"image,omitempty"`
}

// ImageBlock is an inline image attached to a message.
type ImageBlock struct {
	Format string      `json:"format"` // "png", "jpeg", ...
	Source ImageSource `json:"source"`
}

// ImageSource carries the base64-encoded image bytes.
type ImageSource struct {
	Bytes string `json:"bytes"`
}

// InferenceConfig controls text generation.
type InferenceConfig struct {
	MaxTokens     int      `json:"maxTokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"topP,omitempty"`
	TopK          *int     `json:"topK,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty"`
}

// InvokeResponse is the service's response envelope.
type InvokeResponse struct {
	Output     Output `json:"output"`
	StopReason string `json:"stopReason,omitempty"`
	Usage      *Usage `json:"usage,omitempty"`
}

// Output wraps the generated message.
type Output struct {
	Message Message `json:"message"`
}

// Usage reports token accounting for an invocation.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Text returns the concatenated text parts of the generated message.
func (r *InvokeResponse) Text() string {
	var out string
	for _, part := range r.Output.Message.Content {
		out += part.Text
	}
	return out
}

// ErrorResponse is the service's error body.
type ErrorResponse struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message"`
}

// APIError is a typed error returned for non-success responses.
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("model service error (status %d, %s): %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("model service error (status %d): %s", e.StatusCode, e.Message)
}

// ParseErrorResponse decodes an error body into an APIError. Returns nil
// if the body is not a recognizable error payload.
func ParseErrorResponse(statusCode int, body []byte) *APIError {
	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Message == "" {
		return nil
	}
	return &APIError{StatusCode: statusCode, Type: er.Type, Message: er.Message}
}

// Float64 returns a pointer to v, for inference config literals.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for inference config literals.
func Int(v int) *int { return &v }
