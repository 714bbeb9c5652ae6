package domain

import (
	"encoding/json"
	"errors"
)

// Payload is the structured key-value data passed between pipeline stages.
// Each stage declares the keys it requires from its input and the keys it
// guarantees in its output; beyond well-formedness, validation is the
// stage's own concern.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// GetString returns the value for key if it is a non-empty string.
func (p Payload) GetString(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// GetMap returns the value for key if it is a nested object.
func (p Payload) GetMap(key string) (map[string]any, bool) {
	v, ok := p[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// ParsePayload decodes a JSON object into a Payload. Anything other than
// a JSON object (arrays, scalars, invalid JSON) is rejected.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	return p, nil
}
