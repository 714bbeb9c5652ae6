package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// ModelServer is a fake model service for tests. It answers every
// invocation with the queued responses in order, repeating the last one,
// and counts calls.
type ModelServer struct {
	*httptest.Server
	calls     atomic.Int64
	responses []ModelResponse
}

// ModelResponse scripts one fake invocation result.
type ModelResponse struct {
	// Text is the generated message text returned on success.
	Text string
	// Status overrides the 200 response when non-zero.
	Status int
	// Body overrides the response body entirely when non-empty.
	Body string
	// Hang, when set, blocks until the client gives up. Used to
	// exercise stage timeouts.
	Hang bool
}

// NewModelServer starts a fake model service scripted with responses.
// The server is shut down with the test.
func NewModelServer(t *testing.T, responses ...ModelResponse) *ModelServer {
	t.Helper()

	ms := &ModelServer{responses: responses}
	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ms.calls.Add(1)
		idx := int(n) - 1
		if idx >= len(ms.responses) {
			idx = len(ms.responses) - 1
		}
		resp := ms.responses[idx]

		if resp.Hang {
			// Drain the body so the server's background connection
			// read runs; without it a client disconnect never cancels
			// r.Context() and Close deadlocks in test cleanup.
			io.Copy(io.Discard, r.Body)
			<-r.Context().Done()
			return
		}
		if resp.Status != 0 && resp.Status != http.StatusOK {
			w.WriteHeader(resp.Status)
			if resp.Body != "" {
				w.Write([]byte(resp.Body))
			} else {
				json.NewEncoder(w).Encode(map[string]string{
					"type":    "server_error",
					"message": "scripted failure",
				})
			}
			return
		}
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"output": map[string]any{
				"message": map[string]any{
					"role":    "assistant",
					"content": []map[string]any{{"text": resp.Text}},
				},
			},
			"stopReason": "end_turn",
			"usage":      map[string]int{"inputTokens": 10, "outputTokens": 20, "totalTokens": 30},
		})
	}))
	t.Cleanup(ms.Close)
	return ms
}

// Calls returns how many invocations the server has received.
func (ms *ModelServer) Calls() int {
	return int(ms.calls.Load())
}
