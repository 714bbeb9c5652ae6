// Package frontdoor implements the trigger endpoint. It admits a
// request, starts a pipeline execution, and answers immediately with the
// execution handle; it never waits on, or reports, the run's outcome.
package frontdoor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prodlens/prodlens/internal/domain"
	"github.com/prodlens/prodlens/internal/screenshot"
	"github.com/prodlens/prodlens/internal/server"
	"github.com/prodlens/prodlens/internal/storage"
)

// Starter starts pipeline executions.
type Starter interface {
	Start(ctx context.Context, trigger domain.Payload) (string, time.Time, error)
}

// Handler serves the /track routes.
type Handler struct {
	starter     Starter
	store       storage.ExecutionStore
	screenshots screenshot.Store // nil when the object store isn't configured
	logger      *slog.Logger
}

// NewHandler creates the trigger handler. screenshots may be nil.
func NewHandler(starter Starter, store storage.ExecutionStore, screenshots screenshot.Store, logger *slog.Logger) *Handler {
	return &Handler{
		starter:     starter,
		store:       store,
		screenshots: screenshots,
		logger:      logger,
	}
}

// Register mounts the routes on r. CORS preflight for OPTIONS /track is
// answered by the router's CORS middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/track", h.HandleTrack)
	r.Get("/track/{executionID}", h.HandleDescribe)
}

// trackResponse is the wire shape of a successful trigger.
type trackResponse struct {
	ExecutionArn string `json:"executionArn"`
	StartDate    int64  `json:"startDate"`
}

// describeResponse is the wire shape of a status query.
type describeResponse struct {
	ExecutionArn string         `json:"executionArn"`
	Status       string         `json:"status"`
	CurrentStage string         `json:"currentStage,omitempty"`
	StartDate    int64          `json:"startDate"`
	StopDate     *int64         `json:"stopDate,omitempty"`
	Output       domain.Payload `json:"output,omitempty"`
}

// HandleTrack admits a trigger request and starts an execution. The
// response carries only the execution handle; run failures are visible
// only through the execution's own state.
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read request body")
		return
	}

	payload, err := decodeTrigger(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	if err := h.resolveScreenshot(r.Context(), payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	execID, startedAt, err := h.starter.Start(r.Context(), payload)
	if err != nil {
		h.logger.Error("failed to start execution", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to start execution")
		return
	}

	server.AddLogField(r.Context(), "execution_id", execID)

	writeJSON(w, http.StatusOK, trackResponse{
		ExecutionArn: execID,
		StartDate:    startedAt.UnixMilli(),
	})
}

// HandleDescribe reports an execution's current state. This is the side
// channel callers poll for the run's outcome.
func (h *Handler) HandleDescribe(w http.ResponseWriter, r *http.Request) {
	execID := chi.URLParam(r, "executionID")

	rec, err := h.store.GetExecution(r.Context(), execID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no execution with id "+execID)
			return
		}
		h.logger.Error("failed to load execution",
			slog.String("execution_id", execID), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load execution")
		return
	}

	resp := describeResponse{
		ExecutionArn: rec.ID,
		Status:       string(rec.Status),
		CurrentStage: rec.CurrentStage,
		StartDate:    rec.StartedAt.UnixMilli(),
		Output:       rec.Output,
	}
	if rec.CompletedAt != nil {
		stop := rec.CompletedAt.UnixMilli()
		resp.StopDate = &stop
	}

	writeJSON(w, http.StatusOK, resp)
}

// decodeTrigger parses the request body into the trigger payload.
// Clients historically wrap the payload as a JSON string under "input";
// both that shape and a plain object are accepted.
func decodeTrigger(body []byte) (domain.Payload, error) {
	payload, err := domain.ParsePayload(body)
	if err != nil {
		return nil, errors.New("request body is not a JSON object")
	}

	if wrapped, ok := payload.GetString("input"); ok && len(payload) == 1 {
		inner, err := domain.ParsePayload([]byte(wrapped))
		if err != nil {
			return nil, errors.New("\"input\" is not a JSON-encoded object")
		}
		return inner, nil
	}
	return payload, nil
}

// resolveScreenshot swaps a screenshot_key reference for the actual
// base64 image data. The pipeline only ever sees resolved image_data.
func (h *Handler) resolveScreenshot(ctx context.Context, payload domain.Payload) error {
	key, ok := payload.GetString("screenshot_key")
	if !ok {
		return nil
	}
	if _, hasImage := payload.GetString("image_data"); hasImage {
		return nil
	}
	if h.screenshots == nil {
		return errors.New("screenshot_key given but no screenshot store is configured")
	}

	imageData, err := h.screenshots.GetBase64(ctx, key)
	if err != nil {
		return errors.New("failed to resolve screenshot_key: " + err.Error())
	}
	payload["image_data"] = imageData
	delete(payload, "screenshot_key")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
