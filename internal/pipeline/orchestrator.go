// Package pipeline sequences the analysis stages. One orchestrator
// drives any number of concurrent executions; each execution is a strict
// linear chain in which stage N+1 consumes exactly stage N's output.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/prodlens/prodlens/internal/domain"
	"github.com/prodlens/prodlens/internal/storage"
)

// DefaultRunTimeout bounds one whole execution. Individual stages carry
// their own budgets; this is the backstop around all of them.
const DefaultRunTimeout = 15 * time.Minute

// Orchestrator owns the stage sequence and the execution records it
// mutates. It is safe for concurrent use; runs share no mutable state.
type Orchestrator struct {
	def        Definition
	store      storage.ExecutionStore
	logger     *slog.Logger
	tracer     trace.Tracer
	runTimeout time.Duration
}

// OrchestratorOption configures an orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRunTimeout sets the overall per-execution deadline.
func WithRunTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.runTimeout = d
	}
}

// NewOrchestrator creates an orchestrator for def, persisting execution
// state to store.
func NewOrchestrator(def Definition, store storage.ExecutionStore, logger *slog.Logger, opts ...OrchestratorOption) (*Orchestrator, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline definition: %w", err)
	}

	o := &Orchestrator{
		def:        def,
		store:      store,
		logger:     logger,
		tracer:     otel.Tracer("prodlens/pipeline"),
		runTimeout: DefaultRunTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Start admits a new execution and returns its id and start time without
// waiting for the run. The run proceeds on its own goroutine, detached
// from the caller's cancellation but bounded by the run timeout.
func (o *Orchestrator) Start(ctx context.Context, trigger domain.Payload) (string, time.Time, error) {
	rec := &domain.ExecutionRecord{
		ID:        uuid.New().String(),
		Status:    domain.StatusRunning,
		StartedAt: time.Now(),
	}

	if err := o.store.CreateExecution(ctx, rec); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to create execution: %w", err)
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.runTimeout)
	go func() {
		defer cancel()
		o.run(runCtx, rec.ID, trigger)
	}()

	return rec.ID, rec.StartedAt, nil
}

// run drives one execution from the entry stage to a terminal state.
func (o *Orchestrator) run(ctx context.Context, execID string, trigger domain.Payload) {
	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("execution.id", execID)))
	defer span.End()

	logger := o.logger.With(slog.String("execution_id", execID))
	logger.Info("execution started", slog.String("stage", o.def.Entry()))

	payload := trigger
	name := o.def.Entry()

	for name != "" {
		def, ok := o.def.stageByName(name)
		if !ok {
			// Validate() makes this unreachable; treated as a stage
			// failure rather than a panic if it ever regresses.
			o.handleError(ctx, logger, span, execID, name, fmt.Errorf("undefined stage %q", name))
			return
		}

		if err := o.store.SetStage(ctx, execID, name); err != nil {
			logger.Error("failed to record stage transition",
				slog.String("stage", name), slog.String("error", err.Error()))
		}

		output, err := o.executeStage(ctx, def, payload)
		if err != nil {
			o.handleError(ctx, logger, span, execID, name, err)
			return
		}

		payload = output
		name = def.Next
	}

	if err := o.store.Complete(ctx, execID, domain.StatusSucceeded, payload); err != nil {
		logger.Error("failed to record success", slog.String("error", err.Error()))
		return
	}
	logger.Info("execution succeeded")
}

func (o *Orchestrator) executeStage(ctx context.Context, def StageDef, input domain.Payload) (domain.Payload, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(attribute.String("stage.name", def.Name)))
	defer span.End()

	output, err := def.Executor.Execute(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.ErrorKindOf(err)))
		return nil, err
	}
	return output, nil
}

// handleError is the shared error terminal. The error's kind, stage, and
// message go to the log and trace only; the record gets the fixed
// failure payload.
func (o *Orchestrator) handleError(ctx context.Context, logger *slog.Logger, span trace.Span, execID, stageName string, err error) {
	logger.Error("execution failed",
		slog.String("stage", stageName),
		slog.String("kind", string(domain.ErrorKindOf(err))),
		slog.String("error", err.Error()),
	)
	span.SetStatus(codes.Error, "execution failed")

	if err := o.store.SetStage(ctx, execID, HandleError); err != nil {
		logger.Error("failed to record stage transition", slog.String("error", err.Error()))
	}
	if err := o.store.Complete(ctx, execID, domain.StatusFailed, domain.ErrorRecord()); err != nil {
		logger.Error("failed to record failure", slog.String("error", err.Error()))
	}
}
