// Package storage defines the durable record store for pipeline
// executions. ExecutionRecord rows are written only by the orchestrator
// driving a run; the HTTP layer reads them to answer status queries.
package storage

import (
	"context"
	"errors"

	"github.com/prodlens/prodlens/internal/domain"
)

// ErrNotFound is returned when no execution exists for an id.
var ErrNotFound = errors.New("execution not found")

// ListOptions filters and pages execution listings.
type ListOptions struct {
	Status domain.Status
	Limit  int
	Offset int
}

// ExecutionStore persists execution records.
type ExecutionStore interface {
	// CreateExecution inserts a new record. The id must be unique.
	CreateExecution(ctx context.Context, rec *domain.ExecutionRecord) error

	// GetExecution returns the record for id, or ErrNotFound.
	GetExecution(ctx context.Context, id string) (*domain.ExecutionRecord, error)

	// SetStage records the stage the execution is currently in.
	SetStage(ctx context.Context, id, stage string) error

	// Complete moves the execution to a terminal status and attaches
	// its final output payload.
	Complete(ctx context.Context, id string, status domain.Status, output domain.Payload) error

	// ListExecutions returns records matching opts, newest first.
	ListExecutions(ctx context.Context, opts ListOptions) ([]*domain.ExecutionRecord, error)

	// Close releases underlying resources.
	Close() error
}
