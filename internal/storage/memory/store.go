// Package memory provides an in-memory ExecutionStore, used in tests and
// for single-process deployments that don't need durability.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prodlens/prodlens/internal/domain"
	"github.com/prodlens/prodlens/internal/storage"
)

// Store is an in-memory implementation of ExecutionStore.
type Store struct {
	mu         sync.RWMutex
	executions map[string]*domain.ExecutionRecord
}

var _ storage.ExecutionStore = (*Store)(nil)

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		executions: make(map[string]*domain.ExecutionRecord),
	}
}

func (s *Store) CreateExecution(ctx context.Context, rec *domain.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.executions[rec.ID]; exists {
		return fmt.Errorf("execution %s already exists", rec.ID)
	}

	s.executions[rec.ID] = copyRecord(rec)
	return nil
}

func (s *Store) GetExecution(ctx context.Context, id string) (*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.executions[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *Store) SetStage(ctx context.Context, id, stage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.executions[id]
	if !exists {
		return storage.ErrNotFound
	}
	rec.CurrentStage = stage
	return nil
}

func (s *Store) Complete(ctx context.Context, id string, status domain.Status, output domain.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.executions[id]
	if !exists {
		return storage.ErrNotFound
	}
	if rec.Status.Terminal() {
		return fmt.Errorf("execution %s already terminal (%s)", id, rec.Status)
	}

	now := time.Now()
	rec.Status = status
	rec.Output = output.Clone()
	rec.CompletedAt = &now
	return nil
}

func (s *Store) ListExecutions(ctx context.Context, opts storage.ListOptions) ([]*domain.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ExecutionRecord
	for _, rec := range s.executions {
		if opts.Status != "" && rec.Status != opts.Status {
			continue
		}
		result = append(result, copyRecord(rec))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	start := opts.Offset
	if start >= len(result) {
		return []*domain.ExecutionRecord{}, nil
	}
	end := start + opts.Limit
	if opts.Limit == 0 || end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (s *Store) Close() error {
	return nil
}

// copyRecord keeps callers from aliasing store-owned state.
func copyRecord(rec *domain.ExecutionRecord) *domain.ExecutionRecord {
	out := *rec
	out.Output = rec.Output.Clone()
	if rec.CompletedAt != nil {
		completed := *rec.CompletedAt
		out.CompletedAt = &completed
	}
	return &out
}
