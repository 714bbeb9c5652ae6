package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prodlens/prodlens/internal/domain"
	"github.com/prodlens/prodlens/internal/storage"
)

func newRecord(id string) *domain.ExecutionRecord {
	return &domain.ExecutionRecord{
		ID:        id,
		Status:    domain.StatusRunning,
		StartedAt: time.Now(),
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.CreateExecution(ctx, newRecord("exec-1")); err != nil {
		t.Fatalf("CreateExecution() error = %v", err)
	}

	rec, err := store.GetExecution(ctx, "exec-1")
	if err != nil {
		t.Fatalf("GetExecution() error = %v", err)
	}
	if rec.Status != domain.StatusRunning {
		t.Errorf("Status = %s, want running", rec.Status)
	}

	if err := store.CreateExecution(ctx, newRecord("exec-1")); err == nil {
		t.Error("expected duplicate id to be rejected")
	}
}

func TestMemoryStore_GetNotFound(t *testing.T) {
	store := New()

	_, err := store.GetExecution(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_SetStageAndComplete(t *testing.T) {
	store := New()
	ctx := context.Background()

	if err := store.CreateExecution(ctx, newRecord("exec-2")); err != nil {
		t.Fatalf("CreateExecution() error = %v", err)
	}
	if err := store.SetStage(ctx, "exec-2", "ActivityPattern"); err != nil {
		t.Fatalf("SetStage() error = %v", err)
	}

	output := domain.Payload{"productivity_score": map[string]any{"overall": 70.0}}
	if err := store.Complete(ctx, "exec-2", domain.StatusSucceeded, output); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	rec, _ := store.GetExecution(ctx, "exec-2")
	if rec.Status != domain.StatusSucceeded {
		t.Errorf("Status = %s, want succeeded", rec.Status)
	}
	if rec.CurrentStage != "ActivityPattern" {
		t.Errorf("CurrentStage = %q", rec.CurrentStage)
	}
	if rec.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	// Terminal records must not transition again.
	if err := store.Complete(ctx, "exec-2", domain.StatusFailed, domain.ErrorRecord()); err == nil {
		t.Error("expected second Complete to fail")
	}
}

func TestMemoryStore_RecordsAreCopied(t *testing.T) {
	store := New()
	ctx := context.Background()

	rec := newRecord("exec-3")
	if err := store.CreateExecution(ctx, rec); err != nil {
		t.Fatalf("CreateExecution() error = %v", err)
	}
	if err := store.Complete(ctx, "exec-3", domain.StatusSucceeded, domain.Payload{"k": "v"}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	got, _ := store.GetExecution(ctx, "exec-3")
	got.Output["k"] = "mutated"

	again, _ := store.GetExecution(ctx, "exec-3")
	if again.Output["k"] != "v" {
		t.Errorf("store state mutated through returned record: %v", again.Output["k"])
	}
}

func TestMemoryStore_ListExecutions(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		rec := newRecord(id)
		if err := store.CreateExecution(ctx, rec); err != nil {
			t.Fatalf("CreateExecution(%s) error = %v", id, err)
		}
	}
	if err := store.Complete(ctx, "b", domain.StatusFailed, domain.ErrorRecord()); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	all, err := store.ListExecutions(ctx, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}

	failed, err := store.ListExecutions(ctx, storage.ListOptions{Status: domain.StatusFailed})
	if err != nil {
		t.Fatalf("ListExecutions(failed) error = %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "b" {
		t.Errorf("failed = %+v, want just b", failed)
	}

	limited, err := store.ListExecutions(ctx, storage.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListExecutions(limit) error = %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("len(limited) = %d, want 2", len(limited))
	}
}
