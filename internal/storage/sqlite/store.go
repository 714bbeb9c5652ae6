// Package sqlite provides a SQLite-backed ExecutionStore.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/prodlens/prodlens/internal/domain"
	"github.com/prodlens/prodlens/internal/storage"
)

// Store is a SQLite implementation of ExecutionStore.
type Store struct {
	db *sql.DB
}

var _ storage.ExecutionStore = (*Store)(nil)

// New opens (or creates) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			current_stage TEXT,
			output TEXT,
			started_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_started ON executions(started_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) CreateExecution(ctx context.Context, rec *domain.ExecutionRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO executions (id, status, current_stage, output, started_at) VALUES (?, ?, ?, NULL, ?)`,
		rec.ID, string(rec.Status), rec.CurrentStage, rec.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

func (s *Store) GetExecution(ctx context.Context, id string) (*domain.ExecutionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, current_stage, output, started_at, completed_at FROM executions WHERE id = ?`, id)
	return scanExecution(row)
}

func (s *Store) SetStage(ctx context.Context, id, stage string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET current_stage = ? WHERE id = ?`, stage, id)
	if err != nil {
		return fmt.Errorf("failed to update stage: %w", err)
	}
	return requireRow(res)
}

func (s *Store) Complete(ctx context.Context, id string, status domain.Status, output domain.Payload) error {
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE executions SET status = ?, output = ?, completed_at = ? WHERE id = ? AND status = ?`,
		string(status), string(outputJSON), time.Now().UTC(), id, string(domain.StatusRunning),
	)
	if err != nil {
		return fmt.Errorf("failed to complete execution: %w", err)
	}
	return requireRow(res)
}

func (s *Store) ListExecutions(ctx context.Context, opts storage.ListOptions) ([]*domain.ExecutionRecord, error) {
	query := `SELECT id, status, current_stage, output, started_at, completed_at FROM executions`
	var args []any
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY started_at DESC`
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var result []*domain.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExecution(row scanner) (*domain.ExecutionRecord, error) {
	var (
		rec          domain.ExecutionRecord
		status       string
		currentStage sql.NullString
		output       sql.NullString
		completedAt  sql.NullTime
	)
	err := row.Scan(&rec.ID, &status, &currentStage, &output, &rec.StartedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	rec.Status = domain.Status(status)
	rec.CurrentStage = currentStage.String
	if output.Valid && output.String != "" {
		if err := json.Unmarshal([]byte(output.String), &rec.Output); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output: %w", err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
