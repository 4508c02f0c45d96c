package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// RunRepo — репозиторий для работы с runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	inputsJSON, err := json.Marshal(run.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}

	query := `
		INSERT INTO runs (id, pipeline, status, inputs, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		run.Pipeline,
		run.Status,
		inputsJSON,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// UpdateStatus сохраняет статус и времена run.
func (r *RunRepo) UpdateStatus(ctx context.Context, run *domain.Run) error {
	query := `
		UPDATE runs
		SET status = $2, started_at = $3, finished_at = $4, error = $5
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		run.StartedAt,
		run.FinishedAt,
		nullString(run.Error),
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSummary сохраняет итоговую сводку run.
func (r *RunRepo) SetSummary(ctx context.Context, runID uuid.UUID, summary *domain.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	query := `UPDATE runs SET summary = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, runID, summaryJSON)
	if err != nil {
		return fmt.Errorf("set run summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID возвращает run по ID вместе с сохранённой сводкой (если есть).
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, *domain.Summary, error) {
	query := `
		SELECT id, pipeline, status, inputs, summary, started_at, finished_at, error, created_at
		FROM runs
		WHERE id = $1
	`
	return r.scanRun(r.pool.QueryRow(ctx, query, id))
}

// List возвращает последние runs.
func (r *RunRepo) List(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, pipeline, status, inputs, summary, started_at, finished_at, error, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]domain.Run, 0)
	for rows.Next() {
		run, _, err := r.scanRunRow(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *RunRepo) scanRun(row pgx.Row) (*domain.Run, *domain.Summary, error) {
	run, summary, err := r.scanRunRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return run, summary, nil
}

func (r *RunRepo) scanRunRow(row rowScanner) (*domain.Run, *domain.Summary, error) {
	var run domain.Run
	var inputsJSON []byte
	var summaryJSON []byte
	var errText *string

	err := row.Scan(
		&run.ID,
		&run.Pipeline,
		&run.Status,
		&inputsJSON,
		&summaryJSON,
		&run.StartedAt,
		&run.FinishedAt,
		&errText,
		&run.CreatedAt,
	)
	if err != nil {
		return nil, nil, err
	}

	if errText != nil {
		run.Error = *errText
	}
	if len(inputsJSON) > 0 {
		if err := json.Unmarshal(inputsJSON, &run.Inputs); err != nil {
			return nil, nil, fmt.Errorf("unmarshal inputs: %w", err)
		}
	}

	var summary *domain.Summary
	if len(summaryJSON) > 0 {
		summary = &domain.Summary{}
		if err := json.Unmarshal(summaryJSON, summary); err != nil {
			return nil, nil, fmt.Errorf("unmarshal summary: %w", err)
		}
	}

	return &run, summary, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
