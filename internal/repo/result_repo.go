package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Conveyor/internal/domain"
)

// ResultRepo — репозиторий терминальных результатов jobs.
type ResultRepo struct {
	pool *pgxpool.Pool
}

// NewResultRepo создаёт новый ResultRepo.
func NewResultRepo(pool *pgxpool.Pool) *ResultRepo {
	return &ResultRepo{pool: pool}
}

// InsertAll сохраняет все результаты run одним batch'ем.
// Результаты терминальны: повторная запись для пары (run, job) — конфликт.
func (r *ResultRepo) InsertAll(ctx context.Context, runID uuid.UUID, results []domain.RunResult) error {
	batch := &pgx.Batch{}

	query := `
		INSERT INTO job_results (run_id, job_name, status, exit_code, outputs, matrix, tasks, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for i := range results {
		res := &results[i]

		outputsJSON, err := json.Marshal(res.Outputs)
		if err != nil {
			return fmt.Errorf("marshal outputs: %w", err)
		}
		matrixJSON, err := json.Marshal(res.Matrix)
		if err != nil {
			return fmt.Errorf("marshal matrix: %w", err)
		}
		tasksJSON, err := json.Marshal(res.Tasks)
		if err != nil {
			return fmt.Errorf("marshal tasks: %w", err)
		}

		batch.Queue(query,
			runID,
			res.JobName,
			res.Status,
			res.ExitCode,
			outputsJSON,
			matrixJSON,
			tasksJSON,
			res.StartedAt,
			res.FinishedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert job result: %w", err)
		}
	}
	return nil
}

// ListByRun возвращает результаты jobs для run в порядке завершения.
func (r *ResultRepo) ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunResult, error) {
	query := `
		SELECT job_name, status, exit_code, outputs, matrix, tasks, started_at, finished_at
		FROM job_results
		WHERE run_id = $1
		ORDER BY finished_at, job_name
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list job results: %w", err)
	}
	defer rows.Close()

	results := make([]domain.RunResult, 0)
	for rows.Next() {
		var res domain.RunResult
		var outputsJSON, matrixJSON, tasksJSON []byte

		err := rows.Scan(
			&res.JobName,
			&res.Status,
			&res.ExitCode,
			&outputsJSON,
			&matrixJSON,
			&tasksJSON,
			&res.StartedAt,
			&res.FinishedAt,
		)
		if err != nil {
			return nil, err
		}

		if len(outputsJSON) > 0 {
			if err := json.Unmarshal(outputsJSON, &res.Outputs); err != nil {
				return nil, fmt.Errorf("unmarshal outputs: %w", err)
			}
		}
		if len(matrixJSON) > 0 {
			if err := json.Unmarshal(matrixJSON, &res.Matrix); err != nil {
				return nil, fmt.Errorf("unmarshal matrix: %w", err)
			}
		}
		if len(tasksJSON) > 0 {
			if err := json.Unmarshal(tasksJSON, &res.Tasks); err != nil {
				return nil, fmt.Errorf("unmarshal tasks: %w", err)
			}
		}

		results = append(results, res)
	}
	return results, rows.Err()
}
