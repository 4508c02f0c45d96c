package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Run DTOs

// CreateRunRequest — запрос на запуск пайплайна.
// Pipeline — YAML-описание пайплайна целиком.
type CreateRunRequest struct {
	Pipeline string            `json:"pipeline"`
	Inputs   map[string]string `json:"inputs,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID         uuid.UUID         `json:"id"`
	Pipeline   string            `json:"pipeline"`
	Status     string            `json:"status"`
	Inputs     map[string]string `json:"inputs,omitempty"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	Error      string            `json:"error,omitempty"`
	Summary    *domain.Summary   `json:"summary,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run, summary *domain.Summary) RunResponse {
	return RunResponse{
		ID:         r.ID,
		Pipeline:   r.Pipeline,
		Status:     string(r.Status),
		Inputs:     r.Inputs,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Error:      r.Error,
		Summary:    summary,
		CreatedAt:  r.CreatedAt,
	}
}

// Result DTOs

// ResultResponse — ответ с терминальным результатом job.
type ResultResponse struct {
	JobName    string              `json:"job_name"`
	Status     string              `json:"status"`
	ExitCode   int                 `json:"exit_code"`
	Outputs    map[string]string   `json:"outputs,omitempty"`
	Matrix     map[string]string   `json:"matrix,omitempty"`
	Tasks      []domain.TaskResult `json:"tasks,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// ResultFromDomain конвертирует domain.RunResult в ResultResponse.
func ResultFromDomain(r domain.RunResult) ResultResponse {
	return ResultResponse{
		JobName:    r.JobName,
		Status:     string(r.Status),
		ExitCode:   r.ExitCode,
		Outputs:    r.Outputs,
		Matrix:     r.Matrix,
		Tasks:      r.Tasks,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}
