package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/executor"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// runJob выполняет список tasks одного job (или matrix-экземпляра).
//
// Tasks выполняются строго последовательно. Падение task помечает
// остаток списка как невыполненный и job как FAILURE, кроме tasks
// с continue_on_error. Отмена контекста даёт статус CANCELLED.
func (s *Scheduler) runJob(ctx context.Context, job *domain.JobDef, resultName string,
	matrix map[string]string, tmplCtx *engine.Context, baseEnv map[string]string,
	sem chan struct{}) *domain.RunResult {

	// Слот воркера: предел конкурентности волны.
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return cancelledResult(resultName)
	}
	defer func() { <-sem }()

	logger := telemetry.WithJob(s.logger, resultName)
	logger.Info("job started", "tasks", len(job.Tasks))

	res := &domain.RunResult{
		JobName:   resultName,
		Status:    domain.JobStatusSuccess,
		Outputs:   make(map[string]string),
		Matrix:    matrix,
		Tasks:     make([]domain.TaskResult, 0, len(job.Tasks)),
		StartedAt: time.Now(),
	}

	jobCtx := tmplCtx
	if len(matrix) > 0 {
		jobCtx = tmplCtx.WithMatrix(matrix)
	}

	failed := false
	cancelled := false

	for i := range job.Tasks {
		task := &job.Tasks[i]

		if failed || cancelled {
			res.Tasks = append(res.Tasks, domain.TaskResult{Name: task.Name, Executed: false})
			continue
		}

		tr, err := s.runTask(ctx, task, baseEnv, job.Env, jobCtx)
		if err != nil {
			// Единственная ошибка отсюда — отмена run.
			logger.Warn("task cancelled", "task", task.Name)
			tr.Executed = false
			res.Tasks = append(res.Tasks, tr)
			cancelled = true
			continue
		}

		res.Tasks = append(res.Tasks, tr)
		telemetry.ObserveTask(tr.ExitCode == 0)

		for k, v := range tr.Outputs {
			res.Outputs[k] = v
		}

		if tr.ExitCode != 0 {
			logger.Warn("task failed", "task", task.Name, "exit_code", tr.ExitCode, "error", tr.Error)
			if res.ExitCode == 0 {
				res.ExitCode = tr.ExitCode
			}
			if !task.ContinueOnError {
				failed = true
			}
		}
	}

	switch {
	case cancelled:
		res.Status = domain.JobStatusCancelled
	case failed:
		res.Status = domain.JobStatusFailure
	}
	res.FinishedAt = time.Now()

	logger.Info("job finished",
		"status", res.Status,
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration().Milliseconds(),
	)
	return res
}

// runTask выполняет один task через реестр executor'ов.
//
// Возвращает error только при отмене run; все остальные проблемы
// (таймаут, инфраструктурная ошибка, ненулевой код выхода)
// записываются в TaskResult и не покидают границы job.
func (s *Scheduler) runTask(ctx context.Context, task *domain.TaskDef,
	baseEnv, jobEnv map[string]string, tmplCtx *engine.Context) (domain.TaskResult, error) {

	tr := domain.TaskResult{Name: task.Name, Executed: true}

	env, err := s.taskEnv(task, baseEnv, jobEnv, tmplCtx)
	if err != nil {
		tr.ExitCode = -1
		tr.Error = err.Error()
		return tr, nil
	}

	exec, err := s.registry.Get(task.Uses)
	if err != nil {
		tr.ExitCode = -1
		tr.Error = err.Error()
		return tr, nil
	}

	taskCtx := ctx
	if task.TimeoutSec > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, time.Duration(task.TimeoutSec)*time.Second)
		defer cancel()
	}

	result, err := exec.Execute(taskCtx, &executor.Request{Task: *task, Env: env})
	if err != nil {
		if errors.Is(err, executor.ErrTaskCancelled) {
			tr.Error = err.Error()
			return tr, err
		}
		// Таймаут и инфраструктурные ошибки — провал task.
		tr.ExitCode = -1
		tr.Error = err.Error()
		return tr, nil
	}

	tr.ExitCode = result.ExitCode
	tr.Outputs = result.Outputs
	return tr, nil
}

// taskEnv собирает окружение task: env пайплайна, env job'а и env task
// (в порядке возрастания приоритета), затем рендерит шаблоны.
func (s *Scheduler) taskEnv(task *domain.TaskDef, baseEnv, jobEnv map[string]string,
	tmplCtx *engine.Context) (map[string]string, error) {

	merged := make(map[string]string, len(baseEnv)+len(jobEnv)+len(task.Env))
	for k, v := range baseEnv {
		merged[k] = v
	}
	for k, v := range jobEnv {
		merged[k] = v
	}
	for k, v := range task.Env {
		merged[k] = v
	}

	return engine.RenderEnv(merged, tmplCtx)
}
