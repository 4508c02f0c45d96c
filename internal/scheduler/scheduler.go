package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/executor"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// defaultWorkers — предел конкурентных jobs внутри волны.
const defaultWorkers = 4

// Scheduler выполняет план пайплайна.
//
// Scheduler:
//   - Выполняет волны строго последовательно
//   - Внутри волны запускает jobs конкурентно (ограничено Workers)
//   - Разворачивает matrix-jobs в независимые экземпляры
//   - Вычисляет условия запуска против снимка upstream-результатов
//   - Собирает терминальные RunResults в ResultSet
//
// Scheduler одноразовый в рамках run: каждый запуск пайплайна
// работает со свежим экземпляром и свежим ResultSet.
type Scheduler struct {
	registry *executor.Registry
	workers  int
	logger   *slog.Logger
}

// Config — конфигурация Scheduler.
type Config struct {
	// Registry — реестр executor'ов (опционально; если nil — NewRegistry()).
	Registry *executor.Registry

	// Workers — предел конкурентных jobs внутри волны (default: 4).
	Workers int

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	registry := cfg.Registry
	if registry == nil {
		registry = executor.NewRegistry()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		registry: registry,
		workers:  workers,
		logger:   logger,
	}
}

// Run выполняет пайплайн с переданными входными параметрами.
//
// Ошибка возвращается только для фатальных проблем плана
// (валидация, циклы, неизвестные зависимости, синтаксис условий) —
// в этом случае ни один task не запускался. Ошибки tasks
// не покидают границы job: downstream видит их только через
// RunResult и условие запуска.
func (s *Scheduler) Run(ctx context.Context, p *domain.Pipeline, inputs map[string]string) (*ResultSet, error) {
	if err := engine.Validate(p); err != nil {
		return nil, err
	}

	plan, err := engine.BuildPlan(p)
	if err != nil {
		return nil, err
	}

	resolved, err := engine.ResolveInputs(p, inputs)
	if err != nil {
		return nil, err
	}

	results := NewResultSet()
	tmplCtx := engine.NewContext(resolved)
	sem := make(chan struct{}, s.workers)

	for _, wave := range plan.Waves {
		// Отмена между волнами: всё незапущенное получает CANCELLED.
		if ctx.Err() != nil {
			s.cancelFrom(plan, wave, results)
			return results, nil
		}

		var wg sync.WaitGroup
		for _, node := range wave {
			wg.Add(1)
			go func(node *engine.Node) {
				defer wg.Done()
				s.runNode(ctx, node, p.Env, resolved, tmplCtx, results, sem)
			}(node)
		}
		wg.Wait()

		// Снимок для следующей волны: outputs передаются копией.
		for _, node := range wave {
			if res, ok := results.Get(node.Name); ok {
				tmplCtx.AddJobResult(node.Name, res.CopyOutputs(), string(res.Status))
			}
		}
	}

	return results, nil
}

// runNode выполняет один узел плана: решает skip/run,
// разворачивает matrix и агрегирует результат.
func (s *Scheduler) runNode(ctx context.Context, node *engine.Node, baseEnv, inputs map[string]string,
	tmplCtx *engine.Context, results *ResultSet, sem chan struct{}) {

	job := node.Job
	logger := telemetry.WithJob(s.logger, job.Name)

	if skip, reason := s.shouldSkip(node, inputs, results); skip {
		logger.Info("job skipped", "reason", reason)
		results.Add(skippedResult(job.Name))
		telemetry.ObserveJob(string(domain.JobStatusSkipped), 0)
		return
	}

	if !job.HasMatrix() {
		res := s.runJob(ctx, job, job.Name, nil, tmplCtx, baseEnv, sem)
		results.Add(res)
		telemetry.ObserveJob(string(res.Status), res.Duration())
		return
	}

	// Matrix fan-out: все экземпляры конкурентно, fail_fast=false —
	// падение одного не отменяет соседей.
	instances := make([]*domain.RunResult, len(job.Matrix))
	var wg sync.WaitGroup
	for i, params := range job.Matrix {
		wg.Add(1)
		go func(i int, params map[string]string) {
			defer wg.Done()
			res := s.runJob(ctx, job, InstanceName(job.Name, i), params, tmplCtx, baseEnv, sem)
			instances[i] = res
		}(i, params)
	}
	wg.Wait()

	for _, res := range instances {
		results.Add(res)
		telemetry.ObserveJob(string(res.Status), res.Duration())
	}
	results.Add(aggregateMatrix(job.Name, instances))
}

// shouldSkip решает, выполнять ли job.
//
// AlwaysRun обходит и условие, и статусы зависимостей (но не порядок
// волн: терминальные результаты зависимостей уже есть). Без условия
// job выполняется, только если все зависимости в SUCCESS. Явное
// условие вычисляется против снимка результатов зависимостей;
// ссылки на отсутствующие outputs дают false, а не ошибку.
func (s *Scheduler) shouldSkip(node *engine.Node, inputs map[string]string, results *ResultSet) (bool, string) {
	job := node.Job

	if job.AlwaysRun {
		return false, ""
	}

	if job.Condition == "" {
		for _, dep := range node.DependsOn {
			res, ok := results.Get(dep.Name)
			if !ok || res.Status != domain.JobStatusSuccess {
				return true, "dependency " + dep.Name + " did not succeed"
			}
		}
		return false, ""
	}

	scope := engine.NewScope(inputs)
	for _, dep := range node.DependsOn {
		if res, ok := results.Get(dep.Name); ok {
			scope.AddResult(res)
		}
	}

	// Синтаксис проверен на этапе плана; здесь ошибок не бывает.
	ok, err := engine.EvalCondition(job.Condition, scope)
	if err != nil {
		s.logger.Error("condition evaluation failed", "job", job.Name, "error", err)
		return true, "condition error"
	}
	if !ok {
		return true, "condition is false"
	}
	return false, ""
}

// cancelFrom помечает job'ы текущей и всех последующих волн как CANCELLED.
// Уже завершённые результаты сохраняются.
func (s *Scheduler) cancelFrom(plan *engine.Plan, wave []*engine.Node, results *ResultSet) {
	reached := false
	for _, w := range plan.Waves {
		if !reached {
			if len(w) > 0 && len(wave) > 0 && w[0] == wave[0] {
				reached = true
			} else {
				continue
			}
		}
		for _, node := range w {
			if _, ok := results.Get(node.Name); !ok {
				results.Add(cancelledResult(node.Name))
				telemetry.ObserveJob(string(domain.JobStatusCancelled), 0)
			}
		}
	}
}

// skippedResult создаёт терминальный результат пропущенного job.
// Downstream получает пустые outputs.
func skippedResult(name string) *domain.RunResult {
	now := time.Now()
	return &domain.RunResult{
		JobName:    name,
		Status:     domain.JobStatusSkipped,
		ExitCode:   0,
		Outputs:    map[string]string{},
		StartedAt:  now,
		FinishedAt: now,
	}
}

// cancelledResult создаёт терминальный результат отменённого job.
func cancelledResult(name string) *domain.RunResult {
	now := time.Now()
	return &domain.RunResult{
		JobName:    name,
		Status:     domain.JobStatusCancelled,
		Outputs:    map[string]string{},
		StartedAt:  now,
		FinishedAt: now,
	}
}

// aggregateMatrix сводит результаты экземпляров в общий результат job.
// fail_fast=false: статус FAILURE, если упал хотя бы один экземпляр.
func aggregateMatrix(name string, instances []*domain.RunResult) *domain.RunResult {
	agg := &domain.RunResult{
		JobName: name,
		Status:  domain.JobStatusSuccess,
		Outputs: make(map[string]string),
	}

	for i, res := range instances {
		if i == 0 || res.StartedAt.Before(agg.StartedAt) {
			agg.StartedAt = res.StartedAt
		}
		if res.FinishedAt.After(agg.FinishedAt) {
			agg.FinishedAt = res.FinishedAt
		}

		switch res.Status {
		case domain.JobStatusFailure:
			agg.Status = domain.JobStatusFailure
		case domain.JobStatusCancelled:
			if agg.Status != domain.JobStatusFailure {
				agg.Status = domain.JobStatusCancelled
			}
		}

		if res.ExitCode != 0 && agg.ExitCode == 0 {
			agg.ExitCode = res.ExitCode
		}

		// Outputs экземпляров сливаются в порядке объявления.
		for k, v := range res.Outputs {
			agg.Outputs[k] = v
		}
	}

	return agg
}
