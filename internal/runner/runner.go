package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/scheduler"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// Runner управляет жизненным циклом runs на server.
//
// Runner:
//   - Принимает запросы на выполнение через API (Submit)
//   - Потребляет запросы из очереди runs.requested
//   - Выполняет пайплайн через Scheduler в отдельной горутине
//   - Сохраняет результаты и сводку в БД
//   - Публикует run.completed после завершения
//   - Отменяет активные runs по требованию (Cancel)
type Runner struct {
	runRepo    *repo.RunRepo
	resultRepo *repo.ResultRepo

	publisher *mq.Publisher
	conn      *mq.Connection

	sched *scheduler.Scheduler

	// Active runs — runID → cancel выполняющегося run
	active map[uuid.UUID]context.CancelFunc
	mu     sync.RWMutex

	consumer *mq.Consumer

	// Корневой контекст выполнения runs: живёт от Start до Stop,
	// не зависит от контекста HTTP-запроса или AMQP-доставки.
	runCtx context.Context

	logger *slog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Config — конфигурация Runner.
type Config struct {
	RunRepo    *repo.RunRepo
	ResultRepo *repo.ResultRepo

	Publisher *mq.Publisher
	Conn      *mq.Connection

	// Scheduler — исполнитель пайплайнов (опционально; если nil — New с дефолтами).
	Scheduler *scheduler.Scheduler

	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sched := cfg.Scheduler
	if sched == nil {
		sched = scheduler.New(scheduler.Config{Logger: logger})
	}

	return &Runner{
		runRepo:    cfg.RunRepo,
		resultRepo: cfg.ResultRepo,
		publisher:  cfg.Publisher,
		conn:       cfg.Conn,
		sched:      sched,
		active:     make(map[uuid.UUID]context.CancelFunc),
		logger:     logger,
	}
}

// Start запускает Runner: consumer очереди runs.requested.
func (r *Runner) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.runCtx = ctx

	r.consumer = mq.NewConsumer(r.conn, r.logger, mq.ConsumerConfig{
		Queue:    mq.QueueRunsRequested,
		Handler:  r.handleRunRequested,
		Prefetch: 4,
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error("run consumer error", "error", err)
		}
	}()

	r.logger.Info("runner started")
	return nil
}

// Stop останавливает Runner.
// Активные runs получают отмену контекста и завершаются со статусом CANCELLED.
func (r *Runner) Stop() {
	r.logger.Info("stopping runner...")

	if r.cancel != nil {
		r.cancel()
	}
	if r.consumer != nil {
		r.consumer.Stop()
	}

	r.wg.Wait()

	r.logger.Info("runner stopped", "active_runs", r.ActiveCount())
}

// Submit валидирует пайплайн, создаёт run в БД и публикует
// запрос на выполнение в очередь.
func (r *Runner) Submit(ctx context.Context, source []byte, inputs map[string]string) (*domain.Run, error) {
	p, err := engine.ParsePipeline(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPipeline, err)
	}

	if _, err := engine.BuildPlan(p); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPipeline, err)
	}
	if _, err := engine.ResolveInputs(p, inputs); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPipeline, err)
	}

	run := domain.NewRun(p.Name, inputs)
	if err := r.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	payload := mq.RunRequestedPayload{
		RunID:  run.ID,
		Source: string(source),
		Inputs: inputs,
	}
	if err := r.publisher.PublishRunRequested(ctx, payload); err != nil {
		return nil, fmt.Errorf("publish run request: %w", err)
	}

	r.logger.Info("run submitted", "run_id", run.ID, "pipeline", p.Name)
	return run, nil
}

// Cancel отменяет активный run.
func (r *Runner) Cancel(runID uuid.UUID) error {
	r.mu.RLock()
	cancel, ok := r.active[runID]
	r.mu.RUnlock()

	if !ok {
		return ErrRunNotActive
	}

	cancel()
	r.logger.Info("run cancellation requested", "run_id", runID)
	return nil
}

// ActiveCount возвращает количество выполняющихся runs.
func (r *Runner) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// handleRunRequested обрабатывает запрос на выполнение из очереди.
func (r *Runner) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil {
		r.logger.Error("failed to parse run.requested payload", "error", err)
		// Некорректный payload ретраить бессмысленно
		return delivery.Nack(false)
	}

	run, _, err := r.runRepo.GetByID(ctx, payload.RunID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			r.logger.Warn("run not found, dropping request", "run_id", payload.RunID)
			return delivery.Nack(false)
		}
		return fmt.Errorf("get run: %w", err)
	}

	if run.IsFinished() {
		r.logger.Debug("run already finished, skipping", "run_id", run.ID)
		return nil
	}

	p, err := engine.ParsePipeline([]byte(payload.Source))
	if err != nil {
		return r.failRun(ctx, run, fmt.Sprintf("invalid pipeline: %v", err))
	}

	return r.execute(run, p, payload.Inputs)
}

// execute выполняет run через Scheduler и финализирует его.
//
// Выполнение идёт на корневом контексте Runner с отдельной функцией
// отмены: Cancel и Stop отменяют run, а завершение AMQP-доставки — нет.
func (r *Runner) execute(run *domain.Run, p *domain.Pipeline, inputs map[string]string) error {
	runCtx, cancel := context.WithCancel(r.runCtx)

	r.mu.Lock()
	if _, exists := r.active[run.ID]; exists {
		r.mu.Unlock()
		cancel()
		return ErrRunAlreadyActive
	}
	r.active[run.ID] = cancel
	r.mu.Unlock()

	defer func() {
		cancel()
		r.mu.Lock()
		delete(r.active, run.ID)
		r.mu.Unlock()
	}()

	run.MarkRunning()
	if err := r.runRepo.UpdateStatus(runCtx, run); err != nil {
		return fmt.Errorf("update run to running: %w", err)
	}

	logger := telemetry.WithPipeline(telemetry.WithRunID(r.logger, run.ID.String()), p.Name)
	logger.Info("run started", "pipeline", p.Name, "jobs", len(p.Jobs))

	results, err := r.sched.Run(runCtx, p, inputs)
	if err != nil {
		// Фатальная ошибка плана: ни один task не запускался
		return r.failRun(context.Background(), run, err.Error())
	}

	// Финализация не должна зависеть от отменённого контекста run
	finCtx := context.Background()

	reporter := telemetry.NewReporter(telemetry.ReporterConfig{
		FailureCodes: p.EffectiveFailureCodes(),
		Emitter:      &mq.SummaryEmitter{Publisher: r.publisher},
		Logger:       logger,
	})
	summary := reporter.Report(finCtx, run, results.All(), runCtx.Err() != nil)

	switch summary.Status {
	case domain.RunStatusFailed:
		run.MarkFailed("pipeline failed")
	case domain.RunStatusCancelled:
		run.MarkCancelled()
	default:
		run.MarkSucceeded()
	}

	if err := r.resultRepo.InsertAll(finCtx, run.ID, summary.Results); err != nil {
		logger.Error("failed to persist job results", "error", err)
	}
	if err := r.runRepo.SetSummary(finCtx, run.ID, summary); err != nil {
		logger.Error("failed to persist summary", "error", err)
	}
	if err := r.runRepo.UpdateStatus(finCtx, run); err != nil {
		return fmt.Errorf("update run status: %w", err)
	}

	logger.Info("run finished",
		"status", run.Status,
		"duration", run.Duration(),
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
	)
	return nil
}

// failRun переводит run в FAILED с текстом ошибки.
func (r *Runner) failRun(ctx context.Context, run *domain.Run, errMsg string) error {
	run.MarkFailed(errMsg)

	if err := r.runRepo.UpdateStatus(ctx, run); err != nil {
		return fmt.Errorf("update run to failed: %w", err)
	}

	r.logger.Warn("run failed early", "run_id", run.ID, "error", errMsg)
	return nil
}
