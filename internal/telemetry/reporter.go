package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// summaryFileEnv — переменная окружения с путём markdown-сводки.
// Аналог step-summary файла CI-систем; пустое значение отключает запись.
const summaryFileEnv = "SUMMARY_FILE"

// Emitter — приёмник итоговой сводки run.
//
// Реализации: LogEmitter (CLI), mq.Publisher через адаптер (server).
// Эмиссия выполняется ровно один раз, без повторных попыток.
type Emitter interface {
	Emit(ctx context.Context, summary *domain.Summary) error
}

// LogEmitter пишет сводку в лог.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit реализует Emitter.
func (e *LogEmitter) Emit(_ context.Context, s *domain.Summary) error {
	e.Logger.Info("run summary",
		"run_id", s.RunID,
		"pipeline", s.Pipeline,
		"status", s.Status,
		"total", s.TotalJobs,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"skipped", s.Skipped,
		"cancelled", s.Cancelled,
	)
	return nil
}

// Reporter собирает терминальные статусы всех jobs в одну сводку.
//
// Запускается ровно один раз, после того как каждый job (включая
// пропущенные) получил терминальный RunResult. Сводка неизменяема;
// ошибка эмиссии — warning, не провал пайплайна.
type Reporter struct {
	failureCodes map[int]bool
	emitter      Emitter
	logger       *slog.Logger
}

// ReporterConfig — конфигурация Reporter.
type ReporterConfig struct {
	// FailureCodes — коды выхода, приводящие к статусу FAILED.
	// Nil — значение по умолчанию пайплайна ({1}).
	FailureCodes map[int]bool

	// Emitter — приёмник сводки (опционально; если nil — LogEmitter).
	Emitter Emitter

	// Logger
	Logger *slog.Logger
}

// NewReporter создаёт новый Reporter.
func NewReporter(cfg ReporterConfig) *Reporter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	emitter := cfg.Emitter
	if emitter == nil {
		emitter = &LogEmitter{Logger: logger}
	}

	codes := cfg.FailureCodes
	if codes == nil {
		codes = map[int]bool{1: true}
	}

	return &Reporter{
		failureCodes: codes,
		emitter:      emitter,
		logger:       logger,
	}
}

// Summarize вычисляет итоговую сводку run.
//
// Итоговый статус:
//   - FAILED — хотя бы один непропущенный job в FAILURE, либо код
//     выхода любого job попал в failure-набор
//   - CANCELLED — run был отменён и провала нет
//   - SUCCEEDED — иначе
//
// Счётчики и гейт-проверка считают обычные jobs и matrix-экземпляры.
// Родительская запись matrix-job производна от экземпляров и
// пропускается, иначе каждый matrix-job учитывался бы дважды.
func (r *Reporter) Summarize(run *domain.Run, results []domain.RunResult, cancelled bool) *domain.Summary {
	s := &domain.Summary{
		RunID:     run.ID,
		Pipeline:  run.Pipeline,
		Results:   results,
		CreatedAt: time.Now(),
	}

	aggregates := make(map[string]bool)
	for i := range results {
		if parent := results[i].InstanceParent(); parent != "" {
			aggregates[parent] = true
		}
	}

	failed := false
	for _, res := range results {
		if aggregates[res.JobName] {
			continue
		}
		s.TotalJobs++

		switch res.Status {
		case domain.JobStatusSuccess:
			s.Succeeded++
		case domain.JobStatusFailure:
			s.Failed++
			failed = true
		case domain.JobStatusSkipped:
			s.Skipped++
		case domain.JobStatusCancelled:
			s.Cancelled++
			cancelled = true
		}

		if res.Status != domain.JobStatusSkipped && r.failureCodes[res.ExitCode] {
			s.GateCodes = append(s.GateCodes, res.JobName)
			failed = true
		}
	}

	switch {
	case failed:
		s.Status = domain.RunStatusFailed
	case cancelled:
		s.Status = domain.RunStatusCancelled
	default:
		s.Status = domain.RunStatusSucceeded
	}

	return s
}

// Report формирует сводку, учитывает метрики и эмитит её.
//
// Ошибка эмиссии логируется как warning и не меняет вычисленный
// статус: отчёт о результатах не должен ронять сам пайплайн.
func (r *Reporter) Report(ctx context.Context, run *domain.Run, results []domain.RunResult, cancelled bool) *domain.Summary {
	summary := r.Summarize(run, results, cancelled)

	ObserveRun(string(summary.Status))

	if err := r.emitter.Emit(ctx, summary); err != nil {
		r.logger.Warn("summary emission failed", "run_id", summary.RunID, "error", err)
	}

	if path := os.Getenv(summaryFileEnv); path != "" {
		if err := os.WriteFile(path, []byte(RenderMarkdown(summary)), 0o644); err != nil {
			r.logger.Warn("failed to write summary file", "path", path, "error", err)
		}
	}

	return summary
}

// RenderMarkdown рендерит сводку в markdown-таблицу
// (для step-summary файла CI-системы).
func RenderMarkdown(s *domain.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Pipeline %s — %s\n\n", s.Pipeline, s.Status)
	fmt.Fprintf(&b, "|Job|Status|Exit code|Duration|\n")
	fmt.Fprintf(&b, "| --- | --- | --- | --- |\n")
	for _, res := range s.Results {
		fmt.Fprintf(&b, "|%s|%s|%d|%s|\n",
			res.JobName, res.Status, res.ExitCode, res.Duration().Round(time.Millisecond))
	}

	if len(s.GateCodes) > 0 {
		fmt.Fprintf(&b, "\nGate check failed for: %s\n", strings.Join(s.GateCodes, ", "))
	}

	return b.String()
}
