package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func result(name string, status domain.JobStatus, exitCode int) domain.RunResult {
	now := time.Now()
	return domain.RunResult{
		JobName:    name,
		Status:     status,
		ExitCode:   exitCode,
		StartedAt:  now,
		FinishedAt: now.Add(50 * time.Millisecond),
	}
}

func TestSummarize_AllSucceeded(t *testing.T) {
	r := NewReporter(ReporterConfig{Logger: discardLogger()})
	run := domain.NewRun("release", nil)

	s := r.Summarize(run, []domain.RunResult{
		result("build", domain.JobStatusSuccess, 0),
		result("test", domain.JobStatusSuccess, 0),
		result("cleanup", domain.JobStatusSkipped, 0),
	}, false)

	if s.Status != domain.RunStatusSucceeded {
		t.Errorf("status = %s, want SUCCEEDED", s.Status)
	}
	if s.TotalJobs != 3 || s.Succeeded != 2 || s.Skipped != 1 {
		t.Errorf("counts: total=%d succeeded=%d skipped=%d", s.TotalJobs, s.Succeeded, s.Skipped)
	}
	if len(s.GateCodes) != 0 {
		t.Errorf("unexpected gate codes: %v", s.GateCodes)
	}
}

func TestSummarize_FailureWins(t *testing.T) {
	r := NewReporter(ReporterConfig{Logger: discardLogger()})
	run := domain.NewRun("release", nil)

	// FAILED важнее CANCELLED, даже если run был отменён
	s := r.Summarize(run, []domain.RunResult{
		result("build", domain.JobStatusFailure, 1),
		result("test", domain.JobStatusCancelled, 0),
	}, true)

	if s.Status != domain.RunStatusFailed {
		t.Errorf("status = %s, want FAILED", s.Status)
	}
	if s.Failed != 1 || s.Cancelled != 1 {
		t.Errorf("counts: failed=%d cancelled=%d", s.Failed, s.Cancelled)
	}
}

func TestSummarize_CancelledWithoutFailure(t *testing.T) {
	r := NewReporter(ReporterConfig{Logger: discardLogger()})
	run := domain.NewRun("release", nil)

	s := r.Summarize(run, []domain.RunResult{
		result("build", domain.JobStatusSuccess, 0),
		result("test", domain.JobStatusCancelled, 0),
	}, false)

	if s.Status != domain.RunStatusCancelled {
		t.Errorf("status = %s, want CANCELLED", s.Status)
	}
}

func TestSummarize_GateCodes(t *testing.T) {
	// Код 99 — провал гейта, код 1 — нет (переопределён набор)
	r := NewReporter(ReporterConfig{
		FailureCodes: map[int]bool{99: true},
		Logger:       discardLogger(),
	})
	run := domain.NewRun("compliance", nil)

	s := r.Summarize(run, []domain.RunResult{
		result("scan", domain.JobStatusSuccess, 1),
		result("gate", domain.JobStatusSuccess, 99),
	}, false)

	if s.Status != domain.RunStatusFailed {
		t.Errorf("status = %s, want FAILED", s.Status)
	}
	if len(s.GateCodes) != 1 || s.GateCodes[0] != "gate" {
		t.Errorf("gate codes = %v, want [gate]", s.GateCodes)
	}
}

func TestSummarize_MatrixAggregateNotCounted(t *testing.T) {
	r := NewReporter(ReporterConfig{Logger: discardLogger()})
	run := domain.NewRun("matrix", nil)

	// Matrix-job из двух экземпляров: родительская запись "build"
	// производна и не должна удваивать счётчики и gate codes
	s := r.Summarize(run, []domain.RunResult{
		result("scan", domain.JobStatusSuccess, 0),
		result("build[0]", domain.JobStatusSuccess, 0),
		result("build[1]", domain.JobStatusFailure, 1),
		result("build", domain.JobStatusFailure, 1),
	}, false)

	if s.Status != domain.RunStatusFailed {
		t.Errorf("status = %s, want FAILED", s.Status)
	}
	if s.TotalJobs != 3 || s.Succeeded != 2 || s.Failed != 1 {
		t.Errorf("counts: total=%d succeeded=%d failed=%d", s.TotalJobs, s.Succeeded, s.Failed)
	}
	if len(s.GateCodes) != 1 || s.GateCodes[0] != "build[1]" {
		t.Errorf("gate codes = %v, want [build[1]]", s.GateCodes)
	}

	// Родительская запись остаётся в Results для отчётов
	if len(s.Results) != 4 {
		t.Errorf("results should keep the aggregate record, got %d", len(s.Results))
	}
}

func TestSummarize_SkippedExitCodeIgnored(t *testing.T) {
	r := NewReporter(ReporterConfig{
		FailureCodes: map[int]bool{0: true},
		Logger:       discardLogger(),
	})
	run := domain.NewRun("p", nil)

	// Нулевой код пропущенного job не проверяется против failure-набора
	s := r.Summarize(run, []domain.RunResult{
		result("skipped", domain.JobStatusSkipped, 0),
	}, false)

	if len(s.GateCodes) != 0 {
		t.Errorf("skipped job must not trigger gate codes: %v", s.GateCodes)
	}
}

// failingEmitter всегда возвращает ошибку.
type failingEmitter struct {
	calls int
}

func (e *failingEmitter) Emit(context.Context, *domain.Summary) error {
	e.calls++
	return errors.New("broker unavailable")
}

func TestReport_EmitFailureIsWarning(t *testing.T) {
	emitter := &failingEmitter{}
	r := NewReporter(ReporterConfig{
		Emitter: emitter,
		Logger:  discardLogger(),
	})
	run := domain.NewRun("p", nil)

	s := r.Report(context.Background(), run, []domain.RunResult{
		result("build", domain.JobStatusSuccess, 0),
	}, false)

	// Ошибка эмиссии не меняет статус и не повторяется
	if s.Status != domain.RunStatusSucceeded {
		t.Errorf("status = %s", s.Status)
	}
	if emitter.calls != 1 {
		t.Errorf("emit should be attempted exactly once, got %d", emitter.calls)
	}
}

func TestRenderMarkdown(t *testing.T) {
	r := NewReporter(ReporterConfig{Logger: discardLogger()})
	run := domain.NewRun("release", nil)

	s := r.Summarize(run, []domain.RunResult{
		result("build", domain.JobStatusSuccess, 0),
		result("gate", domain.JobStatusFailure, 1),
	}, false)

	md := RenderMarkdown(s)

	for _, want := range []string{"## Pipeline release", "|build|SUCCESS|0|", "|gate|FAILURE|1|", "Gate check failed for: gate"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestReport_SummaryFile(t *testing.T) {
	path := t.TempDir() + "/summary.md"
	t.Setenv("SUMMARY_FILE", path)

	r := NewReporter(ReporterConfig{Logger: discardLogger()})
	run := domain.NewRun("release", nil)

	r.Report(context.Background(), run, []domain.RunResult{
		result("build", domain.JobStatusSuccess, 0),
	}, false)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("summary file not written: %v", err)
	}
	if !strings.Contains(string(data), "## Pipeline release") {
		t.Errorf("unexpected summary content:\n%s", data)
	}
}
