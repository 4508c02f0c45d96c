package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/scheduler"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// NewRunCmd создаёт команду локального выполнения пайплайна.
func NewRunCmd(outputFn func() *Output) *cobra.Command {
	var inputs []string
	var workers int

	cmd := &cobra.Command{
		Use:   "run PIPELINE_FILE",
		Short: "Execute a pipeline locally",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			inputMap, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			summary, err := executePipeline(cmd.Context(), args[0], inputMap, workers)
			if err != nil {
				return err
			}

			printSummary(out, summary)

			if summary.Status != domain.RunStatusSucceeded {
				return fmt.Errorf("pipeline %s: %s", summary.Pipeline, summary.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent jobs per wave (default 4)")

	return cmd
}

// executePipeline выполняет пайплайн из файла и возвращает сводку.
func executePipeline(ctx context.Context, path string, inputs map[string]string, workers int) (*domain.Summary, error) {
	logger := slog.Default()

	p, err := engine.LoadPipeline(path)
	if err != nil {
		return nil, err
	}

	run := domain.NewRun(p.Name, inputs)
	run.MarkRunning()

	sched := scheduler.New(scheduler.Config{
		Workers: workers,
		Logger:  logger,
	})

	results, err := sched.Run(ctx, p, inputs)
	if err != nil {
		return nil, err
	}

	reporter := telemetry.NewReporter(telemetry.ReporterConfig{
		FailureCodes: p.EffectiveFailureCodes(),
		Logger:       logger,
	})

	// Эмиссия сводки не должна отменяться вместе с run
	summary := reporter.Report(context.Background(), run, results.All(), ctx.Err() != nil)

	switch summary.Status {
	case domain.RunStatusFailed:
		run.MarkFailed("pipeline failed")
	case domain.RunStatusCancelled:
		run.MarkCancelled()
	default:
		run.MarkSucceeded()
	}

	return summary, nil
}

// printSummary выводит сводку run: таблицу результатов и итог.
func printSummary(out *Output, s *domain.Summary) {
	headers := []string{"JOB", "STATUS", "EXIT", "DURATION"}
	rows := make([][]string, len(s.Results))
	for i, res := range s.Results {
		rows[i] = []string{
			res.JobName,
			string(res.Status),
			strconv.Itoa(res.ExitCode),
			res.Duration().Round(time.Millisecond).String(),
		}
	}

	out.Print(headers, rows, s)

	out.Success(fmt.Sprintf("%s: %s (%d succeeded, %d failed, %d skipped, %d cancelled)",
		s.Pipeline, s.Status, s.Succeeded, s.Failed, s.Skipped, s.Cancelled))

	if len(s.GateCodes) > 0 {
		out.Error("gate check failed for: " + strings.Join(s.GateCodes, ", "))
	}
}

// parseInputs разбирает флаги --input KEY=VALUE в map.
func parseInputs(inputs []string) (map[string]string, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	m := make(map[string]string, len(inputs))
	for _, kv := range inputs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		m[key] = value
	}
	return m, nil
}
