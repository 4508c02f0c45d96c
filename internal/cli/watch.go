package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/schedule"
)

// NewWatchCmd создаёт команду периодического выполнения пайплайна
// по cron-выражению или фиксированному интервалу.
func NewWatchCmd(outputFn func() *Output) *cobra.Command {
	var inputs []string
	var workers int
	var cronExpr string
	var everySec int
	var timezone string

	cmd := &cobra.Command{
		Use:   "watch PIPELINE_FILE",
		Short: "Execute a pipeline on a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			if cronExpr == "" && everySec <= 0 {
				return fmt.Errorf("either --cron or --every is required")
			}
			if cronExpr != "" {
				if err := schedule.ValidateCronExpr(cronExpr); err != nil {
					return err
				}
			}

			inputMap, err := parseInputs(inputs)
			if err != nil {
				return err
			}

			spec := &schedule.Spec{
				CronExpr:    cronExpr,
				IntervalSec: everySec,
				Timezone:    timezone,
			}

			return watchLoop(cmd.Context(), out, args[0], inputMap, workers, spec)
		},
	}

	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent jobs per wave (default 4)")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (5 fields)")
	cmd.Flags().IntVar(&everySec, "every", 0, "Interval in seconds between runs")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Timezone for cron evaluation (default UTC)")

	return cmd
}

// watchLoop выполняет пайплайн по расписанию до отмены контекста.
// Провал одного запуска не останавливает цикл.
func watchLoop(ctx context.Context, out *Output, path string, inputs map[string]string, workers int, spec *schedule.Spec) error {
	for {
		next, err := schedule.NextDue(spec, time.Now())
		if err != nil {
			return err
		}

		out.Success(fmt.Sprintf("next run at %s", next.Format(time.RFC3339)))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		summary, err := executePipeline(ctx, path, inputs, workers)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			out.Error(err.Error())
			continue
		}

		printSummary(out, summary)
	}
}
