package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/engine"
)

// NewPlanCmd создаёт команду вывода плана выполнения.
// Полезна для проверки порядка волн перед запуском.
func NewPlanCmd(outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "plan PIPELINE_FILE",
		Short: "Show execution plan (waves and dependencies)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			p, err := engine.LoadPipeline(args[0])
			if err != nil {
				return err
			}

			plan, err := engine.BuildPlan(p)
			if err != nil {
				return err
			}

			type planRow struct {
				Wave      int      `json:"wave"`
				Job       string   `json:"job"`
				DependsOn []string `json:"depends_on,omitempty"`
				Matrix    int      `json:"matrix,omitempty"`
			}

			headers := []string{"WAVE", "JOB", "DEPENDS_ON", "MATRIX"}
			var rows [][]string
			var jsonRows []planRow

			for w, wave := range plan.Waves {
				for _, node := range wave {
					matrix := len(node.Job.Matrix)
					rows = append(rows, []string{
						strconv.Itoa(w),
						node.Name,
						strings.Join(node.Job.DependsOn, ","),
						strconv.Itoa(matrix),
					})
					jsonRows = append(jsonRows, planRow{
						Wave:      w,
						Job:       node.Name,
						DependsOn: node.Job.DependsOn,
						Matrix:    matrix,
					})
				}
			}

			out.Print(headers, rows, jsonRows)
			return nil
		},
	}
}
