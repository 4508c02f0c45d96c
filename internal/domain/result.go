package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskResult — результат выполнения одного task.
//
// Заполняется ровно один раз при завершении task;
// после этого не изменяется.
type TaskResult struct {
	// Name — имя task из определения.
	Name string `json:"name"`

	// ExitCode — код выхода команды. 0 — успех.
	ExitCode int `json:"exit_code"`

	// Outputs — объявленные task'ом пары ключ/значение.
	Outputs map[string]string `json:"outputs,omitempty"`

	// Error — текст ошибки выполнения (инфраструктурной или по коду выхода).
	Error string `json:"error,omitempty"`

	// Executed — false, если task не выполнялся
	// (остаток списка после упавшего task).
	Executed bool `json:"executed"`
}

// RunResult — терминальный результат job или matrix-экземпляра.
//
// Создаётся один раз при завершении и после этого только читается.
// Downstream jobs видят его через снимок в условии запуска.
type RunResult struct {
	// JobName — имя job. Для matrix-экземпляра: "name[i]".
	JobName string `json:"job_name"`

	// Status — терминальный статус.
	Status JobStatus `json:"status"`

	// ExitCode — итоговый код выхода job:
	// код первого упавшего task, иначе 0.
	ExitCode int `json:"exit_code"`

	// Outputs — объединённые outputs всех tasks job.
	// Передаются downstream по значению (копией), не по ссылке.
	Outputs map[string]string `json:"outputs,omitempty"`

	// Tasks — результаты отдельных tasks в порядке объявления.
	Tasks []TaskResult `json:"tasks,omitempty"`

	// Matrix — привязки параметров экземпляра (пусто для обычного job).
	Matrix map[string]string `json:"matrix,omitempty"`

	// StartedAt — время начала выполнения job.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt — время завершения.
	FinishedAt time.Time `json:"finished_at"`
}

// Duration возвращает продолжительность выполнения job.
func (r *RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// InstanceParent возвращает имя родительского job для matrix-экземпляра
// "name[i]" и пустую строку для обычного результата.
func (r *RunResult) InstanceParent() string {
	if i := strings.IndexByte(r.JobName, '['); i > 0 {
		return r.JobName[:i]
	}
	return ""
}

// CopyOutputs возвращает копию outputs.
// Результаты передаются между jobs только по значению.
func (r *RunResult) CopyOutputs() map[string]string {
	out := make(map[string]string, len(r.Outputs))
	for k, v := range r.Outputs {
		out[k] = v
	}
	return out
}

// Summary — итоговая сводка по всему run.
//
// Создаётся ровно один раз, после того как каждый job
// (включая skipped) получил терминальный RunResult. Неизменяема.
type Summary struct {
	// RunID — идентификатор run.
	RunID uuid.UUID `json:"run_id"`

	// Pipeline — имя пайплайна.
	Pipeline string `json:"pipeline"`

	// Status — итоговый статус: SUCCEEDED, FAILED или CANCELLED.
	Status RunStatus `json:"status"`

	// TotalJobs — количество выполненных единиц: обычные jobs и
	// matrix-экземпляры. Родительские записи matrix-jobs производны
	// от экземпляров и в счётчики не входят (но остаются в Results).
	TotalJobs int `json:"total_jobs"`

	// Succeeded — количество успешных jobs.
	Succeeded int `json:"succeeded"`

	// Failed — количество упавших jobs.
	Failed int `json:"failed"`

	// Skipped — количество пропущенных jobs.
	Skipped int `json:"skipped"`

	// Cancelled — количество отменённых jobs.
	Cancelled int `json:"cancelled"`

	// GateCodes — имена jobs, чей код выхода попал в failure-набор.
	GateCodes []string `json:"gate_codes,omitempty"`

	// Results — все терминальные результаты в детерминированном порядке.
	Results []RunResult `json:"results"`

	// CreatedAt — время формирования сводки.
	CreatedAt time.Time `json:"created_at"`
}
