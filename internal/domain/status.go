package domain

// RunStatus — статус выполнения пайплайна целиком.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	          (или) → CANCELLED (из PENDING или RUNNING)
type RunStatus string

const (
	// RunStatusPending — run создан, но ещё не начал выполняться.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все jobs завершены, гейт пройден.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — хотя бы один job упал или сработал failure-код.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusCancelled — run отменён внешним сигналом.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// JobStatus — терминальный статус job (или matrix-экземпляра).
//
// Каждый job заканчивает ровно в одном из четырёх статусов;
// промежуточных состояний в RunResult не бывает.
type JobStatus string

const (
	// JobStatusSuccess — все tasks job завершились успешно.
	JobStatusSuccess JobStatus = "SUCCESS"

	// JobStatusFailure — task вернул ненулевой код без continue_on_error,
	// либо упал хотя бы один matrix-экземпляр.
	JobStatusFailure JobStatus = "FAILURE"

	// JobStatusSkipped — условие запуска job не выполнилось;
	// tasks не выполнялись, downstream видит пустые outputs.
	JobStatusSkipped JobStatus = "SKIPPED"

	// JobStatusCancelled — выполнение прервано отменой run.
	JobStatusCancelled JobStatus = "CANCELLED"
)
