package engine

import "errors"

// Ошибки валидации Pipeline.
var (
	// ErrEmptyJobs — пайплайн не содержит jobs.
	ErrEmptyJobs = errors.New("pipeline has no jobs")

	// ErrEmptyJobName — job не имеет имени.
	ErrEmptyJobName = errors.New("job has empty name")

	// ErrDuplicateJobName — несколько jobs с одинаковым именем.
	ErrDuplicateJobName = errors.New("duplicate job name")

	// ErrEmptyTasks — job не содержит tasks.
	ErrEmptyTasks = errors.New("job has no tasks")

	// ErrEmptyCommand — task не имеет команды.
	ErrEmptyCommand = errors.New("task has empty command")

	// ErrUnknownDependency — job зависит от несуществующего job.
	ErrUnknownDependency = errors.New("job depends on unknown job")

	// ErrSelfDependency — job зависит от самого себя.
	ErrSelfDependency = errors.New("job depends on itself")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrEmptyMatrixEntry — пустой набор параметров в matrix.
	ErrEmptyMatrixEntry = errors.New("matrix entry has no parameters")

	// ErrMissingInput — не передан обязательный входной параметр.
	ErrMissingInput = errors.New("required input missing")
)

// Ошибки условий запуска.
var (
	// ErrConditionSyntax — синтаксическая ошибка в выражении условия.
	ErrConditionSyntax = errors.New("condition syntax error")
)

// Ошибки рендеринга шаблонов.
var (
	// ErrTemplateParse — ошибка парсинга шаблона.
	ErrTemplateParse = errors.New("template parse failed")

	// ErrTemplateRender — ошибка рендеринга шаблона.
	ErrTemplateRender = errors.New("template render failed")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Job     string // имя job, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Job != "" {
		return "job " + e.Job + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(job, field, message string, err error) *ValidationError {
	return &ValidationError{
		Job:     job,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
