package engine

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conveyor/internal/domain"
)

// ParsePipeline парсит определение пайплайна из YAML и валидирует его.
func ParsePipeline(data []byte) (*domain.Pipeline, error) {
	var p domain.Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pipeline: %w", err)
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}

	return &p, nil
}

// LoadPipeline читает и парсит определение пайплайна из файла.
func LoadPipeline(path string) (*domain.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	return ParsePipeline(data)
}

// Validate выполняет полную валидацию Pipeline.
//
// Проверяет:
// - Наличие jobs
// - Уникальность имён jobs
// - Наличие tasks и команд
// - Валидность зависимостей (depends_on, включая self-dependency)
// - Синтаксис условий запуска
// - Непустоту matrix-наборов
//
// Циклы находит BuildPlan; обе проверки происходят до запуска tasks.
func Validate(p *domain.Pipeline) error {
	if p == nil || len(p.Jobs) == 0 {
		return ErrEmptyJobs
	}

	names := make(map[string]bool, len(p.Jobs))

	for i := range p.Jobs {
		job := &p.Jobs[i]

		if err := validateJob(job, names); err != nil {
			return err
		}
	}

	// Зависимости проверяем после сбора всех имён:
	// ссылаться вперёд по списку — допустимо.
	for i := range p.Jobs {
		job := &p.Jobs[i]
		for _, dep := range job.DependsOn {
			if !names[dep] {
				return NewValidationError(job.Name, "depends_on",
					fmt.Sprintf("depends on unknown job: %s", dep), ErrUnknownDependency)
			}
		}
	}

	return nil
}

// validateJob валидирует один job.
// names — уже встреченные имена jobs (для проверки уникальности).
func validateJob(job *domain.JobDef, names map[string]bool) error {
	if job.Name == "" {
		return NewValidationError("", "name", "job has empty name", ErrEmptyJobName)
	}

	if names[job.Name] {
		return NewValidationError(job.Name, "name",
			fmt.Sprintf("duplicate job name: %s", job.Name), ErrDuplicateJobName)
	}
	names[job.Name] = true

	for _, dep := range job.DependsOn {
		if dep == job.Name {
			return NewValidationError(job.Name, "depends_on",
				"job depends on itself", ErrSelfDependency)
		}
	}

	if len(job.Tasks) == 0 {
		return NewValidationError(job.Name, "tasks", "job has no tasks", ErrEmptyTasks)
	}

	for j := range job.Tasks {
		task := &job.Tasks[j]
		if task.Command == "" {
			return NewValidationError(job.Name, "tasks",
				fmt.Sprintf("task %q has empty command", task.Name), ErrEmptyCommand)
		}
	}

	for j, entry := range job.Matrix {
		if len(entry) == 0 {
			return NewValidationError(job.Name, "matrix",
				fmt.Sprintf("matrix entry %d has no parameters", j), ErrEmptyMatrixEntry)
		}
	}

	// Условие компилируется здесь же: синтаксическая ошибка
	// должна всплыть до запуска первого task.
	if _, err := ParseCondition(job.Condition); err != nil {
		return NewValidationError(job.Name, "condition", err.Error(), ErrConditionSyntax)
	}

	return nil
}

// ResolveInputs сводит переданные входные параметры с определениями
// пайплайна: подставляет значения по умолчанию и проверяет
// обязательные параметры.
func ResolveInputs(p *domain.Pipeline, provided map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(p.Inputs))

	for name, def := range p.Inputs {
		if v, ok := provided[name]; ok {
			resolved[name] = v
			continue
		}
		if def.Default != "" {
			resolved[name] = def.Default
			continue
		}
		if def.Required {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, name)
		}
	}

	// Неописанные параметры пропускаем как есть: триггер может
	// передавать opaque-значения, которые читают только условия.
	for name, v := range provided {
		if _, ok := resolved[name]; !ok {
			resolved[name] = v
		}
	}

	return resolved, nil
}
