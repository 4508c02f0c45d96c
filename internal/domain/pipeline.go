package domain

// Pipeline — определение пайплайна.
//
// Pipeline — это декларативное описание того, что нужно выполнить:
// набор jobs с зависимостями, условиями запуска и matrix-расширением.
// Формат файла — YAML; парсинг выполняет engine.ParsePipeline.
type Pipeline struct {
	// Version — версия формата определения (для обратной совместимости).
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Name — имя пайплайна (например, "security-gate", "release-sign").
	Name string `yaml:"name" json:"name"`

	// Description — описание назначения пайплайна.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Inputs — входные параметры пайплайна.
	// Ключ — имя параметра, значение — его определение.
	Inputs map[string]InputDef `yaml:"inputs,omitempty" json:"inputs,omitempty"`

	// Env — переменные окружения по умолчанию для всех tasks.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// FailureCodes — коды выхода, которые считаются провалом гейта.
	// Пустой список означает значение по умолчанию: {1}.
	// Любой код из списка у любого job приводит к Summary со статусом FAILED.
	FailureCodes []int `yaml:"failure_codes,omitempty" json:"failure_codes,omitempty"`

	// Jobs — список jobs для выполнения. Порядок объявления используется
	// как tie-break при детерминированной сортировке внутри волны.
	Jobs []JobDef `yaml:"jobs" json:"jobs"`
}

// InputDef — определение входного параметра.
type InputDef struct {
	// Type — тип параметра: "string", "number", "boolean".
	Type string `yaml:"type" json:"type"`

	// Required — обязательный ли параметр.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Default — значение по умолчанию.
	Default string `yaml:"default,omitempty" json:"default,omitempty"`

	// Description — описание параметра.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// JobDef — определение job в пайплайне.
type JobDef struct {
	// Name — уникальное имя job в рамках пайплайна.
	// Используется в depends_on и для ссылок на результаты.
	Name string `yaml:"name" json:"name"`

	// DependsOn — список имён jobs, от которых зависит этот job.
	// Job начнёт выполнение только после того, как все зависимости
	// получат терминальный RunResult (включая FAILURE и SKIPPED).
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Condition — условие выполнения (выражение гейта).
	// Например: "jobs.scan.exit_code == 0 && inputs.sign_prod == true"
	// Пустое условие означает "выполнять, если все зависимости успешны".
	Condition string `yaml:"condition,omitempty" json:"condition,omitempty"`

	// AlwaysRun — выполнять job независимо от статуса зависимостей
	// и без вычисления Condition. Используется для терминальных
	// jobs-репортёров, которые должны отработать при любом исходе.
	AlwaysRun bool `yaml:"always_run,omitempty" json:"always_run,omitempty"`

	// Matrix — наборы параметров для fan-out.
	// Job с matrix из N наборов разворачивается в N независимых
	// экземпляров с одинаковым списком tasks, но разными привязками.
	Matrix []map[string]string `yaml:"matrix,omitempty" json:"matrix,omitempty"`

	// Env — переменные окружения для всех tasks этого job.
	// Значения могут содержать шаблоны: {{ .Inputs.x }}, {{ .Jobs.a.Outputs.y }}.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// Tasks — упорядоченный список tasks. Выполняются строго последовательно;
	// падение task прерывает остаток списка, если не задан continue_on_error.
	Tasks []TaskDef `yaml:"tasks" json:"tasks"`
}

// TaskDef — определение task внутри job.
//
// Task — единица внешней работы: команда с окружением,
// кодом выхода и объявленными outputs.
type TaskDef struct {
	// Name — имя task (для логов и отчётов).
	Name string `yaml:"name" json:"name"`

	// Command — команда для выполнения.
	Command string `yaml:"command" json:"command"`

	// Env — переменные окружения task. Накладываются поверх env job'а.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// WorkingDir — рабочая директория команды.
	WorkingDir string `yaml:"working_dir,omitempty" json:"working_dir,omitempty"`

	// ContinueOnError — не прерывать job при ненулевом коде выхода.
	ContinueOnError bool `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`

	// TimeoutSec — таймаут выполнения в секундах. 0 — без таймаута.
	TimeoutSec int `yaml:"timeout_sec,omitempty" json:"timeout_sec,omitempty"`

	// Uses — тип executor'а: "command" (по умолчанию) или
	// зарегистрированный плагин.
	Uses string `yaml:"uses,omitempty" json:"uses,omitempty"`
}

// HasMatrix возвращает true, если job разворачивается в несколько экземпляров.
func (j *JobDef) HasMatrix() bool {
	return len(j.Matrix) > 0
}

// DefaultFailureCodes — коды выхода, считающиеся провалом гейта по умолчанию.
var DefaultFailureCodes = []int{1}

// EffectiveFailureCodes возвращает набор failure-кодов пайплайна.
func (p *Pipeline) EffectiveFailureCodes() map[int]bool {
	codes := p.FailureCodes
	if len(codes) == 0 {
		codes = DefaultFailureCodes
	}
	set := make(map[int]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

// JobByName возвращает определение job по имени.
func (p *Pipeline) JobByName(name string) *JobDef {
	for i := range p.Jobs {
		if p.Jobs[i].Name == name {
			return &p.Jobs[i]
		}
	}
	return nil
}
