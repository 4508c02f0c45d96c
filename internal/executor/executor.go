package executor

import (
	"context"
	"errors"
	"fmt"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Ошибки выполнения tasks.
var (
	// ErrUnknownExecutor — тип executor'а не найден в реестре.
	ErrUnknownExecutor = errors.New("executor type not found")

	// ErrTaskTimeout — task превысил таймаут.
	ErrTaskTimeout = errors.New("task execution timeout")

	// ErrTaskCancelled — выполнение task отменено.
	ErrTaskCancelled = errors.New("task execution cancelled")
)

// Executor — интерфейс вызова внешней работы.
//
// Конкретный механизм (shell-команда, удалённый API, плагин) —
// внешний коллаборатор; ядро видит только окружение, код выхода
// и объявленные outputs.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// Request — входные данные для выполнения task.
type Request struct {
	// Task — определение task (команда, рабочая директория).
	// Его собственный env сюда не входит: executor получает
	// только готовое окружение в Env.
	Task domain.TaskDef

	// Env — итоговое окружение task (pipeline < job < task, после шаблонов).
	Env map[string]string
}

// Result — результат выполнения task.
//
// Ненулевой код выхода — это не error: инфраструктурные ошибки
// (команду не удалось запустить) возвращаются через error в Execute,
// логический провал — через ExitCode.
type Result struct {
	// ExitCode — код выхода. 0 — успех.
	ExitCode int

	// Outputs — объявленные task'ом пары ключ/значение.
	Outputs map[string]string

	// Log — хвост объединённого stdout/stderr (для отчётов).
	Log string
}

// Registry — реестр executor'ов по типу.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry создаёт реестр с executor'ами по умолчанию.
//
// Регистрирует: command. Пустой Uses в определении task
// означает command.
func NewRegistry() *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	r.Register("command", NewCommandExecutor())
	return r
}

// Register добавляет executor для типа.
func (r *Registry) Register(name string, executor Executor) {
	r.executors[name] = executor
}

// Get возвращает executor для типа task.
func (r *Registry) Get(uses string) (Executor, error) {
	if uses == "" {
		uses = "command"
	}
	executor, ok := r.executors[uses]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExecutor, uses)
	}
	return executor, nil
}
