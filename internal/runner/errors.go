package runner

import "errors"

// Ошибки runner.
var (
	// ErrRunNotActive — run не выполняется в данный момент.
	ErrRunNotActive = errors.New("run is not active")

	// ErrRunAlreadyActive — run уже выполняется.
	ErrRunAlreadyActive = errors.New("run is already active")

	// ErrInvalidPipeline — пайплайн не прошёл проверку плана
	// (парсинг, валидация, циклы, входные параметры).
	ErrInvalidPipeline = errors.New("invalid pipeline")
)
