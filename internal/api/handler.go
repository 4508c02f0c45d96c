package api

import (
	"log/slog"

	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/runner"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runRepo    *repo.RunRepo
	resultRepo *repo.ResultRepo
	runner     *runner.Runner
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	RunRepo    *repo.RunRepo
	ResultRepo *repo.ResultRepo
	Runner     *runner.Runner
	Logger     *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		runRepo:    cfg.RunRepo,
		resultRepo: cfg.ResultRepo,
		runner:     cfg.Runner,
		logger:     cfg.Logger,
	}
}
