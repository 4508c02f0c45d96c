package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Conveyor/internal/runner"
)

// CreateRun принимает пайплайн и запускает его выполнение.
// POST /api/v1/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Pipeline == "" {
		BadRequest(w, "pipeline is required")
		return
	}

	run, err := h.runner.Submit(r.Context(), []byte(req.Pipeline), req.Inputs)
	if err != nil {
		// Ошибки плана (валидация, циклы, входные параметры) — проблема запроса
		if errors.Is(err, runner.ErrInvalidPipeline) {
			BadRequest(w, err.Error())
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Created(w, RunFromDomain(*run, nil))
}

// ListRuns возвращает последние runs.
// GET /api/v1/runs?limit=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.runRepo.List(r.Context(), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run, nil)
	}

	List(w, result, len(result))
}

// GetRun возвращает run по ID вместе со сводкой (если run завершён).
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, summary, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run, summary))
}

// ListRunResults возвращает терминальные результаты jobs run.
// GET /api/v1/runs/{id}/results
func (h *Handler) ListRunResults(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	if _, _, err := h.runRepo.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	results, err := h.resultRepo.ListByRun(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ResultResponse, len(results))
	for i, res := range results {
		result[i] = ResultFromDomain(res)
	}

	List(w, result, len(result))
}

// CancelRun отменяет run.
// POST /api/v1/runs/{id}/cancel
//
// Активный run получает отмену контекста; run, который ещё не начал
// выполняться, помечается CANCELLED напрямую в БД.
func (h *Handler) CancelRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, _, err := h.runRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	if run.IsFinished() {
		InvalidState(w, "run is already finished")
		return
	}

	if err := h.runner.Cancel(id); err != nil {
		if !errors.Is(err, runner.ErrRunNotActive) {
			InternalError(w, h.logger, err)
			return
		}
		// Run ещё в PENDING — отменяем напрямую
		run.MarkCancelled()
		if err := h.runRepo.UpdateStatus(r.Context(), run); err != nil {
			InternalError(w, h.logger, err)
			return
		}
	}

	Success(w, RunFromDomain(*run, nil))
}
