// Package api реализует HTTP API server.
//
// Маршруты:
//   - POST /api/v1/runs              — запустить пайплайн (YAML в теле запроса)
//   - GET  /api/v1/runs              — список runs
//   - GET  /api/v1/runs/{id}         — run со сводкой
//   - GET  /api/v1/runs/{id}/results — терминальные результаты jobs
//   - POST /api/v1/runs/{id}/cancel  — отменить run
//
// Все ответы в формате JSON: {"data": ...} или {"error": {...}}.
package api
