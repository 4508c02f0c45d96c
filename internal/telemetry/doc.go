// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go  — structured logging через slog
//   - metrics.go  — Prometheus метрики
//   - reporter.go — итоговая сводка run (Summary) и её эмиссия
//
// Все бинарники используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
