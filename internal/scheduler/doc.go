// Package scheduler выполняет план пайплайна.
//
// Scheduler отвечает за:
//   - Последовательное выполнение волн плана
//   - Конкурентный запуск jobs внутри волны (bounded worker limit)
//   - Fan-out matrix-jobs в независимые экземпляры (fail_fast=false)
//   - Вычисление условий запуска против снимка upstream-результатов
//   - Сбор терминальных RunResults в единственном синхронизированном
//     разделяемом хранилище (ResultSet)
//
// Job никогда не стартует раньше, чем все его зависимости получат
// терминальный RunResult. Ошибки tasks не пересекают границы job.
package scheduler
