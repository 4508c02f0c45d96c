// Package runner управляет выполнением runs на server.
//
// Runner принимает запросы через API и очередь runs.requested,
// выполняет пайплайн через scheduler, сохраняет результаты в БД
// и публикует событие run.completed с итоговой сводкой.
//
// Отмена: каждый активный run держит собственную функцию отмены;
// Cancel прерывает конкретный run, Stop — все сразу.
package runner
