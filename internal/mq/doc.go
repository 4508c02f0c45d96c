// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.requested — запрос на выполнение пайплайна (потребляет server)
//   - run.completed — run завершён, в payload итоговая сводка
//
// Exchanges:
//   - conveyor.runs — события runs
//   - conveyor.dlq  — dead letter queue
package mq
