// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий прогонов и запросов на запуск
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.requested     — запрос на запуск набора (consumer: probe-scheduler)
//   - run.finished      — итог прогона
//   - scenario.finished — итог сценария
//
// Exchanges:
//   - probe.runs   — запросы на запуск
//   - probe.events — события результатов (topic)
//   - probe.dlq    — dead letter queue
package mq
