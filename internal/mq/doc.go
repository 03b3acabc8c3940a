// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий аудита во внешние системы
//
// Брокер опционален: при недоступном RabbitMQ система продолжает работать,
// события остаются доступными через БД и HTTP API.
//
// Exchanges:
//   - planflow.events — поток событий аудита (topic)
package mq
