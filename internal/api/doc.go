// Package api реализует HTTP API для управления конвейерами.
//
// Структура:
//   - handler.go  — главный Handler с зависимостями
//   - routes.go   — регистрация маршрутов
//   - middleware.go — logging и recovery middleware
//   - response.go — хелперы для JSON ответов и ошибок
//   - dto.go      — структуры запросов/ответов
//   - *_handler.go — обработчики по ресурсам
package api
