// Package cli реализует инструмент командной строки Planflow.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Planflow API.
// Работает через HTTP, не импортирует внутренние пакеты демона.
// Используется для управления конвейерами, очередью и просмотра
// планов и событий аудита.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Planflow API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	summary, err := client.Summary()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: planflow plan list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - pipeline: start, pause, resume, status, steps
//   - queue: show, migrate
//   - plan: list, show
//   - event: list
//   - status
//
// Каждая группа создаётся через фабричную функцию (NewPipelineCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
