package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Planflow/internal/domain"
)

// Ошибки шагов.
var (
	// ErrUnknownStep — имя шага не найдено в каталоге конвейера.
	ErrUnknownStep = errors.New("unknown step")

	// ErrRecoverable — временный сбой зависимости; шаг можно повторить.
	ErrRecoverable = errors.New("recoverable step failure")

	// ErrFatal — нарушение целостности; прогон останавливается немедленно.
	ErrFatal = errors.New("fatal step failure")
)

// Recoverable помечает ошибку как временную (подлежит retry с backoff).
func Recoverable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRecoverable, fmt.Sprintf(format, args...))
}

// Fatal помечает ошибку как фатальную (останавливает прогон).
func Fatal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrFatal, fmt.Sprintf(format, args...))
}

// IsRecoverable проверяет, является ли ошибка временной.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrRecoverable)
}

// Outcome — исход успешного вызова тела шага.
//
// Сбои (recoverable/fatal) возвращаются через error; Discard — не ошибка,
// а бизнес-решение о досрочном завершении тратамента плана.
type Outcome string

const (
	// OutcomeSuccess — шаг применён.
	OutcomeSuccess Outcome = "SUCCESS"

	// OutcomeDiscard — план отбракован; оставшиеся под-этапы пропускаются.
	OutcomeDiscard Outcome = "DISCARD"
)

// PlanAccess — доступ тела шага к коллекции планов.
//
// Реализуется хранилищем; внутри стража все вызовы идут в рамках одной
// транзакции (через контекст), так что мутации шага и маркер идемпотентности
// фиксируются одним durable-юнитом.
type PlanAccess interface {
	// GetByNumber возвращает план по бизнес-номеру (nil, если не найден).
	GetByNumber(ctx context.Context, number string) (*domain.Plan, error)

	// Insert создаёт новый план.
	Insert(ctx context.Context, plan *domain.Plan) error

	// Update сохраняет мутации плана.
	Update(ctx context.Context, plan *domain.Plan) error

	// ListByStatus возвращает планы с указанным статусом в порядке создания.
	ListByStatus(ctx context.Context, status domain.PlanStatus) ([]domain.Plan, error)
}

// Request — входные данные вызова шага.
type Request struct {
	// Plan — обрабатываемый план. nil для пакетных шагов захвата.
	Plan *domain.Plan

	// Plans — доступ к коллекции планов (tx-scoped).
	Plans PlanAccess

	// Logger — логгер с контекстом конвейера.
	Logger *slog.Logger
}

// Result — результат вызова шага.
type Result struct {
	// Outcome — исход применения.
	Outcome Outcome

	// Message — сообщение для события аудита.
	Message string

	// Processed — затронуто планов (пакетные шаги).
	Processed int

	// Discarded — отбраковано планов (пакетные шаги).
	Discarded int
}

// Success возвращает успешный результат с сообщением.
func Success(format string, args ...any) *Result {
	return &Result{Outcome: OutcomeSuccess, Message: fmt.Sprintf(format, args...)}
}

// Discard возвращает результат-отбраковку с причиной.
func Discard(reason string) *Result {
	return &Result{Outcome: OutcomeDiscard, Message: reason}
}

// Handler — единый контракт тела шага.
//
// Тело не знает о состоянии прогона и очереди: оно получает план (или
// коллекцию) и возвращает исход. Классификация сбоев — через ошибки
// Recoverable/Fatal; проверка ctx.Done() обязательна для длительных тел.
type Handler interface {
	// Name возвращает имя шага в каталоге.
	Name() string

	// Execute выполняет шаг.
	Execute(ctx context.Context, req *Request) (*Result, error)
}
