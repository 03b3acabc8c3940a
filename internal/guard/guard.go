// Package guard оборачивает каждый вызов тела шага идемпотентностью
// и retry с экспоненциальным backoff.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/steps"
)

// ErrAlreadyApplied — шаг уже применён к сущности; вызов пропущен
// без побочных эффектов и без дублирующего события.
var ErrAlreadyApplied = errors.New("step already applied")

// Key — ключ идемпотентности логического применения (сущность, шаг).
type Key struct {
	// Scope — ID плана (тратамент) или токен прогона (захват).
	Scope string

	// Step — имя шага.
	Step string
}

// Atomic — граница durable-юнита: маркер и мутации сущности
// фиксируются одной транзакцией.
type Atomic interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Markers — хранилище маркеров идемпотентности.
type Markers interface {
	Applied(ctx context.Context, scope, step string) (bool, error)
	Insert(ctx context.Context, scope, step string) (bool, error)
}

// Guard — страж идемпотентности и повторных попыток.
type Guard struct {
	atomic  Atomic
	markers Markers
	policy  domain.RetryPolicy
	logger  *slog.Logger

	// sleep подменяется в тестах.
	sleep func(ctx context.Context, d time.Duration) error
}

// New создаёт Guard с указанной политикой retry.
func New(atomic Atomic, markers Markers, policy domain.RetryPolicy, logger *slog.Logger) *Guard {
	if policy.MaxAttempts <= 0 {
		policy = domain.DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		atomic:  atomic,
		markers: markers,
		policy:  policy,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Execute выполняет тело шага под стражей.
//
// Если маркер (scope, step) уже стоит — возвращает ErrAlreadyApplied,
// не вызывая тело: ни событий, ни побочных эффектов. Иначе тело
// выполняется в транзакции вместе со вставкой маркера; временные сбои
// повторяются до policy.MaxAttempts с backoff, каждая попытка — свежая
// транзакция. Исчерпание попыток возвращает последнюю ошибку, состояние
// сущности остаётся нетронутым (транзакция откатывается), так что
// повторная обработка позже возможна.
// Applied сообщает, применён ли уже шаг к сущности. Движок использует
// проверку, чтобы тихо пропустить шаг без события START.
func (g *Guard) Applied(ctx context.Context, key Key) (bool, error) {
	applied, err := g.markers.Applied(ctx, key.Scope, key.Step)
	if err != nil {
		return false, fmt.Errorf("check idempotency marker: %w", err)
	}
	return applied, nil
}

func (g *Guard) Execute(ctx context.Context, key Key, body func(ctx context.Context) (*steps.Result, error)) (*steps.Result, error) {
	applied, err := g.markers.Applied(ctx, key.Scope, key.Step)
	if err != nil {
		return nil, fmt.Errorf("check idempotency marker: %w", err)
	}
	if applied {
		return nil, fmt.Errorf("%w: %s/%s", ErrAlreadyApplied, key.Scope, key.Step)
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		var result *steps.Result

		err := g.atomic.WithinTx(ctx, func(txCtx context.Context) error {
			inserted, err := g.markers.Insert(txCtx, key.Scope, key.Step)
			if err != nil {
				return fmt.Errorf("insert idempotency marker: %w", err)
			}
			if !inserted {
				return fmt.Errorf("%w: %s/%s", ErrAlreadyApplied, key.Scope, key.Step)
			}

			result, err = body(txCtx)
			return err
		})
		if err == nil {
			return result, nil
		}
		if errors.Is(err, ErrAlreadyApplied) {
			return nil, err
		}

		lastErr = err
		if !steps.IsRecoverable(err) || attempt >= g.policy.MaxAttempts {
			break
		}

		delay := g.policy.Backoff(attempt)
		g.logger.Debug("retrying step",
			"scope", key.Scope,
			"step", key.Step,
			"attempt", attempt,
			"delay", delay,
		)
		if err := g.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
