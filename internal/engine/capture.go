package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/guard"
	"github.com/shaiso/Planflow/internal/steps"
)

// runCapture — цикл конвейера захвата.
//
// Шаги выполняются строго в порядке каталога, каждый — один durable-юнит.
// Маркеры идемпотентности скоупятся на токен прогона: новый прогон
// выполняет шаги заново, повтор после остановки пропускает уже
// зафиксированные. Отказ шага останавливает прогон; ранее
// зафиксированные шаги не откатываются.
func (e *Engine) runCapture(ctx context.Context, g *gate, defs []steps.Definition, logger *slog.Logger) {
	token := uuid.New().String()

	var completed, processed, discarded int

	for i := 0; i < len(defs); {
		if err := g.wait(ctx); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		def := defs[i]
		key := guard.Key{Scope: token, Step: def.Name}

		applied, err := e.guard.Applied(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.halt(ctx, domain.PipelineCapture, g, err)
			continue
		}
		if applied {
			// Шаг уже зафиксирован этим прогоном: тихий пропуск,
			// без дублирующих событий.
			i++
			completed++
			continue
		}

		e.recordOrLog(ctx, domain.NewStepEvent(
			domain.PipelineCapture, nil, def.Name, def.Stage,
			domain.EventStart, fmt.Sprintf("шаг %q начат", def.Label),
		))

		res, err := e.executeStep(ctx, domain.PipelineCapture, key, def, nil, logger)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, guard.ErrAlreadyApplied) {
				i++
				completed++
				continue
			}

			e.recordOrLog(ctx, domain.NewStepEvent(
				domain.PipelineCapture, nil, def.Name, def.Stage,
				domain.EventFailure, err.Error(),
			))
			e.halt(ctx, domain.PipelineCapture, g, err)
			// После Resume цикл повторит этот же шаг.
			continue
		}

		completed++
		processed += res.Processed
		discarded += res.Discarded

		e.recordOrLog(ctx, domain.NewStepEvent(
			domain.PipelineCapture, nil, def.Name, def.Stage,
			domain.EventSuccess, res.Message,
		))
		if err := e.runs.UpdateProgress(ctx, domain.PipelineCapture, completed, processed, discarded); err != nil {
			logger.Error("failed to update progress", "error", err)
		}

		logger.Info("step committed",
			"step", def.Name,
			"processed", res.Processed,
			"discarded", res.Discarded,
		)
		i++
	}

	if err := e.runs.Transition(ctx, domain.PipelineCapture, domain.RunStateRunning, domain.RunStateCompleted); err != nil {
		logger.Error("failed to complete run", "error", err)
		return
	}
	e.recordOrLog(ctx, domain.NewEvent(
		domain.PipelineCapture, domain.EventCompleted,
		fmt.Sprintf("захват завершён: шагов %d, планов %d, отбраковано %d", completed, processed, discarded),
	))
	logger.Info("run completed", "steps", completed, "processed", processed, "discarded", discarded)
}
