package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/guard"
	"github.com/shaiso/Planflow/internal/repo"
	"github.com/shaiso/Planflow/internal/steps"
	"github.com/shaiso/Planflow/internal/telemetry"
)

// runTreatment — цикл конвейера тратамента.
//
// Планы обрабатываются строго в порядке очереди, по одному. Для каждого
// плана под-этапы идут от etapa_atual+1 до конца каталога; каждый
// под-этап — один durable-юнит (мутации плана + продвижение etapa_atual
// + маркер идемпотентности в одной транзакции). Отбраковка завершает
// план досрочно; пустая очередь переводит прогон в AWAITING_QUEUE,
// если подходящие планы ещё ожидаются, иначе — в COMPLETED.
func (e *Engine) runTreatment(ctx context.Context, g *gate, defs []steps.Definition, logger *slog.Logger) {
	var processed, discarded int

	for {
		if err := g.wait(ctx); err != nil {
			return
		}
		if ctx.Err() != nil {
			return
		}

		planID, ok := e.queue.PeekCurrent()
		if !ok {
			done, err := e.idleOrComplete(ctx, g, processed, discarded)
			if err != nil {
				return
			}
			if done {
				return
			}
			continue
		}

		outcome, err := e.treatPlan(ctx, g, defs, planID, logger)
		if err != nil {
			return
		}

		switch outcome {
		case planHalted:
			// Ворота закрыты; после Resume тот же план повторяется.
			continue
		case planDiscarded:
			discarded++
			processed++
		case planRescinded, planSkipped:
			processed++
		}

		if err := e.queue.Advance(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			e.halt(ctx, domain.PipelineTreatment, g, err)
			continue
		}
		telemetry.QueueLength.Set(float64(e.queue.Size()))

		if err := e.runs.UpdateDrain(ctx, domain.PipelineTreatment, processed, discarded, e.queue.Size()); err != nil {
			logger.Error("failed to update progress", "error", err)
		}
	}
}

// idleOrComplete решает судьбу прогона при пустой очереди.
// Возвращает done=true, когда прогон завершён или контекст отменён.
func (e *Engine) idleOrComplete(ctx context.Context, g *gate, processed, discarded int) (done bool, err error) {
	more, err := e.queue.ExpectMore(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true, err
		}
		e.halt(ctx, domain.PipelineTreatment, g, err)
		return false, nil
	}

	if !more {
		if err := e.runs.Transition(ctx, domain.PipelineTreatment, domain.RunStateRunning, domain.RunStateCompleted); err != nil {
			e.logger.Error("failed to complete run", "error", err)
			return true, err
		}
		e.recordOrLog(ctx, domain.NewEvent(
			domain.PipelineTreatment, domain.EventCompleted,
			fmt.Sprintf("тратамент завершён: планов %d, отбраковано %d", processed, discarded),
		))
		e.logger.Info("run completed", "pipeline", domain.PipelineTreatment,
			"processed", processed, "discarded", discarded)
		return true, nil
	}

	// Планы ещё ожидаются — ждём пополнения очереди.
	if err := e.runs.Transition(ctx, domain.PipelineTreatment, domain.RunStateRunning, domain.RunStateAwaitingQueue); err != nil {
		e.logger.Error("failed to transition to awaiting queue", "error", err)
		return true, err
	}
	if err := e.queue.AwaitEntry(ctx); err != nil {
		return true, err
	}
	// Оператор мог поставить паузу, пока прогон ждал очередь;
	// тогда состояние уже не AWAITING_QUEUE — это не ошибка.
	if err := e.runs.Transition(ctx, domain.PipelineTreatment, domain.RunStateAwaitingQueue, domain.RunStateRunning); err != nil && !errors.Is(err, repo.ErrInvalidState) {
		return true, err
	}
	return false, nil
}

// planOutcome — итог обработки плана из очереди.
type planOutcome int

const (
	planRescinded planOutcome = iota // дошёл до конца каталога
	planDiscarded                    // отбракован под-этапом
	planSkipped                      // уже терминален, из очереди снят
	planHalted                       // прогон остановлен, план остаётся в очереди
)

// treatPlan проводит план через оставшиеся под-этапы.
// Отказ под-этапа останавливает прогон; после Resume тот же под-этап
// повторяется. Ненулевая ошибка означает отмену контекста.
func (e *Engine) treatPlan(ctx context.Context, g *gate, defs []steps.Definition, planID int64, logger *slog.Logger) (planOutcome, error) {
	scope := strconv.FormatInt(planID, 10)

	for i := 0; i < len(defs); {
		if err := g.wait(ctx); err != nil {
			return planSkipped, err
		}
		if ctx.Err() != nil {
			return planSkipped, ctx.Err()
		}

		// План перечитывается на каждой итерации: после Resume или
		// рестарта позиция восстанавливается из etapa_atual.
		plan, err := e.plans.Get(ctx, planID)
		if err != nil {
			if ctx.Err() != nil {
				return planSkipped, ctx.Err()
			}
			e.halt(ctx, domain.PipelineTreatment, g, fmt.Errorf("get plan %d: %w", planID, err))
			continue
		}
		if plan.IsTerminal() {
			// Дошли сюда после повтора уже завершённого плана.
			if plan.Status == domain.PlanStatusDiscarded {
				return planDiscarded, nil
			}
			return planRescinded, nil
		}

		def := defs[i]
		if def.Stage <= plan.CurrentStage {
			i++
			continue
		}

		plog := telemetry.WithPlan(logger, plan.Number)
		key := guard.Key{Scope: scope, Step: def.Name}

		applied, err := e.guard.Applied(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return planSkipped, ctx.Err()
			}
			e.halt(ctx, domain.PipelineTreatment, g, err)
			continue
		}
		if applied {
			i++
			continue
		}

		if plan.Status == domain.PlanStatusPending {
			plan.MarkProcessing()
		}

		e.recordOrLog(ctx, domain.NewStepEvent(
			domain.PipelineTreatment, plan, def.Name, def.Stage,
			domain.EventStart, fmt.Sprintf("под-этап %q начат", def.Label),
		))

		res, err := e.executeStep(ctx, domain.PipelineTreatment, key, def, plan, plog)
		if err != nil {
			if ctx.Err() != nil {
				return planSkipped, ctx.Err()
			}
			if errors.Is(err, guard.ErrAlreadyApplied) {
				i++
				continue
			}

			e.recordOrLog(ctx, domain.NewStepEvent(
				domain.PipelineTreatment, plan, def.Name, def.Stage,
				domain.EventFailure, err.Error(),
			))
			e.halt(ctx, domain.PipelineTreatment, g, err)
			// После Resume повторяется этот же под-этап.
			continue
		}

		if res.Outcome == steps.OutcomeDiscard {
			e.recordOrLog(ctx, domain.NewStepEvent(
				domain.PipelineTreatment, plan, def.Name, def.Stage,
				domain.EventDiscarded, res.Message,
			))
			plog.Info("plan discarded", "stage", def.Stage, "reason", res.Message)
			return planDiscarded, nil
		}

		e.recordOrLog(ctx, domain.NewStepEvent(
			domain.PipelineTreatment, plan, def.Name, def.Stage,
			domain.EventSuccess, res.Message,
		))

		if def.Stage == domain.TreatmentStageCount {
			plog.Info("plan rescinded")
			return planRescinded, nil
		}
		i++
	}

	// Каталог исчерпан без терминального исхода. План из очереди не
	// снимается: прогон останавливается, оператор разбирается.
	plan, err := e.plans.Get(ctx, planID)
	if err == nil && plan.IsTerminal() {
		if plan.Status == domain.PlanStatusDiscarded {
			return planDiscarded, nil
		}
		return planRescinded, nil
	}
	e.halt(ctx, domain.PipelineTreatment, g,
		fmt.Errorf("plan %d left non-terminal after the catalog", planID))
	return planHalted, nil
}
