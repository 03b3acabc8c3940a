package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/guard"
	"github.com/shaiso/Planflow/internal/queue"
	"github.com/shaiso/Planflow/internal/repo"
	"github.com/shaiso/Planflow/internal/steps"
	"github.com/shaiso/Planflow/internal/telemetry"
)

// ErrNotStarted — управляющая операция до запуска движка.
var ErrNotStarted = errors.New("engine is not running")

// ErrFixedCatalog — попытка выбрать подмножество под-этапов тратамента.
var ErrFixedCatalog = errors.New("treatment catalog is fixed")

// PlanStore — хранилище планов, каким его видит движок.
type PlanStore interface {
	steps.PlanAccess

	// Get возвращает план по ID.
	Get(ctx context.Context, id int64) (*domain.Plan, error)
}

// RunStore — хранилище прогонов, каким его видит движок.
// Реализация обязана выполнять переходы атомарным compare-and-set.
type RunStore interface {
	Ensure(ctx context.Context, kind domain.PipelineKind) error
	Get(ctx context.Context, kind domain.PipelineKind) (*domain.Run, error)
	Transition(ctx context.Context, kind domain.PipelineKind, from, to domain.RunState) error
	Begin(ctx context.Context, kind domain.PipelineKind, from domain.RunState, selectedSteps int) error
	UpdateProgress(ctx context.Context, kind domain.PipelineKind, completedSteps, processed, discarded int) error
	UpdateDrain(ctx context.Context, kind domain.PipelineKind, processed, discarded, pending int) error
	SetLastError(ctx context.Context, kind domain.PipelineKind, message string) error
}

// Recorder — регистратор событий аудита.
type Recorder interface {
	Record(ctx context.Context, ev *domain.Event) error
}

// Engine — движок конвейеров.
//
// Все мутации состояния прогона идут из двух мест: управляющих операций
// (Start/Pause/Resume) и однописательного цикла воркера конвейера.
// Управляющие операции фиксируют намерение compare-and-set'ом в БД и
// возвращаются немедленно; воркер наблюдает паузу через ворота.
type Engine struct {
	registry *steps.Registry
	plans    PlanStore
	runs     RunStore
	queue    *queue.Manager
	guard    *guard.Guard
	recorder Recorder
	logger   *slog.Logger

	mu      sync.Mutex
	baseCtx context.Context
	gates   map[domain.PipelineKind]*gate
	alive   map[domain.PipelineKind]bool
	cancels map[domain.PipelineKind]context.CancelFunc
	wg      sync.WaitGroup
}

// New создаёт движок.
func New(registry *steps.Registry, plans PlanStore, runs RunStore, q *queue.Manager, g *guard.Guard, recorder Recorder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: registry,
		plans:    plans,
		runs:     runs,
		queue:    q,
		guard:    g,
		recorder: recorder,
		logger:   logger,
		gates:    make(map[domain.PipelineKind]*gate),
		alive:    make(map[domain.PipelineKind]bool),
		cancels:  make(map[domain.PipelineKind]context.CancelFunc),
	}
}

// Run запускает движок и блокируется до отмены контекста.
//
// При старте восстанавливает состояние после рестарта: строки прогонов,
// зеркало очереди, зависшие RUNNING-прогоны переводятся в PAUSED с
// пометкой об обрыве (оператор возобновляет их вручную).
func (e *Engine) Run(ctx context.Context) error {
	for _, kind := range []domain.PipelineKind{domain.PipelineCapture, domain.PipelineTreatment} {
		if err := e.runs.Ensure(ctx, kind); err != nil {
			return fmt.Errorf("ensure run %s: %w", kind, err)
		}
		if err := e.recoverRun(ctx, kind); err != nil {
			return err
		}
	}

	if err := e.queue.Restore(ctx); err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}

	e.mu.Lock()
	e.baseCtx = ctx
	e.mu.Unlock()

	e.logger.Info("engine started")

	<-ctx.Done()

	// Останавливаем воркеров и ждём, пока текущие юниты дофиксируются.
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()

	e.logger.Info("engine stopped")
	return ctx.Err()
}

// recoverRun переводит прогон, оборванный рестартом, в PAUSED.
func (e *Engine) recoverRun(ctx context.Context, kind domain.PipelineKind) error {
	run, err := e.runs.Get(ctx, kind)
	if err != nil {
		return fmt.Errorf("get run %s: %w", kind, err)
	}

	switch run.State {
	case domain.RunStateRunning, domain.RunStateAwaitingQueue:
		if err := e.runs.SetLastError(ctx, kind, "interrupted by restart"); err != nil {
			return err
		}
		if err := e.runs.Transition(ctx, kind, run.State, domain.RunStatePaused); err != nil {
			return err
		}
		e.logger.Warn("recovered interrupted run", "pipeline", kind, "was", run.State)
	}
	return nil
}

// Start запускает прогон конвейера с выбранными шагами.
// Пустой names означает полный каталог. Запуск при активном прогоне
// отклоняется с repo.ErrInvalidState.
func (e *Engine) Start(ctx context.Context, kind domain.PipelineKind, names []string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown pipeline %q", repo.ErrInvalidState, kind)
	}
	// Тратамент — фиксированная последовательность: без финального
	// под-этапа план не достигает терминального статуса.
	if kind == domain.PipelineTreatment && len(names) > 0 {
		return fmt.Errorf("%w: treatment always runs the full catalog", ErrFixedCatalog)
	}

	defs, err := e.registry.Select(kind, names)
	if err != nil {
		return err
	}

	run, err := e.runs.Get(ctx, kind)
	if err != nil {
		return fmt.Errorf("get run %s: %w", kind, err)
	}
	if !run.State.CanStart() {
		return fmt.Errorf("%w: %s is %s", repo.ErrInvalidState, kind, run.State)
	}

	e.mu.Lock()
	if e.baseCtx == nil {
		e.mu.Unlock()
		return ErrNotStarted
	}
	if e.alive[kind] {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s worker is still finishing", repo.ErrInvalidState, kind)
	}

	// CAS в БД — арбитр гонки двух start().
	if err := e.runs.Begin(ctx, kind, run.State, len(defs)); err != nil {
		e.mu.Unlock()
		return err
	}

	g := newGate()
	wctx, cancel := context.WithCancel(e.baseCtx)
	e.gates[kind] = g
	e.alive[kind] = true
	e.cancels[kind] = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	logger := telemetry.WithPipeline(e.logger, string(kind))
	logger.Info("run started", "steps", len(defs))

	go func() {
		defer e.finishWorker(kind, cancel)
		switch kind {
		case domain.PipelineCapture:
			e.runCapture(wctx, g, defs, logger)
		case domain.PipelineTreatment:
			e.runTreatment(wctx, g, defs, logger)
		}
	}()

	return nil
}

func (e *Engine) finishWorker(kind domain.PipelineKind, cancel context.CancelFunc) {
	cancel()
	e.mu.Lock()
	e.alive[kind] = false
	delete(e.cancels, kind)
	e.mu.Unlock()
	e.wg.Done()
}

// Pause приостанавливает прогон. Текущий юнит дорабатывает до конца;
// воркер останавливается перед следующим.
func (e *Engine) Pause(ctx context.Context, kind domain.PipelineKind) error {
	run, err := e.runs.Get(ctx, kind)
	if err != nil {
		return fmt.Errorf("get run %s: %w", kind, err)
	}
	if run.State != domain.RunStateRunning && run.State != domain.RunStateAwaitingQueue {
		return fmt.Errorf("%w: cannot pause %s in %s", repo.ErrInvalidState, kind, run.State)
	}

	if err := e.runs.Transition(ctx, kind, run.State, domain.RunStatePaused); err != nil {
		return err
	}

	e.mu.Lock()
	if g, ok := e.gates[kind]; ok {
		g.pause()
	}
	e.mu.Unlock()

	e.recordOrLog(ctx, domain.NewEvent(kind, domain.EventPaused, "прогон приостановлен оператором"))
	e.logger.Info("run paused", "pipeline", kind)
	return nil
}

// Resume возобновляет приостановленный прогон — и паузу оператора,
// и остановку по ошибке. Воркер продолжает со следующего юнита
// (или повторяет отказавший).
func (e *Engine) Resume(ctx context.Context, kind domain.PipelineKind) error {
	run, err := e.runs.Get(ctx, kind)
	if err != nil {
		return fmt.Errorf("get run %s: %w", kind, err)
	}
	if run.State != domain.RunStatePaused {
		return fmt.Errorf("%w: cannot resume %s in %s", repo.ErrInvalidState, kind, run.State)
	}

	if err := e.runs.Transition(ctx, kind, domain.RunStatePaused, domain.RunStateRunning); err != nil {
		return err
	}
	if run.Halted() {
		if err := e.runs.SetLastError(ctx, kind, ""); err != nil {
			return err
		}
	}

	e.mu.Lock()
	g, ok := e.gates[kind]
	alive := e.alive[kind]
	e.mu.Unlock()
	if ok {
		g.resume()
	}
	if !alive {
		// Воркер погиб (рестарт демона): перезапускаем цикл,
		// позиция восстанавливается из маркеров и etapa_atual.
		if err := e.respawn(ctx, kind, run.SelectedSteps); err != nil {
			return err
		}
	}

	e.recordOrLog(ctx, domain.NewEvent(kind, domain.EventResumed, "прогон возобновлён"))
	e.logger.Info("run resumed", "pipeline", kind)
	return nil
}

// respawn поднимает воркер для прогона, возобновлённого после рестарта.
func (e *Engine) respawn(ctx context.Context, kind domain.PipelineKind, selected int) error {
	defs := e.registry.Steps(kind)
	if selected > 0 && selected < len(defs) {
		// Точный поимённый выбор рестарт не переживает; берём каталог
		// целиком — маркеры идемпотентности отсеют уже применённое.
		e.logger.Warn("selected steps lost across restart, resuming with full catalog",
			"pipeline", kind, "selected", selected)
	}

	e.mu.Lock()
	if e.baseCtx == nil {
		e.mu.Unlock()
		return ErrNotStarted
	}
	if e.alive[kind] {
		e.mu.Unlock()
		return nil
	}
	g := newGate()
	wctx, cancel := context.WithCancel(e.baseCtx)
	e.gates[kind] = g
	e.alive[kind] = true
	e.cancels[kind] = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	logger := telemetry.WithPipeline(e.logger, string(kind))
	go func() {
		defer e.finishWorker(kind, cancel)
		switch kind {
		case domain.PipelineCapture:
			e.runCapture(wctx, g, defs, logger)
		case domain.PipelineTreatment:
			e.runTreatment(wctx, g, defs, logger)
		}
	}()
	return nil
}

// Status возвращает прогон конвейера.
func (e *Engine) Status(ctx context.Context, kind domain.PipelineKind) (*domain.Run, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown pipeline %q", repo.ErrInvalidState, kind)
	}
	return e.runs.Get(ctx, kind)
}

// MigrateToQueue переводит подходящие планы в очередь тратамента.
// Возвращает число поставленных в очередь планов.
func (e *Engine) MigrateToQueue(ctx context.Context) (int, error) {
	n, err := e.queue.MigrateEligible(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.recordOrLog(ctx, domain.NewStepEvent(
			domain.PipelineTreatment, nil, "queue_migration", 0,
			domain.EventSuccess, fmt.Sprintf("в очередь поставлено планов: %d", n),
		))
	}
	return n, nil
}

// QueueSnapshot возвращает снимок очереди тратамента.
func (e *Engine) QueueSnapshot() (current *int64, pending []int64) {
	return e.queue.Snapshot()
}

// recordOrLog фиксирует событие; сбой записи логируется, но не
// прерывает управляющую операцию.
func (e *Engine) recordOrLog(ctx context.Context, ev *domain.Event) {
	if err := e.recorder.Record(ctx, ev); err != nil {
		e.logger.Error("failed to record event",
			"context", ev.Context,
			"status", ev.Status,
			"error", err,
		)
	}
}

// halt останавливает прогон по ошибке: LastError + PAUSED + закрытые
// ворота. Воркер при этом не завершается — после Resume он повторит
// отказавший юнит.
func (e *Engine) halt(ctx context.Context, kind domain.PipelineKind, g *gate, cause error) {
	if err := e.runs.SetLastError(ctx, kind, cause.Error()); err != nil {
		e.logger.Error("failed to persist run error", "pipeline", kind, "error", err)
	}
	if err := e.runs.Transition(ctx, kind, domain.RunStateRunning, domain.RunStatePaused); err != nil {
		e.logger.Error("failed to pause halted run", "pipeline", kind, "error", err)
	}
	g.pause()
	e.logger.Warn("run halted", "pipeline", kind, "cause", cause)
}

// executeStep выполняет один юнит под стражей идемпотентности,
// снимая метрики длительности и исхода.
func (e *Engine) executeStep(ctx context.Context, kind domain.PipelineKind, key guard.Key, def steps.Definition, plan *domain.Plan, logger *slog.Logger) (*steps.Result, error) {
	req := &steps.Request{Plan: plan, Plans: e.plans, Logger: logger}

	start := time.Now()
	res, err := e.guard.Execute(ctx, key, func(txCtx context.Context) (*steps.Result, error) {
		result, err := def.Handler.Execute(txCtx, req)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			e.applyOutcome(plan, def, result)
			if err := e.plans.Update(txCtx, plan); err != nil {
				return nil, steps.Recoverable("persist plan %s: %v", plan.Number, err)
			}
		}
		return result, nil
	})
	telemetry.StepDuration.WithLabelValues(string(kind), def.Name).Observe(time.Since(start).Seconds())

	outcome := "success"
	switch {
	case err != nil:
		outcome = "failure"
	case res.Outcome == steps.OutcomeDiscard:
		outcome = "discard"
	}
	telemetry.StepsTotal.WithLabelValues(string(kind), def.Name, outcome).Inc()

	return res, err
}

// applyOutcome переносит исход шага на план: продвижение etapa_atual,
// терминальные статусы. Выполняется в той же транзакции, что и маркер.
func (e *Engine) applyOutcome(plan *domain.Plan, def steps.Definition, res *steps.Result) {
	plan.AdvanceStage(def.Stage)
	switch res.Outcome {
	case steps.OutcomeDiscard:
		plan.MarkDiscarded(res.Message)
	case steps.OutcomeSuccess:
		if def.Stage == domain.TreatmentStageCount {
			plan.MarkRescinded()
		}
	}
}
