// Package status — сводная картина состояния системы.
//
// Агрегатор только читает: счётчики планов из БД, состояние прогонов,
// снимок очереди обработки. Никаких мутаций.
package status

import (
	"context"
	"fmt"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/telemetry"
)

// PlanCounter — источник счётчиков планов.
type PlanCounter interface {
	CountByStatus(ctx context.Context) (map[domain.PlanStatus]int, error)
}

// RunReader — источник состояния прогонов.
type RunReader interface {
	Get(ctx context.Context, kind domain.PipelineKind) (*domain.Run, error)
}

// QueueReader — источник снимка очереди обработки.
type QueueReader interface {
	Snapshot() (current *int64, pending []int64)
	Size() int
}

// RunSummary — состояние одного конвейера.
type RunSummary struct {
	Pipeline       domain.PipelineKind `json:"pipeline"`
	State          domain.RunState     `json:"state"`
	SelectedSteps  int                 `json:"selected_steps"`
	CompletedSteps int                 `json:"completed_steps"`
	Processed      int                 `json:"processed"`
	Discarded      int                 `json:"discarded"`
	Progress       int                 `json:"progress"`
	LastError      string              `json:"last_error,omitempty"`
	Halted         bool                `json:"halted"`
}

// QueueSummary — снимок очереди обработки.
type QueueSummary struct {
	Length  int     `json:"length"`
	Current *int64  `json:"current,omitempty"`
	Pending []int64 `json:"pending"`
}

// Summary — сводка по всей системе.
type Summary struct {
	Plans map[domain.PlanStatus]int           `json:"plans"`
	Runs  map[domain.PipelineKind]*RunSummary `json:"runs"`
	Queue QueueSummary                        `json:"queue"`
}

// Aggregator собирает сводку из независимых источников.
type Aggregator struct {
	plans PlanCounter
	runs  RunReader
	queue QueueReader
}

// NewAggregator создаёт агрегатор.
func NewAggregator(plans PlanCounter, runs RunReader, queue QueueReader) *Aggregator {
	return &Aggregator{plans: plans, runs: runs, queue: queue}
}

// Run возвращает сводку по одному конвейеру.
func (a *Aggregator) Run(ctx context.Context, kind domain.PipelineKind) (*RunSummary, error) {
	run, err := a.runs.Get(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", kind, err)
	}
	return summarize(run), nil
}

// Summary возвращает сводку по всей системе: планы, прогоны, очередь.
func (a *Aggregator) Summary(ctx context.Context) (*Summary, error) {
	counts, err := a.plans.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count plans: %w", err)
	}

	// Обновляем gauge планов попутно: сводка и так ходит в БД.
	for status, n := range counts {
		telemetry.PlansTotal.WithLabelValues(string(status)).Set(float64(n))
	}

	runs := make(map[domain.PipelineKind]*RunSummary, 2)
	for _, kind := range []domain.PipelineKind{domain.PipelineCapture, domain.PipelineTreatment} {
		run, err := a.runs.Get(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("get run %s: %w", kind, err)
		}
		runs[kind] = summarize(run)
	}

	current, pending := a.queue.Snapshot()
	summary := &Summary{
		Plans: counts,
		Runs:  runs,
		Queue: QueueSummary{
			Length:  a.queue.Size(),
			Current: current,
			Pending: pending,
		},
	}

	telemetry.QueueLength.Set(float64(summary.Queue.Length))

	return summary, nil
}

func summarize(run *domain.Run) *RunSummary {
	return &RunSummary{
		Pipeline:       run.Pipeline,
		State:          run.State,
		SelectedSteps:  run.SelectedSteps,
		CompletedSteps: run.CompletedSteps,
		Processed:      run.Processed,
		Discarded:      run.Discarded,
		Progress:       run.ProgressPercent(),
		LastError:      run.LastError,
		Halted:         run.Halted(),
	}
}
