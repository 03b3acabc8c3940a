package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Регистрируются в DefaultRegisterer через promauto;
// /metrics отдаётся promhttp в составе демона.
var (
	// StepsTotal — применения шагов в разрезе конвейера, шага и исхода.
	StepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planflow_steps_total",
		Help: "Step applications by pipeline, step and outcome",
	}, []string{"pipeline", "step", "outcome"})

	// StepDuration — длительность применения шага.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "planflow_step_duration_seconds",
		Help:    "Step execution duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"pipeline", "step"})

	// EventsTotal — события аудита в разрезе контекста и статуса.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "planflow_events_total",
		Help: "Audit events appended by context and status",
	}, []string{"context", "status"})

	// QueueLength — текущая длина очереди тратамента.
	QueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "planflow_treatment_queue_length",
		Help: "Current treatment queue length",
	})

	// PlansTotal — текущее число планов в разрезе статуса.
	// Снимок из БД, поэтому gauge, а не counter.
	PlansTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "planflow_plans_total",
		Help: "Current plan count by status",
	}, []string{"status"})
)
