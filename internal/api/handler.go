package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/repo"
	"github.com/shaiso/Planflow/internal/status"
	"github.com/shaiso/Planflow/internal/steps"
)

// Controller — управляющая поверхность движка конвейеров.
type Controller interface {
	Start(ctx context.Context, kind domain.PipelineKind, names []string) error
	Pause(ctx context.Context, kind domain.PipelineKind) error
	Resume(ctx context.Context, kind domain.PipelineKind) error
	MigrateToQueue(ctx context.Context) (int, error)
	QueueSnapshot() (current *int64, pending []int64)
}

// StatusSource — источник сводок состояния.
type StatusSource interface {
	Summary(ctx context.Context) (*status.Summary, error)
	Run(ctx context.Context, kind domain.PipelineKind) (*status.RunSummary, error)
}

// EventSource — источник событий аудита.
type EventSource interface {
	Query(ctx context.Context, filter repo.EventFilter) ([]domain.Event, error)
}

// PlanSource — источник планов.
type PlanSource interface {
	Get(ctx context.Context, id int64) (*domain.Plan, error)
	List(ctx context.Context, filter repo.PlanFilter) ([]domain.Plan, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine   Controller
	statuses StatusSource
	events   EventSource
	plans    PlanSource
	registry *steps.Registry
	logger   *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine   Controller
	Statuses StatusSource
	Events   EventSource
	Plans    PlanSource
	Registry *steps.Registry
	Logger   *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:   cfg.Engine,
		statuses: cfg.Statuses,
		events:   cfg.Events,
		plans:    cfg.Plans,
		registry: cfg.Registry,
		logger:   logger,
	}
}
