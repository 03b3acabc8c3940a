package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/repo"
)

// cronParser — парсер cron-выражений (стандартные 5 полей).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Pipelines — управляющая поверхность движка, нужная планировщику.
type Pipelines interface {
	Start(ctx context.Context, kind domain.PipelineKind, names []string) error
	MigrateToQueue(ctx context.Context) (int, error)
}

// Scheduler — планировщик запусков захвата.
type Scheduler struct {
	engine      Pipelines
	schedule    cron.Schedule
	interval    time.Duration
	autoMigrate bool
	logger      *slog.Logger
}

// Config — конфигурация Scheduler.
type Config struct {
	Engine Pipelines
	Logger *slog.Logger

	// CronExpr — cron-выражение запуска захвата. Приоритетнее Interval.
	CronExpr string

	// Interval — интервал между запусками, если CronExpr пуст.
	Interval time.Duration

	// AutoMigrate — переводить подходящие планы в очередь на каждом тике.
	AutoMigrate bool
}

// FromEnv читает конфигурацию из окружения:
// CAPTURE_CRON, CAPTURE_INTERVAL_SEC, AUTO_MIGRATE.
func FromEnv() Config {
	cfg := Config{
		CronExpr:    os.Getenv("CAPTURE_CRON"),
		AutoMigrate: os.Getenv("AUTO_MIGRATE") == "true",
	}
	if v := os.Getenv("CAPTURE_INTERVAL_SEC"); v != "" {
		if sec, err := strconv.Atoi(v); err == nil && sec > 0 {
			cfg.Interval = time.Duration(sec) * time.Second
		}
	}
	return cfg
}

// New создаёт Scheduler. Возвращает (nil, nil), если расписание
// не задано — тогда захват запускается только вручную.
func New(cfg Config) (*Scheduler, error) {
	if cfg.CronExpr == "" && cfg.Interval <= 0 {
		return nil, nil
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Scheduler{
		engine:      cfg.Engine,
		interval:    cfg.Interval,
		autoMigrate: cfg.AutoMigrate,
		logger:      cfg.Logger,
	}

	if cfg.CronExpr != "" {
		schedule, err := cronParser.Parse(cfg.CronExpr)
		if err != nil {
			return nil, fmt.Errorf("parse cron expression %q: %w", cfg.CronExpr, err)
		}
		s.schedule = schedule
	}

	return s, nil
}

// nextDue возвращает время следующего тика.
func (s *Scheduler) nextDue(from time.Time) time.Time {
	if s.schedule != nil {
		return s.schedule.Next(from)
	}
	return from.Add(s.interval)
}

// Run крутит цикл планировщика до отмены контекста.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"cron", s.schedule != nil,
		"interval", s.interval,
		"auto_migrate", s.autoMigrate,
	)

	timer := time.NewTimer(time.Until(s.nextDue(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(time.Until(s.nextDue(time.Now())))
		}
	}
}

// tick запускает захват; активный прогон — не ошибка, тик пропускается.
func (s *Scheduler) tick(ctx context.Context) {
	err := s.engine.Start(ctx, domain.PipelineCapture, nil)
	switch {
	case err == nil:
		s.logger.Info("scheduled capture run started")
	case errors.Is(err, repo.ErrInvalidState):
		s.logger.Info("capture run already active, tick skipped")
	default:
		s.logger.Error("failed to start scheduled capture run", "error", err)
		return
	}

	if s.autoMigrate {
		n, err := s.engine.MigrateToQueue(ctx)
		if err != nil {
			s.logger.Error("failed to migrate plans to queue", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("plans migrated to treatment queue", "count", n)
		}
	}
}
