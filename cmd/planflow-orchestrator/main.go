// Planflow Orchestrator — демон конвейеров рескисии.
//
// Orchestrator:
//   - Держит движок конвейеров (захват и тратамент)
//   - Обслуживает HTTP API управления и наблюдения
//   - Запускает захват по расписанию (опционально)
//   - Транслирует события аудита в RabbitMQ (опционально)
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Planflow/internal/api"
	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/engine"
	"github.com/shaiso/Planflow/internal/events"
	"github.com/shaiso/Planflow/internal/guard"
	"github.com/shaiso/Planflow/internal/mq"
	"github.com/shaiso/Planflow/internal/queue"
	"github.com/shaiso/Planflow/internal/repo"
	"github.com/shaiso/Planflow/internal/scheduler"
	"github.com/shaiso/Planflow/internal/status"
	"github.com/shaiso/Planflow/internal/steps"
	"github.com/shaiso/Planflow/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting planflow-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	db := repo.NewDB(pool)

	// Создаём репозитории
	planRepo := repo.NewPlanRepo(db)
	eventRepo := repo.NewEventRepo(db)
	runRepo := repo.NewRunRepo(db)
	queueRepo := repo.NewQueueRepo(db)
	markerRepo := repo.NewMarkerRepo(db)

	// RabbitMQ: опционален, без него события остаются в БД и API
	var broadcaster events.Broadcaster
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, events will not be broadcast", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		broadcaster = mq.NewPublisher(mqConn, logger)
	}

	recorder := events.NewRecorder(eventRepo, broadcaster, logger)

	// Каталог шагов поверх симулированного источника планов
	feed := steps.NewSimulatedFeed(time.Now().UnixNano())
	registry := steps.DefaultRegistry(feed)

	qmgr := queue.NewManager(queueRepo, logger)
	stepGuard := guard.New(db, markerRepo, domain.DefaultRetryPolicy(), logger)

	eng := engine.New(registry, planRepo, runRepo, qmgr, stepGuard, recorder, logger)

	aggregator := status.NewAggregator(planRepo, runRepo, qmgr)

	// HTTP: health, metrics, API
	handler := api.NewHandler(api.Config{
		Engine:   eng,
		Statuses: aggregator,
		Events:   eventRepo,
		Plans:    planRepo,
		Registry: registry,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}
	server := &http.Server{Addr: addr, Handler: mux}

	// Планировщик захвата (опционален)
	schedCfg := scheduler.FromEnv()
	schedCfg.Engine = eng
	schedCfg.Logger = logger
	sched, err := scheduler.New(schedCfg)
	if err != nil {
		logger.Error("invalid scheduler configuration", "error", err)
		os.Exit(1)
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := eng.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if sched != nil {
		group.Go(func() error {
			if err := sched.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-gctx.Done()

		// Graceful shutdown HTTP с таймаутом 10 секунд
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("orchestrator error", "error", err)
		os.Exit(1)
	}

	logger.Info("planflow-orchestrator stopped")
}
