// Package events — запись потока событий аудита.
package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/Planflow/internal/domain"
	"github.com/shaiso/Planflow/internal/telemetry"
)

// Sink — append-only хранилище событий.
type Sink interface {
	Append(ctx context.Context, ev *domain.Event) error
}

// Broadcaster — необязательная трансляция событий внешним подписчикам
// (панели наблюдения). Сбой трансляции не считается сбоем записи.
type Broadcaster interface {
	PublishEvent(ctx context.Context, ev *domain.Event) error
}

// Recorder — регистратор событий: персистентная запись, метрика,
// best-effort трансляция.
type Recorder struct {
	sink        Sink
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewRecorder создаёт Recorder. broadcaster может быть nil —
// тогда события только персистируются.
func NewRecorder(sink Sink, broadcaster Broadcaster, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		sink:        sink,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Record фиксирует событие. Запись в хранилище обязательна;
// трансляция — best-effort.
func (r *Recorder) Record(ctx context.Context, ev *domain.Event) error {
	if err := r.sink.Append(ctx, ev); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	telemetry.EventsTotal.WithLabelValues(string(ev.Context), string(ev.Status)).Inc()

	if r.broadcaster != nil {
		if err := r.broadcaster.PublishEvent(ctx, ev); err != nil {
			r.logger.Warn("failed to broadcast event",
				"context", ev.Context,
				"status", ev.Status,
				"error", err,
			)
		}
	}
	return nil
}
