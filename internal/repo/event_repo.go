package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Planflow/internal/domain"
)

// EventRepo — репозиторий журнала аудита. Журнал append-only:
// есть только вставка и выборка.
type EventRepo struct {
	db *DB
}

// NewEventRepo создаёт EventRepo.
func NewEventRepo(db *DB) *EventRepo {
	return &EventRepo{db: db}
}

// Append добавляет событие в журнал и заполняет его ID.
func (r *EventRepo) Append(ctx context.Context, ev *domain.Event) error {
	query := `
		INSERT INTO events (context, plan_id, plan_number, step, stage, status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := r.db.exec(ctx).QueryRow(ctx, query,
		ev.Context,
		ev.PlanID,
		nullString(ev.PlanNumber),
		nullString(ev.Step),
		ev.Stage,
		ev.Status,
		ev.Message,
		ev.CreatedAt,
	).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// EventFilter — параметры выборки событий.
type EventFilter struct {
	// Context — фильтр по конвейеру (пустой — оба).
	Context domain.PipelineKind

	// PlanID — фильтр по плану.
	PlanID *int64

	// Since, Until — границы временного диапазона.
	Since *time.Time
	Until *time.Time

	Limit  int
	Offset int
}

// Query возвращает события по фильтру, новые первыми.
func (r *EventRepo) Query(ctx context.Context, filter EventFilter) ([]domain.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, context, plan_id, plan_number, step, stage, status, message, created_at
		FROM events
		WHERE ($1::text IS NULL OR context = $1)
		  AND ($2::bigint IS NULL OR plan_id = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		  AND ($4::timestamptz IS NULL OR created_at <= $4)
		ORDER BY id DESC
		LIMIT $5 OFFSET $6
	`
	rows, err := r.db.exec(ctx).Query(ctx, query,
		nullString(string(filter.Context)),
		filter.PlanID,
		filter.Since,
		filter.Until,
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var planNumber, step *string
		if err := rows.Scan(
			&ev.ID,
			&ev.Context,
			&ev.PlanID,
			&planNumber,
			&step,
			&ev.Stage,
			&ev.Status,
			&ev.Message,
			&ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if planNumber != nil {
			ev.PlanNumber = *planNumber
		}
		if step != nil {
			ev.Step = *step
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
