package repo

import (
	"context"
	"fmt"
	"time"
)

// QueueEntry — персистентная запись очереди тратамента.
type QueueEntry struct {
	PlanID     int64     `json:"plan_id"`
	Position   int64     `json:"position"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// QueueRepo — репозиторий очереди тратамента.
//
// Очередь выводима из статуса плана плюс порядок вставки; отдельная
// таблица держится согласованной со статусом: запись существует только
// для планов в PENDING/PROCESSING.
type QueueRepo struct {
	db *DB
}

// NewQueueRepo создаёт QueueRepo.
func NewQueueRepo(db *DB) *QueueRepo {
	return &QueueRepo{db: db}
}

// Enqueue ставит план в очередь. Идемпотентно: уже стоящий в очереди
// или терминальный план пропускается; возвращает true при вставке.
func (r *QueueRepo) Enqueue(ctx context.Context, planID int64) (bool, error) {
	query := `
		INSERT INTO treatment_queue (plan_id)
		SELECT id FROM plans
		WHERE id = $1 AND status IN ('PENDING', 'PROCESSING')
		ON CONFLICT (plan_id) DO NOTHING
	`
	tag, err := r.db.exec(ctx).Exec(ctx, query, planID)
	if err != nil {
		return false, fmt.Errorf("enqueue plan: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// EnqueueEligible ставит в очередь все планы со статусом PENDING,
// которых там ещё нет. Возвращает ID поставленных планов в порядке
// вставки.
func (r *QueueRepo) EnqueueEligible(ctx context.Context) ([]int64, error) {
	query := `
		INSERT INTO treatment_queue (plan_id)
		SELECT id FROM plans
		WHERE status = 'PENDING'
		ORDER BY id ASC
		ON CONFLICT (plan_id) DO NOTHING
		RETURNING plan_id
	`
	rows, err := r.db.exec(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("enqueue eligible plans: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan enqueued id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List возвращает очередь в порядке FIFO.
func (r *QueueRepo) List(ctx context.Context) ([]QueueEntry, error) {
	query := `
		SELECT plan_id, position, enqueued_at
		FROM treatment_queue
		ORDER BY position ASC
	`
	rows, err := r.db.exec(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.PlanID, &e.Position, &e.EnqueuedAt); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListIDs возвращает ID планов очереди в порядке FIFO.
func (r *QueueRepo) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.exec(ctx).Query(ctx, `SELECT plan_id FROM treatment_queue ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list queue ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan queue id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Remove удаляет план из очереди (при достижении терминального статуса).
func (r *QueueRepo) Remove(ctx context.Context, planID int64) error {
	if _, err := r.db.exec(ctx).Exec(ctx, `DELETE FROM treatment_queue WHERE plan_id = $1`, planID); err != nil {
		return fmt.Errorf("remove queue entry: %w", err)
	}
	return nil
}

// Size возвращает длину очереди.
func (r *QueueRepo) Size(ctx context.Context) (int, error) {
	var n int
	if err := r.db.exec(ctx).QueryRow(ctx, `SELECT count(*) FROM treatment_queue`).Scan(&n); err != nil {
		return 0, fmt.Errorf("queue size: %w", err)
	}
	return n, nil
}

// CountEligible возвращает количество планов, которые ещё могут попасть
// в очередь (PENDING вне очереди). Используется движком тратамента для
// выбора между AWAITING_QUEUE и COMPLETED при осушении очереди.
func (r *QueueRepo) CountEligible(ctx context.Context) (int, error) {
	query := `
		SELECT count(*)
		FROM plans p
		WHERE p.status = 'PENDING'
		  AND NOT EXISTS (SELECT 1 FROM treatment_queue q WHERE q.plan_id = p.id)
	`
	var n int
	if err := r.db.exec(ctx).QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count eligible: %w", err)
	}
	return n, nil
}
