package repo

import (
	"context"
	"fmt"
)

// MarkerRepo — репозиторий маркеров идемпотентности.
//
// Маркер ставится парой (scope, step): scope — ID плана для под-этапов
// тратамента или токен прогона для пакетных шагов захвата. Вставка
// маркера выполняется внутри транзакции стража вместе с мутациями
// сущности — см. DB.WithinTx.
type MarkerRepo struct {
	db *DB
}

// NewMarkerRepo создаёт MarkerRepo.
func NewMarkerRepo(db *DB) *MarkerRepo {
	return &MarkerRepo{db: db}
}

// Applied проверяет, применён ли шаг к сущности.
func (r *MarkerRepo) Applied(ctx context.Context, scope, step string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM step_markers WHERE scope = $1 AND step = $2)`
	if err := r.db.exec(ctx).QueryRow(ctx, query, scope, step).Scan(&exists); err != nil {
		return false, fmt.Errorf("check marker: %w", err)
	}
	return exists, nil
}

// Insert ставит маркер. Возвращает false, если маркер уже стоял
// (конкурентное или повторное применение).
func (r *MarkerRepo) Insert(ctx context.Context, scope, step string) (bool, error) {
	query := `
		INSERT INTO step_markers (scope, step, applied_at)
		VALUES ($1, $2, now())
		ON CONFLICT (scope, step) DO NOTHING
	`
	tag, err := r.db.exec(ctx).Exec(ctx, query, scope, step)
	if err != nil {
		return false, fmt.Errorf("insert marker: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
