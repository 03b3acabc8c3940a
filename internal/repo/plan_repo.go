package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shaiso/Planflow/internal/domain"
)

// PlanRepo — репозиторий планов.
type PlanRepo struct {
	db *DB
}

// NewPlanRepo создаёт PlanRepo.
func NewPlanRepo(db *DB) *PlanRepo {
	return &PlanRepo{db: db}
}

const planColumns = `
	id, number, company_name, current_situation, previous_situation,
	balance, days_overdue, tax_ids, status, etapa_atual,
	discard_reason, rescinded_at, created_at, updated_at
`

// Insert создаёт план и заполняет его ID и временные метки.
func (r *PlanRepo) Insert(ctx context.Context, plan *domain.Plan) error {
	taxIDs, err := json.Marshal(plan.TaxIDs)
	if err != nil {
		return fmt.Errorf("marshal tax_ids: %w", err)
	}

	query := `
		INSERT INTO plans (number, company_name, current_situation, previous_situation,
		                   balance, days_overdue, tax_ids, status, etapa_atual, discard_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	err = r.db.exec(ctx).QueryRow(ctx, query,
		plan.Number,
		plan.CompanyName,
		plan.CurrentSituation,
		plan.PreviousSituation,
		plan.Balance,
		plan.DaysOverdue,
		taxIDs,
		plan.Status,
		plan.CurrentStage,
		nullString(plan.DiscardReason),
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// Get возвращает план по ID.
func (r *PlanRepo) Get(ctx context.Context, id int64) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`
	return r.scanPlan(r.db.exec(ctx).QueryRow(ctx, query, id))
}

// GetByNumber возвращает план по бизнес-номеру.
// Возвращает (nil, nil), если план не найден.
func (r *PlanRepo) GetByNumber(ctx context.Context, number string) (*domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE number = $1`
	plan, err := r.scanPlan(r.db.exec(ctx).QueryRow(ctx, query, number))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return plan, err
}

// Update сохраняет мутации плана. Терминальные статусы финальны,
// поэтому перезапись терминального плана — ошибка целостности.
func (r *PlanRepo) Update(ctx context.Context, plan *domain.Plan) error {
	taxIDs, err := json.Marshal(plan.TaxIDs)
	if err != nil {
		return fmt.Errorf("marshal tax_ids: %w", err)
	}

	query := `
		UPDATE plans
		SET company_name = $2, current_situation = $3, previous_situation = $4,
		    balance = $5, days_overdue = $6, tax_ids = $7, status = $8,
		    etapa_atual = $9, discard_reason = $10, rescinded_at = $11,
		    updated_at = now()
		WHERE id = $1
		  AND status NOT IN ('RESCINDED', 'DISCARDED')
	`
	tag, err := r.db.exec(ctx).Exec(ctx, query,
		plan.ID,
		plan.CompanyName,
		plan.CurrentSituation,
		plan.PreviousSituation,
		plan.Balance,
		plan.DaysOverdue,
		taxIDs,
		plan.Status,
		plan.CurrentStage,
		nullString(plan.DiscardReason),
		plan.RescindedAt,
	)
	if err != nil {
		return fmt.Errorf("update plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: plan %d is terminal or missing", ErrInvalidState, plan.ID)
	}
	return nil
}

// PlanFilter — параметры выборки планов.
type PlanFilter struct {
	Status domain.PlanStatus
	Limit  int
	Offset int
}

// List возвращает планы с фильтрацией, в порядке создания.
func (r *PlanRepo) List(ctx context.Context, filter PlanFilter) ([]domain.Plan, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + planColumns + `
		FROM plans
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY id ASC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.exec(ctx).Query(ctx, query,
		nullString(string(filter.Status)),
		limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// ListByStatus возвращает все планы с указанным статусом в порядке создания.
func (r *PlanRepo) ListByStatus(ctx context.Context, status domain.PlanStatus) ([]domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE status = $1 ORDER BY id ASC`
	rows, err := r.db.exec(ctx).Query(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("list plans by status: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// CountByStatus возвращает количество планов в разрезе статусов.
func (r *PlanRepo) CountByStatus(ctx context.Context) (map[domain.PlanStatus]int, error) {
	rows, err := r.db.exec(ctx).Query(ctx, `SELECT status, count(*) FROM plans GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count plans: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.PlanStatus]int)
	for rows.Next() {
		var status domain.PlanStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// --- Helpers ---

func (r *PlanRepo) collect(rows pgx.Rows) ([]domain.Plan, error) {
	var plans []domain.Plan
	for rows.Next() {
		plan, err := r.scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

func (r *PlanRepo) scanPlan(row pgx.Row) (*domain.Plan, error) {
	var plan domain.Plan
	var taxIDs []byte
	var companyName, currentSit, previousSit, discardReason *string
	var rescindedAt *time.Time

	err := row.Scan(
		&plan.ID,
		&plan.Number,
		&companyName,
		&currentSit,
		&previousSit,
		&plan.Balance,
		&plan.DaysOverdue,
		&taxIDs,
		&plan.Status,
		&plan.CurrentStage,
		&discardReason,
		&rescindedAt,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}

	if taxIDs != nil {
		if err := json.Unmarshal(taxIDs, &plan.TaxIDs); err != nil {
			return nil, fmt.Errorf("unmarshal tax_ids: %w", err)
		}
	}
	if companyName != nil {
		plan.CompanyName = *companyName
	}
	if currentSit != nil {
		plan.CurrentSituation = *currentSit
	}
	if previousSit != nil {
		plan.PreviousSituation = *previousSit
	}
	if discardReason != nil {
		plan.DiscardReason = *discardReason
	}
	plan.RescindedAt = rescindedAt

	return &plan, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
