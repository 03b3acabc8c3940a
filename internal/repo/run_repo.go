package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shaiso/Planflow/internal/domain"
)

// RunRepo — репозиторий прогонов конвейеров.
//
// На каждый вид конвейера существует ровно одна строка; переходы
// состояния выполняются атомарным compare-and-set, так что гонка двух
// start() разрешается на уровне БД, а неудачная фиксация оставляет
// прогон в прежнем состоянии.
type RunRepo struct {
	db *DB
}

// NewRunRepo создаёт RunRepo.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Ensure создаёт строку прогона в состоянии IDLE, если её ещё нет.
func (r *RunRepo) Ensure(ctx context.Context, kind domain.PipelineKind) error {
	query := `
		INSERT INTO pipeline_runs (pipeline, state, updated_at)
		VALUES ($1, 'IDLE', now())
		ON CONFLICT (pipeline) DO NOTHING
	`
	if _, err := r.db.exec(ctx).Exec(ctx, query, kind); err != nil {
		return fmt.Errorf("ensure run: %w", err)
	}
	return nil
}

// Get возвращает прогон конвейера.
func (r *RunRepo) Get(ctx context.Context, kind domain.PipelineKind) (*domain.Run, error) {
	query := `
		SELECT pipeline, state, selected_steps, completed_steps, processed, discarded,
		       last_error, started_at, updated_at
		FROM pipeline_runs
		WHERE pipeline = $1
	`
	var run domain.Run
	var lastError *string
	err := r.db.exec(ctx).QueryRow(ctx, query, kind).Scan(
		&run.Pipeline,
		&run.State,
		&run.SelectedSteps,
		&run.CompletedSteps,
		&run.Processed,
		&run.Discarded,
		&lastError,
		&run.StartedAt,
		&run.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	if lastError != nil {
		run.LastError = *lastError
	}
	return &run, nil
}

// Transition атомарно переводит прогон из from в to.
// Ноль затронутых строк означает, что прогон уже не в from:
// возвращается ErrInvalidState, состояние не меняется.
func (r *RunRepo) Transition(ctx context.Context, kind domain.PipelineKind, from, to domain.RunState) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: transition %s → %s is not allowed", ErrInvalidState, from, to)
	}

	query := `
		UPDATE pipeline_runs
		SET state = $3, updated_at = now()
		WHERE pipeline = $1 AND state = $2
	`
	tag, err := r.db.exec(ctx).Exec(ctx, query, kind, from, to)
	if err != nil {
		return fmt.Errorf("transition run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, getErr := r.Get(ctx, kind)
		if getErr != nil {
			return fmt.Errorf("%w: %s is not %s", ErrInvalidState, kind, from)
		}
		return fmt.Errorf("%w: %s is %s, expected %s", ErrInvalidState, kind, current.State, from)
	}
	return nil
}

// Begin атомарно стартует прогон: переход from → RUNNING со сбросом
// счётчиков. from ограничен состояниями, из которых допустим start().
func (r *RunRepo) Begin(ctx context.Context, kind domain.PipelineKind, from domain.RunState, selectedSteps int) error {
	if !from.CanStart() {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidState, from)
	}

	query := `
		UPDATE pipeline_runs
		SET state = 'RUNNING', selected_steps = $3, completed_steps = 0,
		    processed = 0, discarded = 0, last_error = NULL,
		    started_at = now(), updated_at = now()
		WHERE pipeline = $1 AND state = $2
	`
	tag, err := r.db.exec(ctx).Exec(ctx, query, kind, from, selectedSteps)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s is no longer %s", ErrInvalidState, kind, from)
	}
	return nil
}

// UpdateProgress сохраняет счётчики прогресса текущего прогона.
func (r *RunRepo) UpdateProgress(ctx context.Context, kind domain.PipelineKind, completedSteps, processed, discarded int) error {
	query := `
		UPDATE pipeline_runs
		SET completed_steps = $2, processed = $3, discarded = $4, updated_at = now()
		WHERE pipeline = $1
	`
	if _, err := r.db.exec(ctx).Exec(ctx, query, kind, completedSteps, processed, discarded); err != nil {
		return fmt.Errorf("update run progress: %w", err)
	}
	return nil
}

// UpdateDrain сохраняет прогресс разбора очереди тратамента: знаменатель
// прогресса — обработанные плюс ещё стоящие в очереди планы.
func (r *RunRepo) UpdateDrain(ctx context.Context, kind domain.PipelineKind, processed, discarded, pending int) error {
	query := `
		UPDATE pipeline_runs
		SET completed_steps = $2, selected_steps = $2 + $4,
		    processed = $2, discarded = $3, updated_at = now()
		WHERE pipeline = $1
	`
	if _, err := r.db.exec(ctx).Exec(ctx, query, kind, processed, discarded, pending); err != nil {
		return fmt.Errorf("update run drain: %w", err)
	}
	return nil
}

// SetLastError записывает ошибку, остановившую прогон.
func (r *RunRepo) SetLastError(ctx context.Context, kind domain.PipelineKind, message string) error {
	query := `UPDATE pipeline_runs SET last_error = $2, updated_at = now() WHERE pipeline = $1`
	if _, err := r.db.exec(ctx).Exec(ctx, query, kind, nullString(message)); err != nil {
		return fmt.Errorf("set run error: %w", err)
	}
	return nil
}
