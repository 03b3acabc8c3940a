// Package queue реализует FIFO-очередь планов, ожидающих тратамента.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Store — персистентный слой очереди.
//
// Членство в очереди и статус плана держатся согласованными на уровне
// SQL: вставка возможна только для планов в допускающем очередь статусе,
// повторная вставка — no-op.
type Store interface {
	// Enqueue ставит план в очередь; false — план уже в очереди
	// или терминален.
	Enqueue(ctx context.Context, planID int64) (bool, error)

	// EnqueueEligible ставит в очередь все подходящие планы,
	// возвращая ID вставленных в порядке вставки.
	EnqueueEligible(ctx context.Context) ([]int64, error)

	// ListIDs возвращает очередь в порядке FIFO.
	ListIDs(ctx context.Context) ([]int64, error)

	// Remove удаляет план из очереди.
	Remove(ctx context.Context, planID int64) error

	// CountEligible — сколько планов ещё может попасть в очередь.
	CountEligible(ctx context.Context) (int, error)
}

// Manager — менеджер очереди тратамента.
//
// Персистентные строки — источник истины; в памяти держится зеркало
// порядка FIFO с указателем на текущий план и каналом уведомлений,
// выводящим прогон тратамента из AWAITING_QUEUE. Мутации идут только
// из однописательного цикла движка, чтение — свободно.
type Manager struct {
	store  Store
	logger *slog.Logger

	mu  sync.Mutex
	ids []int64 // зеркало FIFO; ids[0] — текущий план

	// notify будит AwaitEntry при переходе очереди из пустой в непустую.
	notify chan struct{}
}

// NewManager создаёт менеджер очереди.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		logger: logger,
		notify: make(chan struct{}, 1),
	}
}

// Restore загружает зеркало очереди из хранилища (вызов при старте демона).
func (m *Manager) Restore(ctx context.Context) error {
	ids, err := m.store.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("restore queue: %w", err)
	}

	m.mu.Lock()
	wasEmpty := len(m.ids) == 0
	m.ids = ids
	m.mu.Unlock()

	if wasEmpty && len(ids) > 0 {
		m.signal()
	}
	m.logger.Info("treatment queue restored", "size", len(ids))
	return nil
}

// Enqueue ставит план в очередь. Идемпотентно.
func (m *Manager) Enqueue(ctx context.Context, planID int64) (bool, error) {
	inserted, err := m.store.Enqueue(ctx, planID)
	if err != nil || !inserted {
		return false, err
	}

	m.mu.Lock()
	wasEmpty := len(m.ids) == 0
	m.ids = append(m.ids, planID)
	m.mu.Unlock()

	if wasEmpty {
		m.signal()
	}
	return true, nil
}

// MigrateEligible переносит в очередь все подходящие планы из
// результатов захвата. Возвращает количество новых записей.
func (m *Manager) MigrateEligible(ctx context.Context) (int, error) {
	ids, err := m.store.EnqueueEligible(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	wasEmpty := len(m.ids) == 0
	m.ids = append(m.ids, ids...)
	m.mu.Unlock()

	if wasEmpty {
		m.signal()
	}
	m.logger.Info("plans migrated to treatment queue", "count", len(ids))
	return len(ids), nil
}

// PeekCurrent возвращает текущий план без извлечения.
func (m *Manager) PeekCurrent() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ids) == 0 {
		return 0, false
	}
	return m.ids[0], true
}

// Advance удаляет текущий план и продвигает очередь.
func (m *Manager) Advance(ctx context.Context) error {
	m.mu.Lock()
	if len(m.ids) == 0 {
		m.mu.Unlock()
		return nil
	}
	head := m.ids[0]
	m.mu.Unlock()

	if err := m.store.Remove(ctx, head); err != nil {
		return err
	}

	m.mu.Lock()
	if len(m.ids) > 0 && m.ids[0] == head {
		m.ids = m.ids[1:]
	}
	m.mu.Unlock()
	return nil
}

// Size возвращает длину очереди.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}

// Snapshot возвращает текущий план и хвост очереди.
func (m *Manager) Snapshot() (current *int64, pending []int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ids) == 0 {
		return nil, nil
	}
	head := m.ids[0]
	pending = make([]int64, len(m.ids)-1)
	copy(pending, m.ids[1:])
	return &head, pending
}

// ExpectMore сообщает, ожидаются ли ещё записи (есть планы PENDING
// вне очереди). Разделяет AWAITING_QUEUE и COMPLETED при осушении.
func (m *Manager) ExpectMore(ctx context.Context) (bool, error) {
	n, err := m.store.CountEligible(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AwaitEntry блокирует до появления записи в очереди или отмены ctx.
func (m *Manager) AwaitEntry(ctx context.Context) error {
	for {
		if m.Size() > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.notify:
		}
	}
}

func (m *Manager) signal() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}
