package queue

import (
	"context"
	"testing"
	"time"
)

// --- Test fixtures ---

// memStore — in-memory queue store.
type memStore struct {
	queued   []int64
	eligible []int64 // plans that EnqueueEligible would pick up
}

func (s *memStore) has(planID int64) bool {
	for _, id := range s.queued {
		if id == planID {
			return true
		}
	}
	return false
}

func (s *memStore) Enqueue(_ context.Context, planID int64) (bool, error) {
	if s.has(planID) {
		return false, nil
	}
	s.queued = append(s.queued, planID)
	return true, nil
}

func (s *memStore) EnqueueEligible(_ context.Context) ([]int64, error) {
	var inserted []int64
	for _, id := range s.eligible {
		if !s.has(id) {
			s.queued = append(s.queued, id)
			inserted = append(inserted, id)
		}
	}
	s.eligible = nil
	return inserted, nil
}

func (s *memStore) ListIDs(_ context.Context) ([]int64, error) {
	out := make([]int64, len(s.queued))
	copy(out, s.queued)
	return out, nil
}

func (s *memStore) Remove(_ context.Context, planID int64) error {
	for i, id := range s.queued {
		if id == planID {
			s.queued = append(s.queued[:i], s.queued[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memStore) CountEligible(_ context.Context) (int, error) {
	return len(s.eligible), nil
}

// --- Manager Tests ---

func TestManager_FIFO(t *testing.T) {
	m := NewManager(&memStore{}, nil)
	ctx := context.Background()

	for _, id := range []int64{10, 20, 30} {
		if ok, err := m.Enqueue(ctx, id); err != nil || !ok {
			t.Fatalf("enqueue %d: %v, %v", id, ok, err)
		}
	}

	head, ok := m.PeekCurrent()
	if !ok || head != 10 {
		t.Fatalf("expected head 10, got %d (%v)", head, ok)
	}

	if err := m.Advance(ctx); err != nil {
		t.Fatalf("advance: %v", err)
	}
	head, _ = m.PeekCurrent()
	if head != 20 {
		t.Errorf("expected head 20 after advance, got %d", head)
	}
	if m.Size() != 2 {
		t.Errorf("expected size 2, got %d", m.Size())
	}
}

func TestManager_Enqueue_Idempotent(t *testing.T) {
	m := NewManager(&memStore{}, nil)
	ctx := context.Background()

	if ok, _ := m.Enqueue(ctx, 5); !ok {
		t.Fatal("first enqueue should insert")
	}
	if ok, _ := m.Enqueue(ctx, 5); ok {
		t.Error("second enqueue of the same plan should be a no-op")
	}
	if m.Size() != 1 {
		t.Errorf("expected size 1, got %d", m.Size())
	}
}

func TestManager_Restore(t *testing.T) {
	store := &memStore{queued: []int64{7, 8}}
	m := NewManager(store, nil)

	if err := m.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if m.Size() != 2 {
		t.Errorf("expected size 2 after restore, got %d", m.Size())
	}
	head, _ := m.PeekCurrent()
	if head != 7 {
		t.Errorf("expected head 7, got %d", head)
	}
}

func TestManager_MigrateEligible(t *testing.T) {
	store := &memStore{eligible: []int64{1, 2, 3}}
	m := NewManager(store, nil)
	ctx := context.Background()

	n, err := m.MigrateEligible(ctx)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 migrated, got %d", n)
	}
	if m.Size() != 3 {
		t.Errorf("expected size 3, got %d", m.Size())
	}

	// Second migration finds nothing new
	n, err = m.MigrateEligible(ctx)
	if err != nil || n != 0 {
		t.Errorf("expected 0 on repeat migration, got %d, %v", n, err)
	}

	more, err := m.ExpectMore(ctx)
	if err != nil || more {
		t.Errorf("expected no more eligible plans, got %v, %v", more, err)
	}
}

func TestManager_Snapshot(t *testing.T) {
	m := NewManager(&memStore{}, nil)
	ctx := context.Background()

	current, pending := m.Snapshot()
	if current != nil || len(pending) != 0 {
		t.Error("empty queue snapshot should be empty")
	}

	m.Enqueue(ctx, 1)
	m.Enqueue(ctx, 2)
	m.Enqueue(ctx, 3)

	current, pending = m.Snapshot()
	if current == nil || *current != 1 {
		t.Fatalf("expected current 1, got %v", current)
	}
	if len(pending) != 2 || pending[0] != 2 || pending[1] != 3 {
		t.Errorf("unexpected pending %v", pending)
	}
}

func TestManager_AwaitEntry_WakesOnEnqueue(t *testing.T) {
	m := NewManager(&memStore{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- m.AwaitEntry(ctx)
	}()

	// Give the waiter time to block, then feed the queue
	time.Sleep(10 * time.Millisecond)
	if ok, err := m.Enqueue(context.Background(), 99); err != nil || !ok {
		t.Fatalf("enqueue: %v, %v", ok, err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("await should return nil after enqueue, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("await did not wake up")
	}
}

func TestManager_AwaitEntry_CancelledContext(t *testing.T) {
	m := NewManager(&memStore{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.AwaitEntry(ctx); err == nil {
		t.Error("expected context error")
	}
}
