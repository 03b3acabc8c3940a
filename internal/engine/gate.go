package engine

import (
	"context"
	"sync"
)

// gate — кооперативные ворота паузы.
//
// Открытые ворота пропускают wait немедленно; закрытые блокируют до
// resume или отмены контекста. Воркер проверяет ворота на границах
// юнитов, поэтому текущий юнит всегда дорабатывает до конца.
type gate struct {
	mu sync.Mutex
	ch chan struct{} // закрыт, когда ворота открыты
}

func newGate() *gate {
	g := &gate{ch: make(chan struct{})}
	close(g.ch)
	return g
}

// pause закрывает ворота. Повторный вызов — no-op.
func (g *gate) pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
		g.ch = make(chan struct{})
	default:
	}
}

// resume открывает ворота. Повторный вызов — no-op.
func (g *gate) resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	select {
	case <-g.ch:
	default:
		close(g.ch)
	}
}

// wait блокируется, пока ворота закрыты.
func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	ch := g.ch
	g.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
