package service

import (
	"context"
	"sync"
)

// ExportedRefreshGuard is an exported alias so _test packages can test the guard.
type ExportedRefreshGuard = refreshGuard

// ─────────────────────────────────────────────────────────────
// refreshGuard: one refresh per table at a time
// ─────────────────────────────────────────────────────────────

// refreshGuard ensures a table is not reloaded twice concurrently, e.g.
// by a cron tick firing while a file-change refresh is still running.
type refreshGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks tableID as refreshing. It returns false when a refresh of
// that table is already in flight.
func (g *refreshGuard) TryLock(tableID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[tableID]; ok {
		return false
	}
	g.running[tableID] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock ends a refresh started by a successful TryLock.
func (g *refreshGuard) Unlock(tableID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, tableID)
	g.wg.Done()
}

// WaitAll blocks until in-flight refreshes finish or ctx is cancelled.
func (g *refreshGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
