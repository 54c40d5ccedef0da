package service

import (
	"context"
	"sync"
)

// Events emitted by the grid services.
const (
	EventRowsChanged  = "grid:rows-changed" // visible rows of an open table changed
	EventRefreshed    = "grid:refreshed"    // a table was reloaded from its source
	EventTableChanged = "grid:table-changed"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from the transport
// ─────────────────────────────────────────────────────────────

// EventEmitter pushes events to whoever is watching a grid. The MCP
// server implements it with client notifications; tests use MockEmitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Count returns how many times event was emitted.
func (m *MockEmitter) Count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.Event == event {
			n++
		}
	}
	return n
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, any) {}
