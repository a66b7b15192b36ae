package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from whoever is listening
// ─────────────────────────────────────────────────────────────

// Events emitted by ConfigService.
const (
	EventWarning   = "config:warning"    // data: etl.MigrationWarning
	EventDegraded  = "catalog:degraded"  // data: error string
	EventSaved     = "config:saved"      // data: document key
	EventChanged   = "config:changed"    // data: path of the changed file
	EventRunFinish = "etl:run-completed" // data: *etl.LoadReport
)

// EventEmitter receives service notifications. The command line logs
// them; the MCP server and tests record them.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes every event to a zerolog logger at debug level.
type LogEmitter struct {
	Log zerolog.Logger
}

func (e LogEmitter) Emit(_ context.Context, event string, data any) {
	e.Log.Debug().Str("event", event).Interface("data", data).Msg("event")
}

// NopEmitter drops every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any) {}

// MockEmitter is a test-friendly EventEmitter that records all calls.
// It is safe for use from the watcher goroutine.
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

// Named returns the recorded events called event, in order.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
