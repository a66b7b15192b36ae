package service_test

import (
	"context"
	"testing"

	"sfetl/internal/service"
)

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "test:event", map[string]string{"foo": "bar"})
	m.Emit(ctx, "test:event2", nil)
	m.Emit(ctx, "test:event", "again")

	if len(m.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != "test:event" {
		t.Errorf("expected 'test:event', got %q", m.Events[0].Event)
	}
	if got := m.Named("test:event"); len(got) != 2 || got[1].Data != "again" {
		t.Errorf("Named returned %+v", got)
	}
}
