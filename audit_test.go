package authvault

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

type blockingSink struct {
	gate chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{gate: make(chan struct{})}
}

func (s *blockingSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestDispatcherDeliversEvents(t *testing.T) {
	sink := NewChannelSink(8)
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 8}, sink)
	defer d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: AuditSessionCreated, UserID: "u1"})

	select {
	case event := <-sink.Events():
		if event.EventType != AuditSessionCreated || event.UserID != "u1" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("event never delivered")
	}
}

func TestDispatcherDisabled(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, nil)
	if d != nil {
		t.Fatal("disabled config produced a dispatcher")
	}

	// All operations on a nil dispatcher are no-ops.
	d.Emit(context.Background(), AuditEvent{EventType: AuditSessionCreated})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := newBlockingSink()
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	ctx := context.Background()
	// First event occupies the worker, second fills the buffer, the rest
	// must be counted as drops.
	for i := 0; i < 5; i++ {
		d.Emit(ctx, AuditEvent{EventType: AuditIPChange})
	}

	deadline := time.Now().Add(time.Second)
	for d.Dropped() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := d.Dropped(); got < 3 {
		t.Fatalf("expected at least 3 drops, got %d", got)
	}

	close(sink.gate)
	d.Close()
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 16}, sink)

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		d.Emit(ctx, AuditEvent{EventType: AuditSessionRevoked})
	}
	d.Close()

	if got := sink.count.Load(); got != 10 {
		t.Fatalf("expected 10 delivered events after close, got %d", got)
	}
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	sink := &countingSink{}
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: AuditSessionCreated})
	if got := sink.count.Load(); got != 0 {
		t.Fatalf("event delivered after close: %d", got)
	}
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), AuditEvent{
		EventType: AuditSecretRotated,
		SecretKey: "auth.signing_key",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{
		EventType: AuditSecretRotationFail,
		SecretKey: "external.parking_gateway",
		Error:     "backend unavailable",
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var event AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &event); err != nil {
		t.Fatalf("first line is not valid json: %v", err)
	}
	if event.EventType != AuditSecretRotated || !event.Success {
		t.Fatalf("unexpected first event: %+v", event)
	}
}

func TestNoOpSink(t *testing.T) {
	NoOpSink{}.Emit(context.Background(), AuditEvent{EventType: AuditDeviceMismatch})
}
