package audit

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

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

// gateSink blocks every Emit until the gate is opened, which lets tests
// fill the dispatcher buffer deterministically.
type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Emit(context.Context, Event) {
	<-s.gate
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 64, DropIfFull: true}, sink)

	for i := 0; i < 50; i++ {
		d.Emit(context.Background(), Event{EventType: "login_success", Timestamp: time.Now()})
	}
	d.Close()

	if got := sink.count.Load(); got != 50 {
		t.Fatalf("delivered = %d, want 50", got)
	}
	if d.Dropped() != 0 {
		t.Fatalf("dropped = %d, want 0", d.Dropped())
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	// First event occupies the worker, second fills the buffer; everything
	// after that has nowhere to go.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: "login_failure"})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a full buffer")
	}

	close(sink.gate)
	d.Close()
}

func TestDispatcherEmitAfterClose(t *testing.T) {
	sink := &countingSink{}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Close()

	d.Emit(context.Background(), Event{EventType: "login_success"})
	if got := sink.count.Load(); got != 0 {
		t.Fatalf("delivered after close = %d, want 0", got)
	}
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, &countingSink{})
	if d != nil {
		t.Fatal("disabled dispatcher should be nil")
	}
	d.Emit(context.Background(), Event{})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher reported drops")
	}
}

func TestChannelSink(t *testing.T) {
	sink := NewChannelSink(2)
	sink.Emit(context.Background(), Event{EventType: "otp_generated"})

	select {
	case ev := <-sink.Events():
		if ev.EventType != "otp_generated" {
			t.Fatalf("event type = %q", ev.EventType)
		}
	default:
		t.Fatal("no event buffered")
	}

	// A full channel with a cancelled context must not block.
	sink.Emit(context.Background(), Event{})
	sink.Emit(context.Background(), Event{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink.Emit(ctx, Event{})
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONWriterSink(&buf)

	sink.Emit(context.Background(), Event{
		EventType: "register_success",
		UserID:    "uid-1",
		IP:        "198.51.100.7",
		Success:   true,
		Metadata:  map[string]string{"identifier": "a@b.com"},
	})
	sink.Emit(context.Background(), Event{EventType: "login_failure"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(lines))
	}

	var ev Event
	if err := json.Unmarshal([]byte(lines[0]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.EventType != "register_success" || ev.UserID != "uid-1" || !ev.Success {
		t.Fatalf("decoded event = %+v", ev)
	}
	if ev.Metadata["identifier"] != "a@b.com" {
		t.Fatalf("metadata = %v", ev.Metadata)
	}
}
