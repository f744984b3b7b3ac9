package audit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"banking-service/internal/models"
)

const testTimeout = 2 * time.Second

type memorySink struct {
	mu     sync.Mutex
	events []models.AuditEvent
	closed bool
}

func (s *memorySink) Write(_ context.Context, event models.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// blockingSink holds every write until released, so tests can fill the queue
// deterministically. started signals that the drain worker picked up an
// event and is now stuck inside Write.
type blockingSink struct {
	memorySink
	started chan struct{}
	gate    chan struct{}
}

func newBlockingSink() *blockingSink {
	return &blockingSink{
		started: make(chan struct{}, 16),
		gate:    make(chan struct{}),
	}
}

func (s *blockingSink) Write(ctx context.Context, event models.AuditEvent) error {
	select {
	case s.started <- struct{}{}:
	default:
	}
	<-s.gate
	return s.memorySink.Write(ctx, event)
}

type failingSink struct{ calls int }

func (s *failingSink) Write(_ context.Context, _ models.AuditEvent) error {
	s.calls++
	return fmt.Errorf("sink unavailable")
}

func (s *failingSink) Close() error { return nil }

func TestTrailStampsAndDelivers(t *testing.T) {
	sink := &memorySink{}
	trail := NewTrail(16, zap.NewNop(), []Sink{sink})

	trail.Record(models.AuditEvent{
		Kind:     models.EventAuthorizationFailure,
		Actor:    "alice@example.com",
		ClientIP: "192.0.2.7",
		Outcome:  models.OutcomeDenied,
	})
	trail.Close()

	if len(sink.events) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(sink.events))
	}
	e := sink.events[0]
	if e.EventID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("event ID should be stamped")
	}
	if e.Timestamp.IsZero() {
		t.Error("timestamp should be stamped")
	}
	if !sink.closed {
		t.Error("Close should close the sinks")
	}
}

func TestTrailPreservesOrder(t *testing.T) {
	sink := &memorySink{}
	trail := NewTrail(256, zap.NewNop(), []Sink{sink})

	const n = 100
	for i := 0; i < n; i++ {
		trail.Record(models.AuditEvent{
			Kind:    models.EventSensitiveOperation,
			Details: map[string]string{"seq": strconv.Itoa(i)},
		})
	}
	trail.Close()

	if len(sink.events) != n {
		t.Fatalf("expected %d events, got %d", n, len(sink.events))
	}
	for i, e := range sink.events {
		if e.Details["seq"] != strconv.Itoa(i) {
			t.Fatalf("event %d out of order: seq = %s", i, e.Details["seq"])
		}
	}
}

// fillTrail records one event that the drain worker picks up and blocks on,
// then a second that occupies the queue's single slot.
func fillTrail(t *testing.T, trail *Trail, sink *blockingSink) {
	t.Helper()
	trail.Record(models.AuditEvent{Kind: models.EventSensitiveOperation})
	select {
	case <-sink.started:
	case <-time.After(testTimeout):
		t.Fatal("drain worker never picked up the first event")
	}
	trail.Record(models.AuditEvent{Kind: models.EventSensitiveOperation})
}

func TestTrailDropsNonCriticalWhenFull(t *testing.T) {
	sink := newBlockingSink()
	trail := NewTrail(1, zap.NewNop(), []Sink{sink})
	fillTrail(t, trail, sink)

	for i := 0; i < 5; i++ {
		trail.Record(models.AuditEvent{Kind: models.EventSensitiveOperation})
	}
	if got := trail.Dropped(); got != 5 {
		t.Fatalf("Dropped() = %d, want 5", got)
	}

	close(sink.gate)
	trail.Close()
}

func TestTrailDowngradesCriticalWhenFull(t *testing.T) {
	sink := newBlockingSink()
	trail := NewTrail(1, zap.NewNop(), []Sink{sink})
	fillTrail(t, trail, sink)

	// Denial-class events are downgraded to a log line, never silently lost.
	trail.Record(models.AuditEvent{Kind: models.EventAuthorizationFailure})
	trail.Record(models.AuditEvent{Kind: models.EventRateLimitExceeded})

	if got := trail.downgraded.Load(); got != 2 {
		t.Fatalf("downgraded = %d, want 2", got)
	}
	if got := trail.Dropped(); got != 0 {
		t.Fatalf("critical events must not count as dropped, Dropped() = %d", got)
	}

	close(sink.gate)
	trail.Close()
}

func TestTrailRecordNeverBlocks(t *testing.T) {
	sink := newBlockingSink()
	trail := NewTrail(1, zap.NewNop(), []Sink{sink})
	defer func() {
		close(sink.gate)
		trail.Close()
	}()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			trail.Record(models.AuditEvent{Kind: models.EventSensitiveOperation})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(testTimeout):
		t.Fatal("Record blocked with a full queue and a stuck sink")
	}
}

func TestTrailSinkErrorsDoNotPropagate(t *testing.T) {
	failing := &failingSink{}
	healthy := &memorySink{}
	trail := NewTrail(16, zap.NewNop(), []Sink{failing, healthy})

	trail.Record(models.AuditEvent{Kind: models.EventSensitiveOperation})
	trail.Close()

	if failing.calls != 1 {
		t.Fatalf("failing sink should have been attempted once, got %d", failing.calls)
	}
	if len(healthy.events) != 1 {
		t.Fatalf("healthy sink should still receive the event, got %d", len(healthy.events))
	}
}
