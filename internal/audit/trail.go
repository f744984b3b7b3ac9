// Package audit implements the security audit trail: a fire-and-forget,
// order-preserving event queue drained by a background worker into one or
// more sinks.
package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"banking-service/internal/models"
	"banking-service/internal/util"
)

// Sink receives audit events. Write failures are logged by the trail and
// never propagate to request handling.
type Sink interface {
	Write(ctx context.Context, event models.AuditEvent) error
	Close() error
}

// FieldEncryptor encrypts PII carried in event detail maps before events
// leave the process.
type FieldEncryptor interface {
	EncryptField(ctx context.Context, plaintext string) (string, error)
}

// Trail is the audit event pipeline. Record never blocks: events flow
// through a bounded queue into a single drain goroutine, which preserves
// the order events were recorded in. When the queue is full, non-critical
// events are dropped and counted; denial-class events are downgraded to a
// structured log line so the fact survives somewhere.
type Trail struct {
	queue     chan models.AuditEvent
	sinks     []Sink
	logger    *zap.Logger
	encryptor FieldEncryptor

	dropped    atomic.Int64
	downgraded atomic.Int64

	wg        sync.WaitGroup
	closeOnce sync.Once
	done      chan struct{}
}

// TrailOption customizes a Trail.
type TrailOption func(*Trail)

// WithEncryptor enables detail-map encryption before sink writes.
func WithEncryptor(e FieldEncryptor) TrailOption {
	return func(t *Trail) { t.encryptor = e }
}

func NewTrail(queueSize int, logger *zap.Logger, sinks []Sink, opts ...TrailOption) *Trail {
	if queueSize < 1 {
		queueSize = 1
	}
	t := &Trail{
		queue:  make(chan models.AuditEvent, queueSize),
		sinks:  sinks,
		logger: logger,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.wg.Add(1)
	go t.drain()
	return t
}

// Record enqueues an event. It is fire-and-forget: it never blocks and
// never returns an error to the caller.
func (t *Trail) Record(event models.AuditEvent) {
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case t.queue <- event:
	default:
		if isCritical(event.Kind) {
			// Downgrade rather than lose the denial entirely.
			t.downgraded.Add(1)
			t.logger.Warn("Audit queue full, downgrading event to log",
				util.String("kind", event.Kind),
				util.String("actor", event.Actor),
				util.String("client_ip", event.ClientIP),
				util.String("path", event.Path),
				util.String("method", event.Method),
				util.String("outcome", event.Outcome),
			)
		} else {
			t.dropped.Add(1)
		}
	}
}

// Dropped reports how many non-critical events were discarded under load.
func (t *Trail) Dropped() int64 {
	return t.dropped.Load()
}

// Close stops the drain worker after flushing queued events, then closes
// the sinks.
func (t *Trail) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.wg.Wait()
		for _, sink := range t.sinks {
			if err := sink.Close(); err != nil {
				t.logger.Error("Failed to close audit sink", util.ErrorField(err))
			}
		}
		if n := t.dropped.Load(); n > 0 {
			t.logger.Warn("Audit events dropped under load", util.Int64("count", n))
		}
	})
}

func (t *Trail) drain() {
	defer t.wg.Done()
	for {
		select {
		case event := <-t.queue:
			t.write(event)
		case <-t.done:
			// Flush whatever is still queued.
			for {
				select {
				case event := <-t.queue:
					t.write(event)
				default:
					return
				}
			}
		}
	}
}

func (t *Trail) write(event models.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if t.encryptor != nil && len(event.Details) > 0 {
		event.Details = t.encryptDetails(ctx, event.Details)
	}

	for _, sink := range t.sinks {
		if err := sink.Write(ctx, event); err != nil {
			t.logger.Error("Audit sink write failed",
				util.String("kind", event.Kind),
				util.String("event_id", event.EventID.String()),
				util.ErrorField(err))
		}
	}
}

func (t *Trail) encryptDetails(ctx context.Context, details map[string]string) map[string]string {
	encrypted := make(map[string]string, len(details))
	for k, v := range details {
		ciphertext, err := t.encryptor.EncryptField(ctx, v)
		if err != nil {
			t.logger.Error("Failed to encrypt audit detail, redacting",
				util.String("detail_key", k),
				util.ErrorField(err))
			encrypted[k] = "<redacted>"
			continue
		}
		encrypted[k] = ciphertext
	}
	return encrypted
}

func isCritical(kind string) bool {
	switch kind {
	case models.EventAuthorizationFailure,
		models.EventAuthenticationFailure,
		models.EventRateLimitExceeded:
		return true
	}
	return false
}
