package audit

import (
	"context"

	"go.uber.org/zap"

	"banking-service/internal/models"
	"banking-service/internal/util"
)

// LogSink writes audit events as structured log lines. It is always wired
// as the sink of last resort so an event trail exists even when no external
// sink is configured.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Write(_ context.Context, event models.AuditEvent) error {
	s.logger.Info("audit event",
		util.String("event_id", event.EventID.String()),
		util.String("kind", event.Kind),
		util.String("actor", event.Actor),
		util.String("client_ip", event.ClientIP),
		util.String("path", event.Path),
		util.String("method", event.Method),
		util.String("outcome", event.Outcome),
		util.String("operation", event.Operation),
		util.Any("details", event.Details),
	)
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
