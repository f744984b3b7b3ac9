package audit

import (
	"context"
	"fmt"

	"banking-service/internal/client"
	"banking-service/internal/models"
)

// ClickHouseSink archives audit events for analytics. Inserts are async on
// the ClickHouse side; the trail's drain worker is the only writer.
type ClickHouseSink struct {
	client *client.ClickHouseClient
	table  string
}

func NewClickHouseSink(ch *client.ClickHouseClient, table string) *ClickHouseSink {
	return &ClickHouseSink{client: ch, table: table}
}

func (s *ClickHouseSink) Write(ctx context.Context, event models.AuditEvent) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (event_id, event_time, kind, actor, client_ip, user_agent, path, method, outcome, operation, details) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		s.table)

	err := s.client.AsyncInsert(ctx, query,
		event.EventID.String(),
		event.Timestamp,
		event.Kind,
		event.Actor,
		event.ClientIP,
		event.UserAgent,
		event.Path,
		event.Method,
		event.Outcome,
		event.Operation,
		event.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned and closed by the factory.
func (s *ClickHouseSink) Close() error {
	return nil
}
