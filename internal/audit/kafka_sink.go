package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"banking-service/internal/client"
	"banking-service/internal/models"
)

// KafkaSink streams audit events to a Kafka topic, keyed by client IP so
// one caller's events land in order on one partition.
type KafkaSink struct {
	producer *client.KafkaProducer
	topic    string
}

func NewKafkaSink(producer *client.KafkaProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (s *KafkaSink) Write(ctx context.Context, event models.AuditEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}
	headers := map[string]string{"kind": event.Kind}
	if err := s.producer.ProduceMessage(ctx, s.topic, []byte(event.ClientIP), payload, headers); err != nil {
		return fmt.Errorf("failed to produce audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the producer is owned and closed by the factory.
func (s *KafkaSink) Close() error {
	return nil
}
