package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"banking-service/internal/client"
	"banking-service/internal/models"
)

// ElasticSink indexes audit events for search by the security team.
type ElasticSink struct {
	client *client.ESClient
	index  string
}

func NewElasticSink(es *client.ESClient, index string) *ElasticSink {
	return &ElasticSink{client: es, index: index}
}

func (s *ElasticSink) Write(ctx context.Context, event models.AuditEvent) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(event); err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: event.EventID.String(),
		Body:       &buf,
	}
	res, err := req.Do(ctx, s.client.Client)
	if err != nil {
		return fmt.Errorf("failed to index audit event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch rejected audit event: %s", res.String())
	}
	return nil
}

// Close is a no-op; the client is owned and closed by the factory.
func (s *ElasticSink) Close() error {
	return nil
}
