package client

import (
	"context"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"banking-service/internal/config"
	"banking-service/internal/util"
)

// ClickHouseClient holds the connection used by the audit archive sink.
type ClickHouseClient struct {
	conn driver.Conn
}

func NewClickHouseClient(cfg *config.Config) (*ClickHouseClient, error) {
	chConfig := cfg.Clickhouse

	conn, err := ch.Open(&ch.Options{
		Addr: []string{chConfig.URL},
		Auth: ch.Auth{
			Username: chConfig.Username,
			Password: chConfig.Password,
			Database: chConfig.Database,
		},
		DialTimeout:      10 * time.Second,
		MaxOpenConns:     20,
		MaxIdleConns:     5,
		ConnMaxLifetime:  time.Hour,
		ConnOpenStrategy: ch.ConnOpenInOrder,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}

	util.Info("ClickHouse client initialized",
		util.String("addr", chConfig.URL),
		util.String("database", chConfig.Database))

	return &ClickHouseClient{conn: conn}, nil
}

// AsyncInsert queues an insert on the ClickHouse side without waiting for
// the batch flush.
func (c *ClickHouseClient) AsyncInsert(ctx context.Context, query string, args ...interface{}) error {
	return c.conn.AsyncInsert(ctx, query, false, args...)
}

func (c *ClickHouseClient) HealthCheck(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return fmt.Errorf("clickhouse ping failed: %w", err)
	}
	return nil
}

func (c *ClickHouseClient) Close() error {
	if err := c.conn.Close(); err != nil {
		return fmt.Errorf("failed to close clickhouse connection: %w", err)
	}
	util.Info("ClickHouse client closed")
	return nil
}
