package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/SergeiKhy/shuffle/internal/config"
)

type ClickHouseDB struct {
	Conn clickhouse.Conn
}

func NewClickHouseDB(cfg config.ClickHouseConfig) (*ClickHouseDB, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("CLICKHOUSE_HOST is not set")
	}

	options := &clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "shuffle", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: 5 * time.Second,
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	db := &ClickHouseDB{Conn: conn}
	if err := db.ensureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// ensureSchema creates the click log table, partitioned by month.
func (db *ClickHouseDB) ensureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS click_logs (
			id UUID,
			link_id String,
			clicked_at DateTime64(3, 'UTC'),
			user_agent String,
			referrer String,
			ip_address String
		)
		ENGINE = MergeTree
		PARTITION BY toYYYYMM(clicked_at)
		ORDER BY (link_id, clicked_at)
	`
	if err := db.Conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create click_logs table: %w", err)
	}
	return nil
}

func (db *ClickHouseDB) Ping(ctx context.Context) error {
	return db.Conn.Ping(ctx)
}

func (db *ClickHouseDB) Close() error {
	return db.Conn.Close()
}
