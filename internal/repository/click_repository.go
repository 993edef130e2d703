package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidPartition  = errors.New("invalid partition id")
	ErrPartitionNotFound = errors.New("partition not found")
)

// undefined_table
const pgUndefinedTable = "42P01"

// pgDefaultPartition holds rows outside every monthly partition
const pgDefaultPartition = "click_logs_default"

var pgPartitionPattern = regexp.MustCompile(`^click_logs_y\d{4}m\d{2}$`)

// ClickRepository is the click log store. ListAll reads the default source,
// ListPartition reads a single monthly partition. The default source and
// the partitions listed by ListPartitions do not overlap.
type ClickRepository interface {
	RecordClick(ctx context.Context, click *models.ClickEvent) error
	ListAll(ctx context.Context) ([]models.ClickEvent, error)
	ListPartition(ctx context.Context, partitionID string) ([]models.ClickEvent, error)
	ListPartitions(ctx context.Context) ([]string, error)
	EnsurePartition(ctx context.Context, month time.Time) (string, error)
}

type clickRepository struct {
	db *PostgresDB
}

func NewClickRepository(db *PostgresDB) ClickRepository {
	return &clickRepository{db: db}
}

// PartitionName returns the Postgres partition table holding the given month.
func PartitionName(month time.Time) string {
	return fmt.Sprintf("click_logs_y%04dm%02d", month.Year(), int(month.Month()))
}

const clickColumns = `id::text, link_id, clicked_at, COALESCE(user_agent, ''), COALESCE(referrer, ''), COALESCE(ip_address, '')`

func (r *clickRepository) RecordClick(ctx context.Context, click *models.ClickEvent) error {
	query := `
		INSERT INTO click_logs (id, link_id, clicked_at, user_agent, referrer, ip_address)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''))
	`

	_, err := r.db.Pool.Exec(ctx, query,
		click.ID,
		click.LinkID,
		click.ClickedAt,
		click.UserAgent,
		click.Referrer,
		click.IPAddress,
	)

	if err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (r *clickRepository) ListAll(ctx context.Context) ([]models.ClickEvent, error) {
	query := `SELECT ` + clickColumns + ` FROM ` + pgDefaultPartition + ` ORDER BY clicked_at DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	return scanClicks(rows)
}

func (r *clickRepository) ListPartition(ctx context.Context, partitionID string) ([]models.ClickEvent, error) {
	if !pgPartitionPattern.MatchString(partitionID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPartition, partitionID)
	}

	query := `SELECT ` + clickColumns + ` FROM ` + pgx.Identifier{partitionID}.Sanitize() + ` ORDER BY clicked_at DESC`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, partitionID)
		}
		return nil, fmt.Errorf("failed to list partition %s: %w", partitionID, err)
	}

	clicks, err := scanClicks(rows)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			return nil, fmt.Errorf("%w: %s", ErrPartitionNotFound, partitionID)
		}
		return nil, err
	}
	return clicks, nil
}

func (r *clickRepository) ListPartitions(ctx context.Context) ([]string, error) {
	query := `
		SELECT c.relname
		FROM pg_inherits i
		JOIN pg_class c ON c.oid = i.inhrelid
		JOIN pg_class p ON p.oid = i.inhparent
		WHERE p.relname = 'click_logs' AND c.relname LIKE 'click\_logs\_y%'
		ORDER BY c.relname
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list partitions: %w", err)
	}
	defer rows.Close()

	var partitions []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan partition name: %w", err)
		}
		partitions = append(partitions, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating partitions: %w", err)
	}

	return partitions, nil
}

// EnsurePartition creates the monthly partition for the given month if it does not exist.
func (r *clickRepository) EnsurePartition(ctx context.Context, month time.Time) (string, error) {
	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	name := PartitionName(start)

	// DDL не поддерживает параметры, границы формируются из time.Time
	query := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s PARTITION OF click_logs FOR VALUES FROM ('%s') TO ('%s')`,
		pgx.Identifier{name}.Sanitize(),
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
	)

	if _, err := r.db.Pool.Exec(ctx, query); err != nil {
		return "", fmt.Errorf("failed to create partition %s: %w", name, err)
	}

	return name, nil
}

func scanClicks(rows pgx.Rows) ([]models.ClickEvent, error) {
	defer rows.Close()

	clicks := []models.ClickEvent{}
	for rows.Next() {
		var click models.ClickEvent
		if err := rows.Scan(
			&click.ID,
			&click.LinkID,
			&click.ClickedAt,
			&click.UserAgent,
			&click.Referrer,
			&click.IPAddress,
		); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		clicks = append(clicks, click)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clicks: %w", err)
	}

	return clicks, nil
}
