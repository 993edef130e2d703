package repository

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/google/uuid"
)

var chPartitionPattern = regexp.MustCompile(`^\d{6}$`)

// clickHouseClickRepository stores clicks in a MergeTree table partitioned by toYYYYMM(clicked_at).
// Partition ids are the native ClickHouse ones, e.g. "202401". The whole table is the default source.
type clickHouseClickRepository struct {
	db *ClickHouseDB
}

func NewClickHouseClickRepository(db *ClickHouseDB) ClickRepository {
	return &clickHouseClickRepository{db: db}
}

const chClickColumns = `toString(id), link_id, clicked_at, user_agent, referrer, ip_address`

func (r *clickHouseClickRepository) RecordClick(ctx context.Context, click *models.ClickEvent) error {
	id, err := uuid.Parse(click.ID)
	if err != nil {
		return fmt.Errorf("failed to record click: invalid id %q: %w", click.ID, err)
	}

	batch, err := r.db.Conn.PrepareBatch(ctx, `
		INSERT INTO click_logs (id, link_id, clicked_at, user_agent, referrer, ip_address)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare click insert: %w", err)
	}

	if err := batch.Append(id, click.LinkID, click.ClickedAt, click.UserAgent, click.Referrer, click.IPAddress); err != nil {
		batch.Abort()
		return fmt.Errorf("failed to append click: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to record click: %w", err)
	}

	return nil
}

func (r *clickHouseClickRepository) ListAll(ctx context.Context) ([]models.ClickEvent, error) {
	query := `SELECT ` + chClickColumns + ` FROM click_logs ORDER BY clicked_at DESC`
	return r.query(ctx, query)
}

func (r *clickHouseClickRepository) ListPartition(ctx context.Context, partitionID string) ([]models.ClickEvent, error) {
	if !chPartitionPattern.MatchString(partitionID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPartition, partitionID)
	}
	month, _ := strconv.ParseUint(partitionID, 10, 32)

	query := `SELECT ` + chClickColumns + ` FROM click_logs WHERE toYYYYMM(clicked_at) = ? ORDER BY clicked_at DESC`
	return r.query(ctx, query, uint32(month))
}

// ListPartitions reports no partitions: ListAll already scans every native
// partition, so reading them again would only produce duplicates.
// ListPartition still serves partition ids configured explicitly.
func (r *clickHouseClickRepository) ListPartitions(context.Context) ([]string, error) {
	return nil, nil
}

// EnsurePartition is a no-op: ClickHouse creates partitions on insert.
func (r *clickHouseClickRepository) EnsurePartition(_ context.Context, month time.Time) (string, error) {
	return fmt.Sprintf("%04d%02d", month.Year(), int(month.Month())), nil
}

func (r *clickHouseClickRepository) query(ctx context.Context, query string, args ...any) ([]models.ClickEvent, error) {
	rows, err := r.db.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query clicks: %w", err)
	}
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
