package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/shuffle/internal/models"
	"github.com/jackc/pgx/v5"
)

var (
	ErrLinkNotFound = errors.New("link not found")
)

type LinkRepository interface {
	Get(ctx context.Context, id string) (*models.Link, error)
	List(ctx context.Context, opts models.LinkListOptions) ([]models.Link, error)
	Upsert(ctx context.Context, link *models.Link) error
	Delete(ctx context.Context, id string) error
}

type linkRepository struct {
	db *PostgresDB
}

func NewLinkRepository(db *PostgresDB) LinkRepository {
	return &linkRepository{db: db}
}

const linkColumns = `id, affiliate_url, pixel_code, complete_payment, created_at, updated_at`

func (r *linkRepository) Get(ctx context.Context, id string) (*models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE id = $1`

	link, err := scanLink(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

func (r *linkRepository) List(ctx context.Context, opts models.LinkListOptions) ([]models.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links ORDER BY ` + orderClause(opts)

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	links := []models.Link{}
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, *link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

func (r *linkRepository) Upsert(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (id, affiliate_url, pixel_code, complete_payment, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			affiliate_url = EXCLUDED.affiliate_url,
			pixel_code = EXCLUDED.pixel_code,
			complete_payment = EXCLUDED.complete_payment,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		link.ID,
		link.AffiliateURL,
		link.PixelCode,
		link.CompletePayment,
		link.CreatedAt,
	).Scan(&link.CreatedAt, &link.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert link: %w", err)
	}

	return nil
}

func (r *linkRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM links WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrLinkNotFound
	}

	return nil
}

func scanLink(row pgx.Row) (*models.Link, error) {
	link := &models.Link{}
	err := row.Scan(
		&link.ID,
		&link.AffiliateURL,
		&link.PixelCode,
		&link.CompletePayment,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return link, nil
}

// orderClause строит ORDER BY только из разрешённых колонок
func orderClause(opts models.LinkListOptions) string {
	column := "created_at"
	switch opts.SortField {
	case models.SortByID:
		column = "id"
	case models.SortByAffiliateURL:
		column = "affiliate_url"
	}

	direction := "DESC"
	if opts.Ascending {
		direction = "ASC"
	}

	return column + " " + direction + ", id ASC"
}
