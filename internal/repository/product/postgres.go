package product

import (
	"context"
	"errors"

	"storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	const q = `
SELECT id::text, name, slug, image, created_at
FROM products
WHERE id = $1
`
	var p domain.Product
	err := r.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Name, &p.Slug, &p.Image, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) GetVariant(ctx context.Context, variantID string) (*domain.ProductVariant, error) {
	const q = `
SELECT id::text, product_id::text, size, sku, price_cents, promo_price_cents, created_at
FROM product_variants
WHERE id = $1
`
	return scanVariant(r.pool.QueryRow(ctx, q, variantID))
}

func (r *postgresRepo) GetVariantBySKU(ctx context.Context, sku string) (*domain.ProductVariant, error) {
	const q = `
SELECT id::text, product_id::text, size, sku, price_cents, promo_price_cents, created_at
FROM product_variants
WHERE sku = $1
`
	return scanVariant(r.pool.QueryRow(ctx, q, sku))
}

func (r *postgresRepo) Create(ctx context.Context, p domain.Product, variants []domain.ProductVariant) (*domain.Product, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var out domain.Product
	err = tx.QueryRow(ctx, `
INSERT INTO products (name, slug, image)
VALUES ($1, $2, $3)
RETURNING id::text, name, slug, image, created_at
`, p.Name, p.Slug, p.Image).Scan(&out.ID, &out.Name, &out.Slug, &out.Image, &out.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}

	for _, v := range variants {
		if _, err := tx.Exec(ctx, `
INSERT INTO product_variants (product_id, size, sku, price_cents, promo_price_cents)
VALUES ($1, $2, $3, $4, $5)
`, out.ID, v.Size, v.SKU, v.PriceCents, v.PromoCents); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &out, nil
}

func scanVariant(row pgx.Row) (*domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := row.Scan(&v.ID, &v.ProductID, &v.Size, &v.SKU, &v.PriceCents, &v.PromoCents, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}
