package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type variantSeed struct {
	Size       string
	SKU        string
	PriceCents int64
	PromoCents *int64
}

type productSeed struct {
	Name     string
	Slug     string
	Image    string
	Variants []variantSeed
}

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	promo := int64(1499)
	products := []productSeed{
		{
			Name:  "Demo T-Shirt",
			Slug:  "demo-t-shirt",
			Image: "https://cdn.example.com/demo-t-shirt.jpg",
			Variants: []variantSeed{
				{Size: "M", SKU: "SKU-DEMO-TSHIRT-M", PriceCents: 1999, PromoCents: &promo},
				{Size: "L", SKU: "SKU-DEMO-TSHIRT-L", PriceCents: 1999},
			},
		},
		{
			Name:  "Demo Mug",
			Slug:  "demo-mug",
			Image: "https://cdn.example.com/demo-mug.jpg",
			Variants: []variantSeed{
				{SKU: "SKU-DEMO-MUG", PriceCents: 1299},
			},
		},
	}

	for _, p := range products {
		if err := upsertProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Slug, err)
		}
	}

	if err := ensureAdmin(ctx, pool, "admin@example.com", "Admin123"); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}

	return nil
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productSeed) error {
	const q = `
INSERT INTO products (name, slug, image)
VALUES ($1, $2, $3)
ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, image = EXCLUDED.image
RETURNING id::text
`
	var productID string
	if err := pool.QueryRow(ctx, q, p.Name, p.Slug, p.Image).Scan(&productID); err != nil {
		return err
	}

	for _, v := range p.Variants {
		const vq = `
INSERT INTO product_variants (product_id, size, sku, price_cents, promo_price_cents)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (sku) DO UPDATE SET price_cents = EXCLUDED.price_cents, promo_price_cents = EXCLUDED.promo_price_cents
`
		if _, err := pool.Exec(ctx, vq, productID, v.Size, v.SKU, v.PriceCents, v.PromoCents); err != nil {
			return err
		}
	}
	return nil
}

func ensureAdmin(ctx context.Context, pool *pgxpool.Pool, email, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO users (email, password_hash, role)
VALUES ($1, $2, 'admin')
ON CONFLICT DO NOTHING
`
	_, err = pool.Exec(ctx, q, email, string(hashed))
	return err
}
