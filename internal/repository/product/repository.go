package product

import (
	"context"

	"storefront/internal/domain"
)

// Repository fetches the minimal catalog data the cart paths need.
type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetVariant(ctx context.Context, variantID string) (*domain.ProductVariant, error)
	GetVariantBySKU(ctx context.Context, sku string) (*domain.ProductVariant, error)
	Create(ctx context.Context, p domain.Product, variants []domain.ProductVariant) (*domain.Product, error)
}
