package cart

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// CreateInput describes a new cart. ExpiresAt is only set for guest carts.
type CreateInput struct {
	Owner     domain.CartOwner
	Currency  string
	ExpiresAt *time.Time
}

// ApplyMergeInput is the single-transaction write that folds a source cart
// into a target cart. Items is the fully reconciled item set for the
// target; nil means the target's items are left untouched (keep_existing).
type ApplyMergeInput struct {
	TargetID       string
	SourceID       string
	Strategy       domain.MergeStrategy
	Items          []domain.CartItem
	ItemsFromGuest int
	ItemsFromUser  int
}

// Repository persists carts, their line items, and merge lineage.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	GetActiveByOwner(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	// AddItem upserts a line keyed by (product, variant), summing
	// quantities, and recomputes the cart totals in the same transaction.
	AddItem(ctx context.Context, cartID string, item domain.CartItem) error
	// ChangeItemQuantity sets a line's quantity; zero or less removes it.
	ChangeItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	// SetStatus transitions an active cart; it fails with
	// domain.ErrCartImmutable once the cart reached a terminal status.
	SetStatus(ctx context.Context, id string, status domain.CartStatus) error
	// ApplyMerge atomically rewrites the target items, records lineage,
	// and marks the source merged. An already-merged source makes the
	// whole call a no-op returning the target unchanged.
	ApplyMerge(ctx context.Context, in ApplyMergeInput) (*domain.Cart, error)
}
