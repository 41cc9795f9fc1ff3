package customer

import (
	"context"

	"storefront/internal/domain"
)

// UpgradeInput carries the registration fields written onto a guest record.
type UpgradeInput struct {
	PasswordHash string
	FirstName    string
	LastName     string
}

// Repository persists and fetches customers.
type Repository interface {
	Create(ctx context.Context, c domain.Customer) (*domain.Customer, error)
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	// UpgradeGuest sets a password on a passwordless, unverified record.
	// The guest conditions are re-checked in the update itself so a
	// concurrent registration cannot overwrite an established account.
	UpgradeGuest(ctx context.Context, id string, in UpgradeInput) (*domain.Customer, error)
}
