package user

import (
	"context"

	"storefront/internal/domain"
)

// Repository persists and fetches back-office users.
type Repository interface {
	Create(ctx context.Context, u domain.SystemUser) (*domain.SystemUser, error)
	GetByEmail(ctx context.Context, email string) (*domain.SystemUser, error)
	GetByID(ctx context.Context, id string) (*domain.SystemUser, error)
}
