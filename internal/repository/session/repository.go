package session

import (
	"context"
	"time"

	"storefront/internal/domain"
)

// Filter narrows admin session listings.
type Filter struct {
	Type        *domain.SessionType
	Active      *bool
	PrincipalID *string
	Limit       int
	Offset      int
}

// AuthenticateInput carries the fields written by the guest→authenticated
// transition.
type AuthenticateInput struct {
	PrincipalKind domain.PrincipalKind
	PrincipalID   string
	AccessToken   string
	RefreshToken  string
	ExpiresAt     time.Time
}

// Repository persists sessions. All mutations are single atomic row
// updates; compare-and-swap semantics are expressed in the WHERE clause.
type Repository interface {
	Create(ctx context.Context, s domain.Session) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, error)
	GetByAccessToken(ctx context.Context, token string) (*domain.Session, error)
	// Authenticate upgrades a guest session in place. It fails with
	// domain.ErrAlreadyAuthenticated when the session already carries a
	// principal, and domain.ErrNotFound when no active row matches.
	Authenticate(ctx context.Context, id string, in AuthenticateInput) (*domain.Session, error)
	// RotateTokens swaps the token pair keyed by the current refresh
	// token, atomically invalidating it.
	RotateTokens(ctx context.Context, refreshToken, newAccess, newRefresh string) (*domain.Session, error)
	// Terminate deactivates the session. Terminating an already-terminated
	// session is a no-op, not an error.
	Terminate(ctx context.Context, id string, reason domain.TerminationReason) error
	Touch(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]domain.Session, error)
	// DeleteExpired physically removes rows past expiry. Correctness never
	// depends on it; lazy expiry checks do the load-bearing work.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
