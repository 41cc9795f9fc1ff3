package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const sessionColumns = `
id::text, session_type, principal_kind, principal_id::text, access_token, refresh_token,
is_active, client_ip, user_agent, login_at, last_activity, expires_at,
terminated_at, termination_reason, created_at`

type postgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, s domain.Session) (*domain.Session, error) {
	const q = `
INSERT INTO sessions (
    id, session_type, principal_kind, principal_id, access_token, refresh_token,
    is_active, client_ip, user_agent, login_at, last_activity, expires_at
) VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7, $8, $9, now(), $10)
RETURNING ` + sessionColumns

	var kind *string
	if s.PrincipalKind != "" {
		k := string(s.PrincipalKind)
		kind = &k
	}
	row := r.pool.QueryRow(ctx, q,
		s.ID,
		s.Type,
		kind,
		s.PrincipalID,
		s.AccessToken,
		s.RefreshToken,
		s.ClientIP,
		s.UserAgent,
		s.LoginAt,
		s.ExpiresAt,
	)
	out, err := scanSession(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return r.fetch(ctx, q, id)
}

func (r *postgresRepo) GetByAccessToken(ctx context.Context, token string) (*domain.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE access_token = $1 AND is_active`
	return r.fetch(ctx, q, token)
}

func (r *postgresRepo) Authenticate(ctx context.Context, id string, in AuthenticateInput) (*domain.Session, error) {
	// The session_type guard is the compare-and-swap: of two concurrent
	// logins only one row update succeeds.
	q := `
UPDATE sessions
SET session_type = 'authenticated',
    principal_kind = $2,
    principal_id = $3,
    access_token = $4,
    refresh_token = $5,
    login_at = now(),
    last_activity = now(),
    expires_at = $6
WHERE id = $1 AND session_type = 'guest' AND is_active
RETURNING ` + sessionColumns

	out, err := r.fetch(ctx, q, id, in.PrincipalKind, in.PrincipalID, in.AccessToken, in.RefreshToken, in.ExpiresAt)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	cur, curErr := r.Get(ctx, id)
	if curErr != nil {
		return nil, curErr
	}
	if cur.Type == domain.SessionAuthenticated && cur.IsActive {
		return cur, domain.ErrAlreadyAuthenticated
	}
	return nil, domain.ErrNotFound
}

func (r *postgresRepo) RotateTokens(ctx context.Context, refreshToken, newAccess, newRefresh string) (*domain.Session, error) {
	q := `
UPDATE sessions
SET access_token = $2,
    refresh_token = $3,
    last_activity = now()
WHERE refresh_token = $1 AND session_type = 'authenticated' AND is_active
RETURNING ` + sessionColumns

	return r.fetch(ctx, q, refreshToken, newAccess, newRefresh)
}

func (r *postgresRepo) Terminate(ctx context.Context, id string, reason domain.TerminationReason) error {
	// Guarded by is_active so a concurrent Touch cannot resurrect the row
	// and a second Terminate leaves the original reason in place.
	const q = `
UPDATE sessions
SET is_active = FALSE,
    terminated_at = now(),
    termination_reason = $2
WHERE id = $1 AND is_active
`
	cmd, err := r.pool.Exec(ctx, q, id, reason)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (r *postgresRepo) Touch(ctx context.Context, id string) error {
	const q = `UPDATE sessions SET last_activity = now() WHERE id = $1 AND is_active`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *postgresRepo) List(ctx context.Context, f Filter) ([]domain.Session, error) {
	q := `SELECT ` + sessionColumns + ` FROM sessions WHERE TRUE`
	args := []interface{}{}
	if f.Type != nil {
		args = append(args, *f.Type)
		q += fmt.Sprintf(" AND session_type = $%d", len(args))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		q += fmt.Sprintf(" AND is_active = $%d", len(args))
	}
	if f.PrincipalID != nil {
		args = append(args, *f.PrincipalID)
		q += fmt.Sprintf(" AND principal_id = $%d", len(args))
	}
	q += " ORDER BY created_at DESC"
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	q += fmt.Sprintf(" LIMIT $%d", len(args))
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (r *postgresRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *postgresRepo) fetch(ctx context.Context, q string, args ...interface{}) (*domain.Session, error) {
	return scanSession(r.pool.QueryRow(ctx, q, args...))
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var kind *string
	var reason *string
	err := row.Scan(
		&s.ID,
		&s.Type,
		&kind,
		&s.PrincipalID,
		&s.AccessToken,
		&s.RefreshToken,
		&s.IsActive,
		&s.ClientIP,
		&s.UserAgent,
		&s.LoginAt,
		&s.LastActivity,
		&s.ExpiresAt,
		&s.TerminatedAt,
		&reason,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if kind != nil {
		s.PrincipalKind = domain.PrincipalKind(*kind)
	}
	if reason != nil {
		tr := domain.TerminationReason(*reason)
		s.TerminationReason = &tr
	}
	return &s, nil
}
