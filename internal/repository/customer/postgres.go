package customer

import (
	"context"
	"errors"
	"strings"

	"storefront/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const customerColumns = `
id::text, email, password_hash, first_name, last_name, is_verified, verification_token, created_at`

type postgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, c domain.Customer) (*domain.Customer, error) {
	q := `
INSERT INTO customers (email, password_hash, first_name, last_name, is_verified, verification_token)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + customerColumns

	out, err := scanCustomer(r.pool.QueryRow(ctx, q,
		strings.ToLower(strings.TrimSpace(c.Email)),
		c.PasswordHash,
		c.FirstName,
		c.LastName,
		c.IsVerified,
		c.VerificationToken,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return out, nil
}

func (r *postgresRepo) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM customers WHERE lower(email) = lower($1) LIMIT 1`
	return scanCustomer(r.pool.QueryRow(ctx, q, strings.TrimSpace(email)))
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	q := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	return scanCustomer(r.pool.QueryRow(ctx, q, id))
}

func (r *postgresRepo) UpgradeGuest(ctx context.Context, id string, in UpgradeInput) (*domain.Customer, error) {
	// Guest conditions in the WHERE clause make this a compare-and-swap.
	q := `
UPDATE customers
SET password_hash = $2,
    first_name = CASE WHEN $3 <> '' THEN $3 ELSE first_name END,
    last_name = CASE WHEN $4 <> '' THEN $4 ELSE last_name END,
    is_verified = FALSE,
    verification_token = NULL
WHERE id = $1 AND password_hash = '' AND NOT is_verified AND verification_token IS NULL
RETURNING ` + customerColumns

	out, err := scanCustomer(r.pool.QueryRow(ctx, q, id, in.PasswordHash, in.FirstName, in.LastName))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrAccountExists
		}
		return nil, err
	}
	return out, nil
}

func scanCustomer(row pgx.Row) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID,
		&c.Email,
		&c.PasswordHash,
		&c.FirstName,
		&c.LastName,
		&c.IsVerified,
		&c.VerificationToken,
		&c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
