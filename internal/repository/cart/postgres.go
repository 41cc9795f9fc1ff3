package cart

import (
	"context"
	"errors"

	"storefront/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const cartColumns = `
id::text, owner_type, owner_id::text, currency, status, subtotal_cents, item_count,
expires_at, created_at, updated_at`

type postgresRepo struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a Repository backed by Postgres.
func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.Cart, error) {
	q := `
INSERT INTO carts (id, owner_type, owner_id, currency, status, expires_at)
VALUES ($1, $2, $3, $4, 'active', $5)
RETURNING ` + cartColumns

	row := r.pool.QueryRow(ctx, q, uuid.NewString(), in.Owner.Type, in.Owner.ID, in.Currency, in.ExpiresAt)
	cart, err := scanCart(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return cart, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Cart, error) {
	q := `SELECT ` + cartColumns + ` FROM carts WHERE id = $1`
	return r.fetchCart(ctx, q, id)
}

func (r *postgresRepo) GetActiveByOwner(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	q := `SELECT ` + cartColumns + ` FROM carts WHERE owner_type = $1 AND owner_id = $2 AND status = 'active'`
	return r.fetchCart(ctx, q, owner.Type, owner.ID)
}

func (r *postgresRepo) AddItem(ctx context.Context, cartID string, item domain.CartItem) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockMutableCart(ctx, tx, cartID); err != nil {
		return err
	}

	var lineID string
	var existingQty int
	err = tx.QueryRow(ctx, `
SELECT id::text, quantity
FROM cart_items
WHERE cart_id = $1 AND product_id = $2 AND variant_id = $3
`, cartID, item.ProductID, item.VariantID).Scan(&lineID, &existingQty)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if err == nil {
		if _, err := tx.Exec(ctx, `
UPDATE cart_items
SET quantity = $1
WHERE id = $2
`, existingQty+item.Quantity, lineID); err != nil {
			return err
		}
	} else {
		if _, err := tx.Exec(ctx, `
INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, unit_price_cents, promo_price_cents, snapshot, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8,
        (SELECT COALESCE(MAX(position), 0) + 1 FROM cart_items WHERE cart_id = $2))
`, uuid.NewString(), cartID, item.ProductID, item.VariantID, item.Quantity, item.UnitPriceCents, item.PromoCents, item.Snapshot); err != nil {
			return err
		}
	}

	if err := recomputeTotals(ctx, tx, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) ChangeItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockMutableCart(ctx, tx, cartID); err != nil {
		return err
	}

	if quantity <= 0 {
		cmd, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
	} else {
		cmd, err := tx.Exec(ctx, `
UPDATE cart_items
SET quantity = $1
WHERE id = $2 AND cart_id = $3
`, quantity, itemID, cartID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
	}

	if err := recomputeTotals(ctx, tx, cartID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) SetStatus(ctx context.Context, id string, status domain.CartStatus) error {
	const q = `
UPDATE carts
SET status = $2, updated_at = now()
WHERE id = $1 AND status = 'active'
`
	cmd, err := r.pool.Exec(ctx, q, id, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM carts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrCartImmutable
	}
	return nil
}

func (r *postgresRepo) ApplyMerge(ctx context.Context, in ApplyMergeInput) (*domain.Cart, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var sourceStatus domain.CartStatus
	err = tx.QueryRow(ctx, `SELECT status FROM carts WHERE id = $1 FOR UPDATE`, in.SourceID).Scan(&sourceStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if sourceStatus == domain.CartMerged {
		// Retry of a completed merge: return the target unchanged.
		return r.GetByID(ctx, in.TargetID)
	}
	if !sourceStatus.Mutable() {
		return nil, domain.ErrCartImmutable
	}

	if err := lockMutableCart(ctx, tx, in.TargetID); err != nil {
		return nil, err
	}

	if in.Items != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, in.TargetID); err != nil {
			return nil, err
		}
		for pos, item := range in.Items {
			if _, err := tx.Exec(ctx, `
INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity, unit_price_cents, promo_price_cents, snapshot, position)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, uuid.NewString(), in.TargetID, item.ProductID, item.VariantID, item.Quantity, item.UnitPriceCents, item.PromoCents, item.Snapshot, pos+1); err != nil {
				return nil, err
			}
		}
	}

	if err := recomputeTotals(ctx, tx, in.TargetID); err != nil {
		return nil, err
	}

	cmd, err := tx.Exec(ctx, `
UPDATE carts SET status = 'merged', updated_at = now()
WHERE id = $1 AND status = 'active'
`, in.SourceID)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, domain.ErrMergeConflict
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO cart_merges (id, target_cart_id, source_cart_id, strategy, items_from_guest, items_from_user)
VALUES ($1, $2, $3, $4, $5, $6)
`, uuid.NewString(), in.TargetID, in.SourceID, in.Strategy, in.ItemsFromGuest, in.ItemsFromUser); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrMergeConflict
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, in.TargetID)
}

// lockMutableCart takes the row lock that serializes cart writers and
// rejects mutation of terminal carts.
func lockMutableCart(ctx context.Context, tx pgx.Tx, cartID string) error {
	var status domain.CartStatus
	err := tx.QueryRow(ctx, `SELECT status FROM carts WHERE id = $1 FOR UPDATE`, cartID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	if !status.Mutable() {
		return domain.ErrCartImmutable
	}
	return nil
}

// recomputeTotals derives subtotal and item count from the lines. The
// promotional price only counts when it undercuts the list price.
func recomputeTotals(ctx context.Context, tx pgx.Tx, cartID string) error {
	_, err := tx.Exec(ctx, `
UPDATE carts
SET subtotal_cents = COALESCE((
        SELECT SUM(LEAST(unit_price_cents, COALESCE(promo_price_cents, unit_price_cents)) * quantity)
        FROM cart_items
        WHERE cart_id = $1
    ), 0),
    item_count = COALESCE((
        SELECT SUM(quantity)
        FROM cart_items
        WHERE cart_id = $1
    ), 0),
    updated_at = now()
WHERE id = $1
`, cartID)
	return err
}

func (r *postgresRepo) fetchCart(ctx context.Context, q string, args ...interface{}) (*domain.Cart, error) {
	cart, err := scanCart(r.pool.QueryRow(ctx, q, args...))
	if err != nil {
		return nil, err
	}

	const itemsQuery = `
SELECT id::text, cart_id::text, product_id::text, variant_id::text, quantity,
       unit_price_cents, promo_price_cents, snapshot, position, created_at
FROM cart_items
WHERE cart_id = $1
ORDER BY position ASC, created_at ASC
`
	rows, err := r.pool.Query(ctx, itemsQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ProductID,
			&item.VariantID,
			&item.Quantity,
			&item.UnitPriceCents,
			&item.PromoCents,
			&item.Snapshot,
			&item.Position,
			&item.CreatedAt,
		); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const lineageQuery = `
SELECT source_cart_id::text, strategy, merged_at
FROM cart_merges
WHERE target_cart_id = $1
ORDER BY merged_at ASC
`
	mrows, err := r.pool.Query(ctx, lineageQuery, cart.ID)
	if err != nil {
		return nil, err
	}
	defer mrows.Close()

	for mrows.Next() {
		var ev domain.MergeEvent
		if err := mrows.Scan(&ev.SourceCartID, &ev.Strategy, &ev.MergedAt); err != nil {
			return nil, err
		}
		cart.MergedFrom = append(cart.MergedFrom, ev)
	}
	if err := mrows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var cart domain.Cart
	err := row.Scan(
		&cart.ID,
		&cart.Owner.Type,
		&cart.Owner.ID,
		&cart.Currency,
		&cart.Status,
		&cart.SubtotalCents,
		&cart.ItemCount,
		&cart.ExpiresAt,
		&cart.CreatedAt,
		&cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &cart, nil
}
