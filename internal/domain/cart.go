package domain

import "time"

// OwnerType tags which identity kind owns a cart.
type OwnerType string

const (
	OwnerUser     OwnerType = "user"
	OwnerCustomer OwnerType = "customer"
	OwnerGuest    OwnerType = "guest"
)

// CartOwner is the exactly-one owner key of a cart: a user id, a customer
// id, or a guest session id, tagged by type.
type CartOwner struct {
	Type OwnerType `json:"type"`
	ID   string    `json:"id"`
}

// CartStatus is the cart lifecycle state. Merged and converted carts are
// terminal and immutable.
type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartAbandoned CartStatus = "abandoned"
	CartConverted CartStatus = "converted"
	CartMerged    CartStatus = "merged"
)

// Mutable reports whether line items may still change.
func (s CartStatus) Mutable() bool {
	return s == CartActive
}

// MergeStrategy selects how a guest cart folds into the target cart.
type MergeStrategy string

const (
	StrategyMerge        MergeStrategy = "merge"
	StrategyReplace      MergeStrategy = "replace"
	StrategyKeepExisting MergeStrategy = "keep_existing"
)

// Valid reports whether the strategy is one of the closed set.
func (s MergeStrategy) Valid() bool {
	switch s {
	case StrategyMerge, StrategyReplace, StrategyKeepExisting:
		return true
	}
	return false
}

type Cart struct {
	ID            string       `json:"id"`
	Owner         CartOwner    `json:"owner"`
	Currency      string       `json:"currency"`
	Status        CartStatus   `json:"status"`
	SubtotalCents int64        `json:"subtotalCents"`
	ItemCount     int          `json:"itemCount"`
	Items         []CartItem   `json:"lineItems,omitempty"`
	MergedFrom    []MergeEvent `json:"mergedFrom,omitempty"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// CartItem is one cart line. Uniqueness key within a cart is
// (ProductID, VariantID).
type CartItem struct {
	ID             string                 `json:"id"`
	CartID         string                 `json:"cartId"`
	ProductID      string                 `json:"productId"`
	VariantID      string                 `json:"variantId"`
	Quantity       int                    `json:"quantity"`
	UnitPriceCents int64                  `json:"unitPriceCents"`
	PromoCents     *int64                 `json:"promoPriceCents,omitempty"`
	Snapshot       map[string]interface{} `json:"snapshot,omitempty"`
	Position       int                    `json:"-"`
	CreatedAt      time.Time              `json:"createdAt"`
}

// EffectiveCents is the charged unit price: the promotional price when
// present and lower, the list price otherwise.
func (i CartItem) EffectiveCents() int64 {
	if i.PromoCents != nil && *i.PromoCents < i.UnitPriceCents {
		return *i.PromoCents
	}
	return i.UnitPriceCents
}

// TotalCents is the line total at the effective unit price.
func (i CartItem) TotalCents() int64 {
	return i.EffectiveCents() * int64(i.Quantity)
}

// MergeEvent is one entry of a cart's append-only merge lineage.
type MergeEvent struct {
	SourceCartID string        `json:"sourceCartId"`
	Strategy     MergeStrategy `json:"strategy"`
	MergedAt     time.Time     `json:"mergedAt"`
}

// Totals recomputes subtotal and item count from the item list. Derived
// fields are never carried over arithmetically between mutations.
func Totals(items []CartItem) (subtotalCents int64, itemCount int) {
	for _, it := range items {
		subtotalCents += it.TotalCents()
		itemCount += it.Quantity
	}
	return subtotalCents, itemCount
}
