package cart

import (
	"context"
	"errors"
	"strings"
	"time"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
	productrepo "storefront/internal/repository/product"
)

type cartRepo interface {
	Create(ctx context.Context, in cartrepo.CreateInput) (*domain.Cart, error)
	GetByID(ctx context.Context, id string) (*domain.Cart, error)
	GetActiveByOwner(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error)
	AddItem(ctx context.Context, cartID string, item domain.CartItem) error
	ChangeItemQuantity(ctx context.Context, cartID, itemID string, quantity int) error
	SetStatus(ctx context.Context, id string, status domain.CartStatus) error
}

type productRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetVariant(ctx context.Context, variantID string) (*domain.ProductVariant, error)
	GetVariantBySKU(ctx context.Context, sku string) (*domain.ProductVariant, error)
}

// Service owns cart line-item operations for whichever owner key the
// request resolved to. Carts are created lazily on first add.
type Service struct {
	repo         cartRepo
	products     productRepo
	currency     string
	guestCartTTL time.Duration
}

// New creates a Service.
func New(repo cartrepo.Repository, products productrepo.Repository, currency string, guestCartTTL time.Duration) *Service {
	if currency == "" {
		currency = "USD"
	}
	if guestCartTTL <= 0 {
		guestCartTTL = 24 * time.Hour
	}
	return &Service{repo: repo, products: products, currency: currency, guestCartTTL: guestCartTTL}
}

// AddItemInput identifies a variant by id or SKU.
type AddItemInput struct {
	VariantID string `json:"variantId,omitempty"`
	SKU       string `json:"sku,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Active returns the owner's active cart, or domain.ErrNotFound when none
// exists yet.
func (s *Service) Active(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	return s.repo.GetActiveByOwner(ctx, owner)
}

// AddItem adds a variant to the owner's active cart, creating the cart if
// needed. Lines are keyed by (product, variant); re-adding sums quantities.
func (s *Service) AddItem(ctx context.Context, owner domain.CartOwner, in AddItemInput) (*domain.Cart, error) {
	if in.Quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}

	variant, err := s.lookupVariant(ctx, in)
	if err != nil {
		return nil, err
	}
	product, err := s.products.GetByID(ctx, variant.ProductID)
	if err != nil {
		return nil, err
	}

	cart, err := s.ensureCart(ctx, owner)
	if err != nil {
		return nil, err
	}

	item := domain.CartItem{
		ProductID:      variant.ProductID,
		VariantID:      variant.ID,
		Quantity:       in.Quantity,
		UnitPriceCents: variant.PriceCents,
		PromoCents:     variant.PromoCents,
		Snapshot:       snapshotFor(*product, *variant),
	}
	if err := s.repo.AddItem(ctx, cart.ID, item); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, cart.ID)
}

// ChangeQuantity sets a line's quantity on the owner's active cart; zero
// removes the line.
func (s *Service) ChangeQuantity(ctx context.Context, owner domain.CartOwner, itemID string, quantity int) (*domain.Cart, error) {
	if strings.TrimSpace(itemID) == "" {
		return nil, errors.New("itemId required")
	}
	cart, err := s.repo.GetActiveByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ChangeItemQuantity(ctx, cart.ID, itemID, quantity); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, cart.ID)
}

// RemoveItem drops a line from the owner's active cart.
func (s *Service) RemoveItem(ctx context.Context, owner domain.CartOwner, itemID string) (*domain.Cart, error) {
	return s.ChangeQuantity(ctx, owner, itemID, 0)
}

// Convert marks the owner's active cart converted after order placement.
func (s *Service) Convert(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	cart, err := s.repo.GetActiveByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetStatus(ctx, cart.ID, domain.CartConverted); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, cart.ID)
}

func (s *Service) ensureCart(ctx context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	cart, err := s.repo.GetActiveByOwner(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	in := cartrepo.CreateInput{Owner: owner, Currency: s.currency}
	if owner.Type == domain.OwnerGuest {
		exp := time.Now().Add(s.guestCartTTL)
		in.ExpiresAt = &exp
	}
	created, err := s.repo.Create(ctx, in)
	if errors.Is(err, domain.ErrAlreadyExists) {
		return s.repo.GetActiveByOwner(ctx, owner)
	}
	return created, err
}

func (s *Service) lookupVariant(ctx context.Context, in AddItemInput) (*domain.ProductVariant, error) {
	switch {
	case strings.TrimSpace(in.VariantID) != "":
		return s.products.GetVariant(ctx, strings.TrimSpace(in.VariantID))
	case strings.TrimSpace(in.SKU) != "":
		return s.products.GetVariantBySKU(ctx, strings.TrimSpace(in.SKU))
	default:
		return nil, errors.New("variantId or sku required")
	}
}

// snapshotFor caches the display data a cart view needs so item rows stay
// renderable after catalog edits.
func snapshotFor(p domain.Product, v domain.ProductVariant) map[string]interface{} {
	snap := map[string]interface{}{
		"productName": p.Name,
		"productSlug": p.Slug,
		"sku":         v.SKU,
	}
	if p.Image != "" {
		snap["image"] = p.Image
	}
	if v.Size != "" {
		snap["size"] = v.Size
	}
	return snap
}
