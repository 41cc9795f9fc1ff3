package cart

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"storefront/internal/domain"
	cartrepo "storefront/internal/repository/cart"
)

type stubCartRepo struct {
	carts map[string]*domain.Cart
	next  int
}

func newStubCartRepo() *stubCartRepo {
	return &stubCartRepo{carts: map[string]*domain.Cart{}}
}

func (r *stubCartRepo) Create(_ context.Context, in cartrepo.CreateInput) (*domain.Cart, error) {
	for _, c := range r.carts {
		if c.Status == domain.CartActive && c.Owner == in.Owner {
			return nil, domain.ErrAlreadyExists
		}
	}
	r.next++
	c := &domain.Cart{
		ID:        fmt.Sprintf("cart-%d", r.next),
		Owner:     in.Owner,
		Currency:  in.Currency,
		Status:    domain.CartActive,
		ExpiresAt: in.ExpiresAt,
	}
	r.carts[c.ID] = c
	cp := *c
	return &cp, nil
}

func (r *stubCartRepo) GetByID(_ context.Context, id string) (*domain.Cart, error) {
	c, ok := r.carts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *stubCartRepo) GetActiveByOwner(_ context.Context, owner domain.CartOwner) (*domain.Cart, error) {
	for _, c := range r.carts {
		if c.Status == domain.CartActive && c.Owner == owner {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *stubCartRepo) AddItem(_ context.Context, cartID string, item domain.CartItem) error {
	c, ok := r.carts[cartID]
	if !ok {
		return domain.ErrNotFound
	}
	if !c.Status.Mutable() {
		return domain.ErrCartImmutable
	}
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID && c.Items[i].VariantID == item.VariantID {
			c.Items[i].Quantity += item.Quantity
			c.SubtotalCents, c.ItemCount = domain.Totals(c.Items)
			return nil
		}
	}
	item.ID = fmt.Sprintf("item-%d", len(c.Items)+1)
	item.CartID = cartID
	c.Items = append(c.Items, item)
	c.SubtotalCents, c.ItemCount = domain.Totals(c.Items)
	return nil
}

func (r *stubCartRepo) ChangeItemQuantity(_ context.Context, cartID, itemID string, quantity int) error {
	c, ok := r.carts[cartID]
	if !ok {
		return domain.ErrNotFound
	}
	if !c.Status.Mutable() {
		return domain.ErrCartImmutable
	}
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			if quantity <= 0 {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
			} else {
				c.Items[i].Quantity = quantity
			}
			c.SubtotalCents, c.ItemCount = domain.Totals(c.Items)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (r *stubCartRepo) SetStatus(_ context.Context, id string, status domain.CartStatus) error {
	c, ok := r.carts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !c.Status.Mutable() {
		return domain.ErrCartImmutable
	}
	c.Status = status
	return nil
}

type stubProductRepo struct {
	products map[string]*domain.Product
	variants map[string]*domain.ProductVariant
}

func newStubProductRepo() *stubProductRepo {
	return &stubProductRepo{
		products: map[string]*domain.Product{},
		variants: map[string]*domain.ProductVariant{},
	}
}

func (r *stubProductRepo) add(p domain.Product, vs ...domain.ProductVariant) {
	cp := p
	r.products[p.ID] = &cp
	for _, v := range vs {
		v.ProductID = p.ID
		vc := v
		r.variants[v.ID] = &vc
	}
}

func (r *stubProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *stubProductRepo) GetVariant(_ context.Context, variantID string) (*domain.ProductVariant, error) {
	v, ok := r.variants[variantID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *stubProductRepo) GetVariantBySKU(_ context.Context, sku string) (*domain.ProductVariant, error) {
	for _, v := range r.variants {
		if v.SKU == sku {
			cp := *v
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func newTestService() (*Service, *stubCartRepo, *stubProductRepo) {
	carts := newStubCartRepo()
	products := newStubProductRepo()
	products.add(
		domain.Product{ID: "prod-1", Name: "Trail Shoe", Slug: "trail-shoe", Image: "shoe.jpg"},
		domain.ProductVariant{ID: "var-1", Size: "42", SKU: "SHOE-42", PriceCents: 12900},
		domain.ProductVariant{ID: "var-2", Size: "43", SKU: "SHOE-43", PriceCents: 12900},
	)
	svc := &Service{repo: carts, products: products, currency: "USD", guestCartTTL: 24 * time.Hour}
	return svc, carts, products
}

func customerOwner(id string) domain.CartOwner {
	return domain.CartOwner{Type: domain.OwnerCustomer, ID: id}
}

func TestAddItemCreatesCartLazily(t *testing.T) {
	svc, _, _ := newTestService()
	owner := customerOwner("cust-1")

	cart, err := svc.AddItem(context.Background(), owner, AddItemInput{VariantID: "var-1", Quantity: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if cart.Owner != owner {
		t.Fatalf("cart owner = %+v, want %+v", cart.Owner, owner)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected lines: %+v", cart.Items)
	}
	if cart.SubtotalCents != 25800 || cart.ItemCount != 2 {
		t.Fatalf("totals = %d/%d, want 25800/2", cart.SubtotalCents, cart.ItemCount)
	}
	snap := cart.Items[0].Snapshot
	if snap["productName"] != "Trail Shoe" || snap["sku"] != "SHOE-42" || snap["size"] != "42" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestAddItemBySKU(t *testing.T) {
	svc, _, _ := newTestService()

	cart, err := svc.AddItem(context.Background(), customerOwner("cust-1"), AddItemInput{SKU: "SHOE-43", Quantity: 1})
	if err != nil {
		t.Fatalf("add item by sku: %v", err)
	}
	if cart.Items[0].VariantID != "var-2" {
		t.Fatalf("resolved wrong variant: %+v", cart.Items[0])
	}
}

func TestAddItemSumsExistingLine(t *testing.T) {
	svc, _, _ := newTestService()
	owner := customerOwner("cust-1")

	if _, err := svc.AddItem(context.Background(), owner, AddItemInput{VariantID: "var-1", Quantity: 1}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	cart, err := svc.AddItem(context.Background(), owner, AddItemInput{VariantID: "var-1", Quantity: 2})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("re-add must sum quantities: %+v", cart.Items)
	}
}

func TestAddItemGuestCartGetsExpiry(t *testing.T) {
	svc, repo, _ := newTestService()
	owner := domain.CartOwner{Type: domain.OwnerGuest, ID: "sess-1"}

	cart, err := svc.AddItem(context.Background(), owner, AddItemInput{VariantID: "var-1", Quantity: 1})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	stored := repo.carts[cart.ID]
	if stored.ExpiresAt == nil {
		t.Fatalf("guest cart must carry an expiry")
	}
	if stored.ExpiresAt.Before(time.Now()) {
		t.Fatalf("guest cart expiry already past: %v", stored.ExpiresAt)
	}
}

func TestAddItemValidation(t *testing.T) {
	svc, _, _ := newTestService()
	owner := customerOwner("cust-1")

	if _, err := svc.AddItem(context.Background(), owner, AddItemInput{VariantID: "var-1", Quantity: 0}); err == nil {
		t.Fatalf("expected error for zero quantity")
	}
	if _, err := svc.AddItem(context.Background(), owner, AddItemInput{Quantity: 1}); err == nil {
		t.Fatalf("expected error for missing variant reference")
	}
	if _, err := svc.AddItem(context.Background(), owner, AddItemInput{VariantID: "nope", Quantity: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for unknown variant, got %v", err)
	}
}

func TestChangeQuantityAndRemove(t *testing.T) {
	svc, _, _ := newTestService()
	owner := customerOwner("cust-1")

	cart, err := svc.AddItem(context.Background(), owner, AddItemInput{VariantID: "var-1", Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	itemID := cart.Items[0].ID

	cart, err = svc.ChangeQuantity(context.Background(), owner, itemID, 5)
	if err != nil {
		t.Fatalf("change quantity: %v", err)
	}
	if cart.Items[0].Quantity != 5 || cart.ItemCount != 5 {
		t.Fatalf("unexpected state after change: %+v", cart)
	}

	cart, err = svc.RemoveItem(context.Background(), owner, itemID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(cart.Items) != 0 || cart.SubtotalCents != 0 {
		t.Fatalf("remove must empty the line: %+v", cart)
	}
}

func TestConvertMakesCartImmutable(t *testing.T) {
	svc, _, _ := newTestService()
	owner := customerOwner("cust-1")

	if _, err := svc.AddItem(context.Background(), owner, AddItemInput{VariantID: "var-1", Quantity: 1}); err != nil {
		t.Fatalf("add: %v", err)
	}
	converted, err := svc.Convert(context.Background(), owner)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if converted.Status != domain.CartConverted {
		t.Fatalf("status = %s, want converted", converted.Status)
	}

	// The converted cart no longer backs the owner's active slot.
	if _, err := svc.Active(context.Background(), owner); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected no active cart after convert, got %v", err)
	}
}

func TestActiveNotFoundWithoutCart(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.Active(context.Background(), customerOwner("cust-9")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
