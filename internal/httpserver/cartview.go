package httpserver

import "storefront/internal/domain"

// cartView is the cart representation the storefront UI renders. Product
// and variant display fields come from the item snapshot cached at
// add-to-cart time.
type cartView struct {
	ID        string         `json:"id,omitempty"`
	Items     []cartItemView `json:"items"`
	Subtotal  int64          `json:"subtotal"`
	ItemCount int            `json:"itemCount"`
	Currency  string         `json:"currency"`
	IsEmpty   bool           `json:"isEmpty"`
}

type cartItemView struct {
	ID       string      `json:"id"`
	Product  productView `json:"product"`
	Variant  variantView `json:"variant"`
	Quantity int         `json:"quantity"`
	Price    int64       `json:"price"`
	Total    int64       `json:"total"`
}

type productView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image,omitempty"`
}

type variantView struct {
	ID         string `json:"id"`
	Size       string `json:"size,omitempty"`
	SKU        string `json:"sku"`
	Price      int64  `json:"price"`
	PromoPrice *int64 `json:"promotionalPrice,omitempty"`
}

func toCartView(cart *domain.Cart, defaultCurrency string) cartView {
	if cart == nil {
		return cartView{Items: []cartItemView{}, Currency: defaultCurrency, IsEmpty: true}
	}

	items := make([]cartItemView, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, cartItemView{
			ID: it.ID,
			Product: productView{
				ID:    it.ProductID,
				Name:  snapString(it.Snapshot, "productName"),
				Slug:  snapString(it.Snapshot, "productSlug"),
				Image: snapString(it.Snapshot, "image"),
			},
			Variant: variantView{
				ID:         it.VariantID,
				Size:       snapString(it.Snapshot, "size"),
				SKU:        snapString(it.Snapshot, "sku"),
				Price:      it.UnitPriceCents,
				PromoPrice: it.PromoCents,
			},
			Quantity: it.Quantity,
			Price:    it.EffectiveCents(),
			Total:    it.TotalCents(),
		})
	}

	return cartView{
		ID:        cart.ID,
		Items:     items,
		Subtotal:  cart.SubtotalCents,
		ItemCount: cart.ItemCount,
		Currency:  cart.Currency,
		IsEmpty:   len(items) == 0,
	}
}

func snapString(snap map[string]interface{}, key string) string {
	if snap == nil {
		return ""
	}
	if v, ok := snap[key].(string); ok {
		return v
	}
	return ""
}
