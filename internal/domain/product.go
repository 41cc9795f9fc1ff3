package domain

import "time"

type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ProductVariant struct {
	ID         string    `json:"id"`
	ProductID  string    `json:"productId"`
	Size       string    `json:"size,omitempty"`
	SKU        string    `json:"sku"`
	PriceCents int64     `json:"priceCents"`
	PromoCents *int64    `json:"promoPriceCents,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
