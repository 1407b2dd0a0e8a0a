package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalogue entry referenced by order items.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Price     decimal.Decimal `json:"price"`
	SellerID  string          `json:"sellerId"`
	Inventory Inventory       `json:"inventory"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Inventory holds the sellable stock of a product.
type Inventory struct {
	Stock int `json:"stock"`
}
