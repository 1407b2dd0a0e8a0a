package repository

import (
	"context"

	"order-lifecycle/internal/model"

	"github.com/google/uuid"
)

// OrderRepository defines the interface for order document access.
// Both methods operate on the whole document; there is no version check, so
// concurrent writers to the same order resolve as last-write-wins.
type OrderRepository interface {
	// GetByID retrieves an order by its ID. Returns (nil, nil) when it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// Save upserts the full order document.
	Save(ctx context.Context, order *model.Order) error
}

// ProductRepository defines the interface for product data access operations.
type ProductRepository interface {
	// GetByID retrieves a single product by its ID. Returns (nil, nil) when it does not exist.
	GetByID(ctx context.Context, id string) (*model.Product, error)

	// Save upserts the product.
	Save(ctx context.Context, product *model.Product) error
}
