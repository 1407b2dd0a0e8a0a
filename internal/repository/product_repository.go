package repository

import (
	"context"
	"errors"
	"fmt"

	"order-lifecycle/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// productRepository implements the ProductRepository interface using PostgreSQL.
type productRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(pool *pgxpool.Pool, logger zerolog.Logger) ProductRepository {
	return &productRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "product").Logger(),
	}
}

// GetByID retrieves a single product by its ID.
func (r *productRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	query := `
		SELECT id, name, sku, price::text, seller_id, stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var (
		p     model.Product
		price string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.SKU,
		&price,
		&p.SellerID,
		&p.Inventory.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Str("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to query product")
		return nil, fmt.Errorf("failed to query product: %w", err)
	}

	p.Price, err = parsePrice(price)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// Save upserts the product row.
func (r *productRepository) Save(ctx context.Context, product *model.Product) error {
	query := `
		INSERT INTO products (id, name, sku, price, seller_id, stock, created_at, updated_at)
		VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			sku = EXCLUDED.sku,
			price = EXCLUDED.price,
			seller_id = EXCLUDED.seller_id,
			stock = EXCLUDED.stock,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.pool.Exec(ctx, query,
		product.ID,
		product.Name,
		product.SKU,
		product.Price.StringFixed(2),
		product.SellerID,
		product.Inventory.Stock,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to save product")
		return fmt.Errorf("failed to save product: %w", err)
	}

	return nil
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse product price: %w", err)
	}
	return price, nil
}
