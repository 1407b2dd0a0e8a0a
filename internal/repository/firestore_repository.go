package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"order-lifecycle/internal/model"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ordersCollection   = "orders"
	productsCollection = "products"
)

// orderDocument keeps the order JSON opaque and promotes the fields worth querying on.
type orderDocument struct {
	OrderNumber string    `firestore:"orderNumber"`
	Status      string    `firestore:"status"`
	Document    string    `firestore:"document"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

type productDocument struct {
	Name      string    `firestore:"name"`
	SKU       string    `firestore:"sku"`
	Price     string    `firestore:"price"`
	SellerID  string    `firestore:"sellerId"`
	Stock     int       `firestore:"stock"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type firestoreOrderRepository struct {
	client *firestore.Client
	logger zerolog.Logger
}

// NewFirestoreOrderRepository creates an order repository backed by a Firestore collection.
func NewFirestoreOrderRepository(client *firestore.Client, logger zerolog.Logger) OrderRepository {
	return &firestoreOrderRepository{
		client: client,
		logger: logger.With().Str("repository", "order").Str("store", "firestore").Logger(),
	}
}

func (r *firestoreOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	snap, err := r.client.Collection(ordersCollection).Doc(id.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			r.logger.Debug().Str("order_id", id.String()).Msg("order not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("order_id", id.String()).Msg("failed to get order")
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode order document: %w", err)
	}

	var order model.Order
	if err := json.Unmarshal([]byte(doc.Document), &order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}

	return &order, nil
}

func (r *firestoreOrderRepository) Save(ctx context.Context, order *model.Order) error {
	raw, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}

	doc := orderDocument{
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Document:    string(raw),
		UpdatedAt:   order.UpdatedAt.UTC(),
	}

	if _, err := r.client.Collection(ordersCollection).Doc(order.ID.String()).Set(ctx, doc); err != nil {
		r.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("failed to save order")
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

type firestoreProductRepository struct {
	client *firestore.Client
	logger zerolog.Logger
}

// NewFirestoreProductRepository creates a product repository backed by a Firestore collection.
func NewFirestoreProductRepository(client *firestore.Client, logger zerolog.Logger) ProductRepository {
	return &firestoreProductRepository{
		client: client,
		logger: logger.With().Str("repository", "product").Str("store", "firestore").Logger(),
	}
}

func (r *firestoreProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	snap, err := r.client.Collection(productsCollection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			r.logger.Debug().Str("product_id", id).Msg("product not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Str("product_id", id).Msg("failed to get product")
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	var doc productDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode product document: %w", err)
	}

	return doc.toModel(id)
}

func (r *firestoreProductRepository) Save(ctx context.Context, product *model.Product) error {
	doc := newProductDocument(product)
	if _, err := r.client.Collection(productsCollection).Doc(product.ID).Set(ctx, doc); err != nil {
		r.logger.Error().Err(err).Str("product_id", product.ID).Msg("failed to save product")
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

func newProductDocument(p *model.Product) productDocument {
	return productDocument{
		Name:      p.Name,
		SKU:       p.SKU,
		Price:     p.Price.StringFixed(2),
		SellerID:  p.SellerID,
		Stock:     p.Inventory.Stock,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func (d productDocument) toModel(id string) (*model.Product, error) {
	p := &model.Product{
		ID:        id,
		Name:      d.Name,
		SKU:       d.SKU,
		SellerID:  d.SellerID,
		Inventory: model.Inventory{Stock: d.Stock},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Price != "" {
		price, err := parsePrice(d.Price)
		if err != nil {
			return nil, err
		}
		p.Price = price
	}
	return p, nil
}
