package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"order-lifecycle/internal/config"
	"order-lifecycle/internal/database"
	"order-lifecycle/internal/model"
	"order-lifecycle/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// seed writes a small catalogue and one order per lifecycle stage into the
// configured postgres database, so the API can be exercised by hand.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := config.NewLogger(cfg.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer pool.Close()

	var dbName string
	if err := pool.QueryRow(ctx, "SELECT current_database()").Scan(&dbName); err != nil {
		return fmt.Errorf("failed to query database name: %w", err)
	}
	fmt.Printf("Connected to database: %s\n", dbName)

	if err := database.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	productRepo := repository.NewProductRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	now := time.Now().UTC()

	for _, p := range sampleProducts(now) {
		if err := productRepo.Save(ctx, &p); err != nil {
			return fmt.Errorf("failed to save product %s: %w", p.ID, err)
		}
		fmt.Printf("Product %s (%s) stock %d\n", p.ID, p.Name, p.Inventory.Stock)
	}

	stages := []model.OrderStatus{
		model.StatusPending,
		model.StatusConfirmed,
		model.StatusShipped,
		model.StatusDelivered,
	}
	fmt.Println("\nOrders:")
	for i, status := range stages {
		order := sampleOrder(status, i+1, now)
		if err := orderRepo.Save(ctx, order); err != nil {
			return fmt.Errorf("failed to save order %s: %w", order.OrderNumber, err)
		}
		fmt.Printf("  - %s %-10s %s\n", order.OrderNumber, status, order.ID)
	}

	return nil
}

func sampleProducts(now time.Time) []model.Product {
	products := []model.Product{
		{ID: "P001", Name: "Cotton Kurta", SKU: "KUR-001", Price: decimal.RequireFromString("899.50"), SellerID: "S1", Inventory: model.Inventory{Stock: 25}},
		{ID: "P002", Name: "Silk Dupatta", SKU: "DUP-002", Price: decimal.RequireFromString("450.00"), SellerID: "S1", Inventory: model.Inventory{Stock: 12}},
		{ID: "P003", Name: "Brass Lamp", SKU: "LMP-003", Price: decimal.RequireFromString("90.00"), SellerID: "S2", Inventory: model.Inventory{Stock: 3}},
	}
	for i := range products {
		products[i].CreatedAt = now
		products[i].UpdatedAt = now
	}
	return products
}

func sampleOrder(status model.OrderStatus, n int, now time.Time) *model.Order {
	placed := now.Add(-time.Duration(n) * 24 * time.Hour)
	orderNumber := fmt.Sprintf("ORD-SEED-%03d", n)
	order := &model.Order{
		// Derived from the order number so reruns upsert the same rows.
		ID:          uuid.NewSHA1(uuid.NameSpaceOID, []byte(orderNumber)),
		OrderNumber: orderNumber,
		Status:      status,
		Customer:    &model.Party{ID: "C1", Name: "Asha", Phone: "9876543210", Email: "asha@example.com"},
		Items: []model.OrderItem{
			{ProductID: "P001", Seller: model.Party{ID: "S1", Name: "Loom House", Phone: "9000000001"}, Name: "Cotton Kurta", SKU: "KUR-001", Price: decimal.RequireFromString("899.50"), Quantity: 2},
			{ProductID: "P003", Seller: model.Party{ID: "S2", Name: "Brass Co", Phone: "9000000002"}, Name: "Brass Lamp", SKU: "LMP-003", Price: decimal.RequireFromString("90.00"), Quantity: 1},
		},
		Pricing: model.Pricing{
			Subtotal: decimal.RequireFromString("1889.00"),
			Total:    decimal.RequireFromString("1889.00"),
		},
		ShippingAddress: model.Address{Name: "Asha", Line1: "12 MG Road", City: "Pune", State: "MH", PostalCode: "411001", Country: "IN"},
		Payment: model.Payment{
			Method:        model.PaymentMethodOnline,
			Status:        model.PaymentStatusPaid,
			TransactionID: "pi_seed_" + strings.ToLower(string(status)),
		},
		CreatedAt: placed,
		UpdatedAt: now,
	}
	order.AppendTimeline(model.StatusPending, "Order placed", placed)

	switch status {
	case model.StatusShipped:
		shippedAt := now.Add(-12 * time.Hour)
		order.Shipping.TrackingID = "TRK-SEED"
		order.Shipping.Carrier = "Delhivery"
		order.Shipping.ShippedAt = &shippedAt
	case model.StatusDelivered:
		deliveredAt := now.Add(-24 * time.Hour)
		order.Shipping.DeliveredAt = &deliveredAt
	}
	if status != model.StatusPending {
		order.AppendTimeline(status, fmt.Sprintf("Order status updated to %s", status), now)
	}
	return order
}
