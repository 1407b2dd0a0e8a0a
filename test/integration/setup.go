package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"order-lifecycle/internal/config"
	"order-lifecycle/internal/database"
	"order-lifecycle/internal/model"
	"order-lifecycle/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDB represents a test database instance.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
}

// SetupTestDB creates a PostgreSQL test container, a pool built from the
// service configuration and the service schema.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	// Create PostgreSQL container
	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := postgresContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dbConfig := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            "testuser",
		Password:        "testpass",
		Database:        "testdb",
		MaxConnections:  10,
		MinConnections:  2,
		MaxConnLifetime: 300,
	}

	pool, err := database.NewPool(ctx, dbConfig, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}

	if err := database.EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return &TestDB{
		Container: postgresContainer,
		Pool:      pool,
	}
}

// SeedProducts inserts the products referenced by SeedOrder.
func SeedProducts(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()
	repo := repository.NewProductRepository(pool, zerolog.Nop())
	now := time.Now().UTC().Truncate(time.Microsecond)

	products := []model.Product{
		{ID: "P001", Name: "Cotton Kurta", SKU: "KUR-001", Price: decimal.RequireFromString("899.50"), SellerID: "S1", Inventory: model.Inventory{Stock: 10}},
		{ID: "P002", Name: "Silk Dupatta", SKU: "DUP-002", Price: decimal.RequireFromString("450.00"), SellerID: "S1", Inventory: model.Inventory{Stock: 4}},
		{ID: "P003", Name: "Brass Lamp", SKU: "LMP-003", Price: decimal.RequireFromString("90.00"), SellerID: "S2", Inventory: model.Inventory{Stock: 0}},
	}

	for i := range products {
		products[i].CreatedAt = now
		products[i].UpdatedAt = now
		if err := repo.Save(ctx, &products[i]); err != nil {
			t.Fatalf("failed to seed product %s: %v", products[i].ID, err)
		}
	}
}

// SeedOrder stores an order in status with a paid online payment.
func SeedOrder(t *testing.T, pool *pgxpool.Pool, status model.OrderStatus, mutate func(*model.Order)) *model.Order {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Microsecond)
	order := &model.Order{
		ID:          uuid.New(),
		OrderNumber: fmt.Sprintf("ORD-%d", now.UnixNano()),
		Status:      status,
		Customer:    &model.Party{ID: "C1", Name: "Asha", Phone: "9876543210", Email: "asha@example.com"},
		Items: []model.OrderItem{
			{ProductID: "P001", Seller: model.Party{ID: "S1", Name: "Loom House", Phone: "9000000001"}, Name: "Cotton Kurta", Price: decimal.RequireFromString("899.50"), Quantity: 2},
			{ProductID: "P003", Seller: model.Party{ID: "S2", Name: "Brass Co", Phone: "9000000002"}, Name: "Brass Lamp", Price: decimal.RequireFromString("90.00"), Quantity: 1},
		},
		Pricing: model.Pricing{
			Subtotal: decimal.RequireFromString("1889.00"),
			Total:    decimal.RequireFromString("1889.00"),
		},
		ShippingAddress: model.Address{Name: "Asha", Line1: "12 MG Road", City: "Pune", PostalCode: "411001", Country: "IN"},
		Payment: model.Payment{
			Method:        model.PaymentMethodOnline,
			Status:        model.PaymentStatusPaid,
			TransactionID: "pi_integration",
		},
		Timeline:  []model.TimelineEntry{{Status: status, Description: "Order placed", Timestamp: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if mutate != nil {
		mutate(order)
	}

	repo := repository.NewOrderRepository(pool, zerolog.Nop())
	if err := repo.Save(context.Background(), order); err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	return order
}

// CleanupDB cleans all data from test tables.
func CleanupDB(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	ctx := context.Background()

	tables := []string{"orders", "products"}
	for _, table := range tables {
		_, err := pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}
}
