//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"order-lifecycle/internal/model"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func setupFirestore(t *testing.T) *firestore.Client {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        firestoreEmulatorImage,
			ExposedPorts: []string{"8080/tcp"},
			Cmd: []string{
				"gcloud", "beta", "emulators", "firestore", "start",
				"--host-port=0.0.0.0:8080",
			},
			WaitingFor: wait.ForLog("Dev App Server is now running").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	t.Setenv("FIRESTORE_EMULATOR_HOST", fmt.Sprintf("%s:%s", host, port.Port()))

	client, err := firestore.NewClient(ctx, "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func TestFirestoreRepositories(t *testing.T) {
	client := setupFirestore(t)
	ctx := context.Background()

	orders := NewFirestoreOrderRepository(client, zerolog.Nop())
	products := NewFirestoreProductRepository(client, zerolog.Nop())

	missing, err := orders.GetByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	order := newTestOrder(time.Now().UTC())
	require.NoError(t, orders.Save(ctx, order))

	got, err := orders.GetByID(ctx, order.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, order.OrderNumber, got.OrderNumber)
	assert.Len(t, got.Items, 1)

	require.NoError(t, products.Save(ctx, &model.Product{
		ID:        "P1",
		Name:      "Brass Lamp",
		Price:     decimal.NewFromInt(1200),
		Inventory: model.Inventory{Stock: 2},
	}))

	product, err := products.GetByID(ctx, "P1")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, 2, product.Inventory.Stock)

	none, err := products.GetByID(ctx, "P404")
	require.NoError(t, err)
	assert.Nil(t, none)
}
