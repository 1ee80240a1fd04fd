package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakestore-systems/fakestore-api/internal/models"
)

func TestCreateAndGetProduct(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	name := gofakeit.ProductName()
	created, err := repo.CreateProduct(ctx, name, 19.99)
	require.NoError(t, err)
	assert.Equal(t, name, created.Name)
	assert.Equal(t, 100, created.Stock, "new products start with the default stock")

	got, err := repo.GetProduct(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = repo.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCreateOrderDecrementsStock(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p, err := repo.CreateProduct(ctx, "chair", 25)
	require.NoError(t, err)

	order, err := repo.CreateOrder(ctx, []models.OrderItemRequest{{ProductID: p.ID, Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, "CREATED", order.Status)
	require.Len(t, order.Items, 1)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 97, got.Stock)
}

func TestCreateOrderRejectsInsufficientStock(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p, err := repo.CreateProduct(ctx, "chair", 25)
	require.NoError(t, err)

	_, err = repo.CreateOrder(ctx, []models.OrderItemRequest{{ProductID: p.ID, Quantity: 101}})
	assert.ErrorIs(t, err, ErrInsufficientStock)

	// Nothing was mutated.
	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Stock)

	orders, err := repo.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestCreateOrderRejectsUnknownProduct(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.CreateOrder(context.Background(), []models.OrderItemRequest{{ProductID: "missing", Quantity: 1}})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestCreateOrderPartialFailureLeavesNoTrace(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	p, err := repo.CreateProduct(ctx, "chair", 25)
	require.NoError(t, err)

	_, err = repo.CreateOrder(ctx, []models.OrderItemRequest{
		{ProductID: p.ID, Quantity: 1},
		{ProductID: "missing", Quantity: 1},
	})
	require.Error(t, err)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Stock, "stock untouched when any item fails validation")
}

func TestWebhookSecretRedaction(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	created, err := repo.CreateWebhook(ctx, "https://example.com/hook", "ProductCreated")
	require.NoError(t, err)
	assert.NotEmpty(t, created.Secret, "creation is the only time the secret is exposed")

	listed, err := repo.ListWebhooks(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Secret)

	// The dispatcher lookup still sees the secret.
	found, err := repo.FindWebhooksByEvent(ctx, "ProductCreated")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, created.Secret, found[0].Secret)
}

func TestDeleteWebhook(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	created, err := repo.CreateWebhook(ctx, "https://example.com/hook", "OrderCreated")
	require.NoError(t, err)

	require.NoError(t, repo.DeleteWebhook(ctx, created.ID))
	assert.ErrorIs(t, repo.DeleteWebhook(ctx, created.ID), ErrWebhookNotFound)
}

func TestIdempotencyRecordUniqueness(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	rec := &models.IdempotencyRecord{
		Key:          "key-1",
		Method:       "POST",
		Route:        "/products",
		RequestHash:  "hash-1",
		Status:       201,
		ResponseBody: []byte(`{"id":"p-1"}`),
	}
	require.NoError(t, repo.InsertIdempotencyRecord(ctx, rec))

	err := repo.InsertIdempotencyRecord(ctx, rec)
	assert.ErrorIs(t, err, ErrIdempotencyKeyExists)

	// A different route with the same key is a distinct record.
	other := *rec
	other.Route = "/orders"
	require.NoError(t, repo.InsertIdempotencyRecord(ctx, &other))

	found, err := repo.FindIdempotencyRecord(ctx, "key-1", "POST", "/products")
	require.NoError(t, err)
	assert.Equal(t, 201, found.Status)
	assert.JSONEq(t, `{"id":"p-1"}`, string(found.ResponseBody))

	_, err = repo.FindIdempotencyRecord(ctx, "key-1", "GET", "/products")
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func TestOperationalMetricsAggregation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	durations := []int64{100, 200, 300}
	for _, d := range durations {
		d := d
		require.NoError(t, repo.InsertOperationalMetric(ctx, &models.OperationalMetric{
			Type: "job", Name: "completed", RefID: gofakeit.UUID(), DurationMs: &d,
		}))
	}
	failedDuration := int64(50)
	require.NoError(t, repo.InsertOperationalMetric(ctx, &models.OperationalMetric{
		Type: "webhook", Name: "failed", RefID: gofakeit.UUID(), DurationMs: &failedDuration,
	}))

	overview, err := repo.MetricsOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.MetricCount{
		{Type: "job", Name: "completed", Count: 3},
		{Type: "webhook", Name: "failed", Count: 1},
	}, overview)

	avg, err := repo.AverageLatency(ctx, "job")
	require.NoError(t, err)
	assert.Equal(t, int64(200), avg)

	avg, err = repo.AverageLatency(ctx, "webhook")
	require.NoError(t, err)
	assert.Equal(t, int64(50), avg)
}
