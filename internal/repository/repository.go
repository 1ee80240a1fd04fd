package repository

import (
	"context"
	"errors"

	"github.com/fakestore-systems/fakestore-api/internal/models"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrWebhookNotFound      = errors.New("webhook not found")
	ErrRecordNotFound       = errors.New("record not found")
	ErrIdempotencyKeyExists = errors.New("idempotency key already exists")
	ErrInsufficientStock    = errors.New("insufficient stock")
)

// ProductRepository persists catalog products.
type ProductRepository interface {
	CreateProduct(ctx context.Context, name string, price float64) (*models.Product, error)
	ListProducts(ctx context.Context) ([]*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// OrderRepository persists orders. CreateOrder inserts the order and its items
// and decrements product stock within a single transaction.
type OrderRepository interface {
	CreateOrder(ctx context.Context, items []models.OrderItemRequest) (*models.Order, error)
	ListOrders(ctx context.Context) ([]*models.Order, error)
}

// WebhookRepository persists webhook subscriptions. CreateWebhook generates
// the signing secret; the secret is never exposed after creation.
type WebhookRepository interface {
	CreateWebhook(ctx context.Context, url, event string) (*models.Webhook, error)
	FindWebhooksByEvent(ctx context.Context, event string) ([]*models.Webhook, error)
	ListWebhooks(ctx context.Context) ([]*models.Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error
}

// IdempotencyRepository persists request fingerprints for replay.
// Uniqueness of (key, method, route) is enforced at the storage layer;
// InsertIdempotencyRecord returns ErrIdempotencyKeyExists when the triple is
// already present so callers can resolve the race by re-reading.
type IdempotencyRepository interface {
	InsertIdempotencyRecord(ctx context.Context, rec *models.IdempotencyRecord) error
	FindIdempotencyRecord(ctx context.Context, key, method, route string) (*models.IdempotencyRecord, error)
}

// OperationalMetricRepository records job and webhook delivery outcomes for
// the admin reporting endpoints.
type OperationalMetricRepository interface {
	InsertOperationalMetric(ctx context.Context, m *models.OperationalMetric) error
	MetricsOverview(ctx context.Context) ([]models.MetricCount, error)
	AverageLatency(ctx context.Context, metricType string) (int64, error)
}

// Repository aggregates all persistence concerns of the service.
type Repository interface {
	ProductRepository
	OrderRepository
	WebhookRepository
	IdempotencyRepository
	OperationalMetricRepository

	Close() error
}
