package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/fakestore-systems/fakestore-api/internal/models"
)

// setupTestDatabase creates a PostgreSQL testcontainer and runs migrations
func setupTestDatabase(t *testing.T) (*PostgresRepository, func()) {
	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("fakestore_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	if err := runMigrations(connStr); err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	repo, err := NewPostgresRepository(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to create repository: %v", err)
	}

	cleanup := func() {
		repo.pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}

	return repo, cleanup
}

// runMigrations runs SQL migrations from the migrations directory
func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}

	return nil
}

func TestPostgresProducts(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	created, err := repo.CreateProduct(ctx, "standing desk", 499.99)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if created.ID == "" {
		t.Fatal("Expected a generated product ID")
	}
	if created.Stock != 100 {
		t.Errorf("Expected default stock 100, got %d", created.Stock)
	}

	got, err := repo.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Name != "standing desk" || got.Price != 499.99 {
		t.Errorf("Unexpected product: %+v", got)
	}

	if _, err := repo.GetProduct(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Expected ErrProductNotFound, got %v", err)
	}

	products, err := repo.ListProducts(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(products) != 1 {
		t.Errorf("Expected 1 product, got %d", len(products))
	}
}

func TestPostgresCreateOrder(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	p1, err := repo.CreateProduct(ctx, "lamp", 30)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	p2, err := repo.CreateProduct(ctx, "rug", 80)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	order, err := repo.CreateOrder(ctx, []models.OrderItemRequest{
		{ProductID: p1.ID, Quantity: 2},
		{ProductID: p2.ID, Quantity: 5},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if order.Status != "CREATED" {
		t.Errorf("Expected status CREATED, got %s", order.Status)
	}
	if len(order.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(order.Items))
	}

	got, err := repo.GetProduct(ctx, p1.ID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got.Stock != 98 {
		t.Errorf("Expected stock 98 after order, got %d", got.Stock)
	}

	orders, err := repo.ListOrders(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(orders) != 1 {
		t.Fatalf("Expected 1 order, got %d", len(orders))
	}
	if len(orders[0].Items) != 2 {
		t.Errorf("Expected 2 items on listed order, got %d", len(orders[0].Items))
	}
	if orders[0].Items[0].Product == nil {
		t.Error("Expected product details joined onto order items")
	}
}

func TestPostgresCreateOrderRollsBackOnFailure(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	p, err := repo.CreateProduct(ctx, "lamp", 30)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	tests := []struct {
		name      string
		items     []models.OrderItemRequest
		errorType error
	}{
		{
			name: "insufficient stock",
			items: []models.OrderItemRequest{
				{ProductID: p.ID, Quantity: 101},
			},
			errorType: ErrInsufficientStock},
		{
			name: "unknown product after a valid item",
			items: []models.OrderItemRequest{
				{ProductID: p.ID, Quantity: 1},
				{ProductID: "00000000-0000-0000-0000-000000000000", Quantity: 1},
			},
			errorType: ErrProductNotFound}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := repo.CreateOrder(ctx, tt.items); !errors.Is(err, tt.errorType) {
				t.Fatalf("Expected error %v, got %v", tt.errorType, err)
			}

			// The transaction rolled back; stock is untouched.
			got, err := repo.GetProduct(ctx, p.ID)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got.Stock != 100 {
				t.Errorf("Expected stock 100 after rollback, got %d", got.Stock)
			}

			orders, err := repo.ListOrders(ctx)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(orders) != 0 {
				t.Errorf("Expected no orders after rollback, got %d", len(orders))
			}
		})
	}
}

func TestPostgresWebhooks(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	created, err := repo.CreateWebhook(ctx, "https://example.com/hook", "ProductCreated")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if created.Secret == "" {
		t.Fatal("Expected a generated secret on creation")
	}

	listed, err := repo.ListWebhooks(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("Expected 1 webhook, got %d", len(listed))
	}
	if listed[0].Secret != "" {
		t.Error("Expected secret to be redacted in listing")
	}

	found, err := repo.FindWebhooksByEvent(ctx, "ProductCreated")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(found) != 1 || found[0].Secret != created.Secret {
		t.Error("Expected dispatcher lookup to include the secret")
	}

	if err := repo.DeleteWebhook(ctx, created.ID); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := repo.DeleteWebhook(ctx, created.ID); !errors.Is(err, ErrWebhookNotFound) {
		t.Errorf("Expected ErrWebhookNotFound, got %v", err)
	}
}

func TestPostgresIdempotencyRecords(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	rec := &models.IdempotencyRecord{
		Key:          "key-1",
		Method:       "POST",
		Route:        "/products",
		RequestHash:  "hash-1",
		Status:       201,
		ContentType:  "application/json",
		ResponseBody: []byte(`{"id":"p-1"}`),
	}
	if err := repo.InsertIdempotencyRecord(ctx, rec); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Second insert hits the unique constraint.
	if err := repo.InsertIdempotencyRecord(ctx, rec); !errors.Is(err, ErrIdempotencyKeyExists) {
		t.Fatalf("Expected ErrIdempotencyKeyExists, got %v", err)
	}

	found, err := repo.FindIdempotencyRecord(ctx, "key-1", "POST", "/products")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if found.Status != 201 {
		t.Errorf("Expected status 201, got %d", found.Status)
	}
	if found.ContentType != "application/json" {
		t.Errorf("Expected stored content type, got %q", found.ContentType)
	}
	if string(found.ResponseBody) != `{"id":"p-1"}` {
		t.Errorf("Unexpected response body: %s", found.ResponseBody)
	}

	if _, err := repo.FindIdempotencyRecord(ctx, "key-1", "GET", "/products"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}
}

func TestPostgresOperationalMetrics(t *testing.T) {
	repo, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()

	durations := []int64{100, 300}
	for _, d := range durations {
		d := d
		err := repo.InsertOperationalMetric(ctx, &models.OperationalMetric{
			Type:       "job",
			Name:       "completed",
			RefID:      "job-1",
			DurationMs: &d,
			Meta:       map[string]string{"event": "ProductCreated"},
		})
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if err := repo.InsertOperationalMetric(ctx, &models.OperationalMetric{
		Type:  "webhook",
		Name:  "failed",
		RefID: "wh-1",
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	overview, err := repo.MetricsOverview(ctx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := []models.MetricCount{
		{Type: "job", Name: "completed", Count: 2},
		{Type: "webhook", Name: "failed", Count: 1},
	}
	if len(overview) != len(want) {
		t.Fatalf("Expected %d rows, got %d", len(want), len(overview))
	}
	for i := range want {
		if overview[i] != want[i] {
			t.Errorf("Row %d: expected %+v, got %+v", i, want[i], overview[i])
		}
	}

	avg, err := repo.AverageLatency(ctx, "job")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if avg != 200 {
		t.Errorf("Expected average 200, got %d", avg)
	}

	// No recorded durations for webhooks; the aggregate falls back to zero.
	avg, err = repo.AverageLatency(ctx, "webhook")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if avg != 0 {
		t.Errorf("Expected average 0, got %d", avg)
	}
}
