package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fakestore-systems/fakestore-api/internal/models"
)

// MemoryRepository is an in-memory Repository implementation used for tests
// and for running the service without PostgreSQL.
type MemoryRepository struct {
	mu          sync.RWMutex
	products    map[string]*models.Product
	orders      map[string]*models.Order
	webhooks    map[string]*models.Webhook
	idempotency map[string]*models.IdempotencyRecord
	metrics     []*models.OperationalMetric
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products:    make(map[string]*models.Product),
		orders:      make(map[string]*models.Order),
		webhooks:    make(map[string]*models.Webhook),
		idempotency: make(map[string]*models.IdempotencyRecord),
	}
}

func (r *MemoryRepository) CreateProduct(ctx context.Context, name string, price float64) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	p := &models.Product{
		ID:        uuid.New().String(),
		Name:      name,
		Price:     price,
		Stock:     100,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.products[p.ID] = p

	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]*models.Product, 0, len(r.products))
	for _, p := range r.products {
		cp := *p
		products = append(products, &cp)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].CreatedAt.Before(products[j].CreatedAt) })

	return products, nil
}

func (r *MemoryRepository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) CreateOrder(ctx context.Context, items []models.OrderItemRequest) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate products before mutating anything so a partial order is never
	// left behind, mirroring the transactional postgres implementation.
	for _, item := range items {
		p, ok := r.products[item.ProductID]
		if !ok {
			return nil, ErrProductNotFound
		}
		if p.Stock < item.Quantity {
			return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
		}
	}

	now := time.Now().UTC()
	order := &models.Order{
		ID:        uuid.New().String(),
		Status:    "CREATED",
		CreatedAt: now,
		UpdatedAt: now,
	}

	for _, item := range items {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
		r.products[item.ProductID].Stock -= item.Quantity
	}

	r.orders[order.ID] = order

	cp := *order
	cp.Items = append([]models.OrderItem(nil), order.Items...)
	return &cp, nil
}

func (r *MemoryRepository) ListOrders(ctx context.Context) ([]*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]*models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		cp := *o
		cp.Items = append([]models.OrderItem(nil), o.Items...)
		for i := range cp.Items {
			if p, ok := r.products[cp.Items[i].ProductID]; ok {
				pcp := *p
				cp.Items[i].Product = &pcp
			}
		}
		orders = append(orders, &cp)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })

	return orders, nil
}

func (r *MemoryRepository) CreateWebhook(ctx context.Context, url, event string) (*models.Webhook, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w := &models.Webhook{
		ID:        uuid.New().String(),
		URL:       url,
		Event:     event,
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
	}
	r.webhooks[w.ID] = w

	cp := *w
	return &cp, nil
}

func (r *MemoryRepository) FindWebhooksByEvent(ctx context.Context, event string) ([]*models.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var webhooks []*models.Webhook
	for _, w := range r.webhooks {
		if w.Event == event {
			cp := *w
			webhooks = append(webhooks, &cp)
		}
	}
	sort.Slice(webhooks, func(i, j int) bool { return webhooks[i].CreatedAt.Before(webhooks[j].CreatedAt) })

	return webhooks, nil
}

func (r *MemoryRepository) ListWebhooks(ctx context.Context) ([]*models.Webhook, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	webhooks := make([]*models.Webhook, 0, len(r.webhooks))
	for _, w := range r.webhooks {
		cp := *w
		cp.Secret = ""
		webhooks = append(webhooks, &cp)
	}
	sort.Slice(webhooks, func(i, j int) bool { return webhooks[i].CreatedAt.Before(webhooks[j].CreatedAt) })

	return webhooks, nil
}

func (r *MemoryRepository) DeleteWebhook(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.webhooks[id]; !ok {
		return ErrWebhookNotFound
	}
	delete(r.webhooks, id)

	return nil
}

func (r *MemoryRepository) InsertIdempotencyRecord(ctx context.Context, rec *models.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := idempotencyKey(rec.Key, rec.Method, rec.Route)
	if _, ok := r.idempotency[k]; ok {
		return ErrIdempotencyKeyExists
	}

	cp := *rec
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.idempotency[k] = &cp

	return nil
}

func (r *MemoryRepository) FindIdempotencyRecord(ctx context.Context, key, method, route string) (*models.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.idempotency[idempotencyKey(key, method, route)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *MemoryRepository) InsertOperationalMetric(ctx context.Context, m *models.OperationalMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *m
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.metrics = append(r.metrics, &cp)

	return nil
}

func (r *MemoryRepository) MetricsOverview(ctx context.Context) ([]models.MetricCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[[2]string]int)
	for _, m := range r.metrics {
		counts[[2]string{m.Type, m.Name}]++
	}

	overview := make([]models.MetricCount, 0, len(counts))
	for k, c := range counts {
		overview = append(overview, models.MetricCount{Type: k[0], Name: k[1], Count: c})
	}
	sort.Slice(overview, func(i, j int) bool {
		if overview[i].Type != overview[j].Type {
			return overview[i].Type < overview[j].Type
		}
		return overview[i].Name < overview[j].Name
	})

	return overview, nil
}

func (r *MemoryRepository) AverageLatency(ctx context.Context, metricType string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sum, n int64
	for _, m := range r.metrics {
		if m.Type == metricType && m.DurationMs != nil {
			sum += *m.DurationMs
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}

	return sum / n, nil
}

// OperationalMetrics returns a copy of all recorded metrics, oldest first.
// Test helper.
func (r *MemoryRepository) OperationalMetrics() []*models.OperationalMetric {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.OperationalMetric, 0, len(r.metrics))
	for _, m := range r.metrics {
		cp := *m
		out = append(out, &cp)
	}
	return out
}

func (r *MemoryRepository) Close() error {
	return nil
}

func idempotencyKey(key, method, route string) string {
	return key + "\x00" + method + "\x00" + route
}

// generateSecret returns a 32-byte random secret rendered as hex.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
