package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fakestore-systems/fakestore-api/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// CreateProduct inserts a new product with the default initial stock.
func (r *PostgresRepository) CreateProduct(ctx context.Context, name string, price float64) (*models.Product, error) {
	query := `
		INSERT INTO products (id, name, price, stock, created_at, updated_at)
		VALUES (gen_random_uuid(), $1, $2, 100, now(), now())
		RETURNING id, name, price, stock, created_at, updated_at
	`

	p := &models.Product{}
	err := r.pool.QueryRow(ctx, query, name, price).Scan(
		&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return p, nil
}

// ListProducts returns all products, oldest first.
func (r *PostgresRepository) ListProducts(ctx context.Context) ([]*models.Product, error) {
	query := `
		SELECT id, name, price, stock, created_at, updated_at
		FROM products
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		p := &models.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

// GetProduct retrieves a product by ID.
func (r *PostgresRepository) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `
		SELECT id, name, price, stock, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	p := &models.Product{}
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return p, nil
}

// CreateOrder inserts the order and its items and decrements product stock
// within a single transaction.
func (r *PostgresRepository) CreateOrder(ctx context.Context, items []models.OrderItemRequest) (*models.Order, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	order := &models.Order{Status: "CREATED"}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (id, status, created_at, updated_at)
		VALUES (gen_random_uuid(), 'CREATED', now(), now())
		RETURNING id, created_at, updated_at
	`).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	for _, item := range items {
		result, err := tx.Exec(ctx, `
			UPDATE products SET stock = stock - $1, updated_at = now()
			WHERE id = $2 AND stock >= $1
		`, item.Quantity, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("failed to decrement stock: %w", err)
		}
		if result.RowsAffected() == 0 {
			// Either the product does not exist or not enough stock remains.
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`, item.ProductID).Scan(&exists); err != nil {
				return nil, fmt.Errorf("failed to check product existence: %w", err)
			}
			if !exists {
				return nil, ErrProductNotFound
			}
			return nil, fmt.Errorf("product %s: %w", item.ProductID, ErrInsufficientStock)
		}

		oi := models.OrderItem{OrderID: order.ID, ProductID: item.ProductID, Quantity: item.Quantity}
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity)
			VALUES (gen_random_uuid(), $1, $2, $3)
			RETURNING id
		`, order.ID, item.ProductID, item.Quantity).Scan(&oi.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}
		order.Items = append(order.Items, oi)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order: %w", err)
	}

	return order, nil
}

// ListOrders returns all orders with their items and product details.
func (r *PostgresRepository) ListOrders(ctx context.Context) ([]*models.Order, error) {
	query := `
		SELECT
			o.id, o.status, o.created_at, o.updated_at,
			i.id, i.product_id, i.quantity,
			p.id, p.name, p.price, p.stock, p.created_at, p.updated_at
		FROM orders o
		LEFT JOIN order_items i ON i.order_id = o.id
		LEFT JOIN products p ON p.id = i.product_id
		ORDER BY o.created_at, i.id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.Order)
	orders := []*models.Order{}
	for rows.Next() {
		o := &models.Order{}
		var itemID, productID *string
		var quantity *int
		p := &models.Product{}
		var pID, pName *string
		var pPrice *float64
		var pStock *int
		var pCreated, pUpdated *time.Time

		if err := rows.Scan(
			&o.ID, &o.Status, &o.CreatedAt, &o.UpdatedAt,
			&itemID, &productID, &quantity,
			&pID, &pName, &pPrice, &pStock, &pCreated, &pUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		order, ok := byID[o.ID]
		if !ok {
			order = o
			byID[o.ID] = order
			orders = append(orders, order)
		}

		if itemID != nil {
			item := models.OrderItem{ID: *itemID, OrderID: order.ID, ProductID: *productID, Quantity: *quantity}
			if pID != nil {
				p.ID, p.Name, p.Price, p.Stock, p.CreatedAt, p.UpdatedAt = *pID, *pName, *pPrice, *pStock, *pCreated, *pUpdated
				item.Product = p
			}
			order.Items = append(order.Items, item)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

// CreateWebhook inserts a webhook subscription with a freshly generated secret.
func (r *PostgresRepository) CreateWebhook(ctx context.Context, url, event string) (*models.Webhook, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO webhooks (id, url, event, secret, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, now())
		RETURNING id, url, event, secret, created_at
	`

	w := &models.Webhook{}
	err = r.pool.QueryRow(ctx, query, url, event, secret).Scan(&w.ID, &w.URL, &w.Event, &w.Secret, &w.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook: %w", err)
	}

	return w, nil
}

// FindWebhooksByEvent returns subscribers for an event, secrets included.
// Only the dispatcher should call this.
func (r *PostgresRepository) FindWebhooksByEvent(ctx context.Context, event string) ([]*models.Webhook, error) {
	query := `
		SELECT id, url, event, secret, created_at
		FROM webhooks
		WHERE event = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, event)
	if err != nil {
		return nil, fmt.Errorf("failed to find webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*models.Webhook
	for rows.Next() {
		w := &models.Webhook{}
		if err := rows.Scan(&w.ID, &w.URL, &w.Event, &w.Secret, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return webhooks, nil
}

// ListWebhooks returns all registered webhooks with secrets redacted.
func (r *PostgresRepository) ListWebhooks(ctx context.Context) ([]*models.Webhook, error) {
	query := `
		SELECT id, url, event, created_at
		FROM webhooks
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	webhooks := []*models.Webhook{}
	for rows.Next() {
		w := &models.Webhook{}
		if err := rows.Scan(&w.ID, &w.URL, &w.Event, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return webhooks, nil
}

// DeleteWebhook removes a webhook subscription by ID.
func (r *PostgresRepository) DeleteWebhook(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM webhooks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrWebhookNotFound
	}

	return nil
}

// InsertIdempotencyRecord persists the first response for a key. The unique
// constraint on (key, method, route) resolves concurrent duplicate inserts;
// violations are reported as ErrIdempotencyKeyExists, never as a fatal error.
func (r *PostgresRepository) InsertIdempotencyRecord(ctx context.Context, rec *models.IdempotencyRecord) error {
	query := `
		INSERT INTO idempotency_keys (key, method, route, request_hash, status, content_type, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (key, method, route) DO NOTHING
	`

	result, err := r.pool.Exec(ctx, query,
		rec.Key, rec.Method, rec.Route, rec.RequestHash, rec.Status, rec.ContentType, []byte(rec.ResponseBody),
	)
	if err != nil {
		return fmt.Errorf("failed to insert idempotency record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrIdempotencyKeyExists
	}

	return nil
}

// FindIdempotencyRecord looks up a stored response by (key, method, route).
func (r *PostgresRepository) FindIdempotencyRecord(ctx context.Context, key, method, route string) (*models.IdempotencyRecord, error) {
	query := `
		SELECT key, method, route, request_hash, status, content_type, response, created_at
		FROM idempotency_keys
		WHERE key = $1 AND method = $2 AND route = $3
	`

	rec := &models.IdempotencyRecord{}
	var body []byte
	err := r.pool.QueryRow(ctx, query, key, method, route).Scan(
		&rec.Key, &rec.Method, &rec.Route, &rec.RequestHash, &rec.Status, &rec.ContentType, &body, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to find idempotency record: %w", err)
	}
	rec.ResponseBody = body

	return rec, nil
}

// InsertOperationalMetric records one job or webhook outcome.
func (r *PostgresRepository) InsertOperationalMetric(ctx context.Context, m *models.OperationalMetric) error {
	var meta []byte
	if m.Meta != nil {
		var err error
		meta, err = json.Marshal(m.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal metric meta: %w", err)
		}
	}

	query := `
		INSERT INTO operational_metrics (id, type, name, ref_id, duration_ms, meta, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, now())
	`

	if _, err := r.pool.Exec(ctx, query, m.Type, m.Name, m.RefID, m.DurationMs, meta); err != nil {
		return fmt.Errorf("failed to insert operational metric: %w", err)
	}

	return nil
}

// MetricsOverview returns per type+name counts of recorded outcomes.
func (r *PostgresRepository) MetricsOverview(ctx context.Context) ([]models.MetricCount, error) {
	query := `
		SELECT type, name, COUNT(*)
		FROM operational_metrics
		GROUP BY type, name
		ORDER BY type, name
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate metrics: %w", err)
	}
	defer rows.Close()

	overview := []models.MetricCount{}
	for rows.Next() {
		var c models.MetricCount
		if err := rows.Scan(&c.Type, &c.Name, &c.Count); err != nil {
			return nil, fmt.Errorf("failed to scan metric count: %w", err)
		}
		overview = append(overview, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return overview, nil
}

// AverageLatency returns the average recorded duration for a metric type
// ("job" or "webhook") in milliseconds.
func (r *PostgresRepository) AverageLatency(ctx context.Context, metricType string) (int64, error) {
	query := `
		SELECT COALESCE(ROUND(AVG(duration_ms)), 0)
		FROM operational_metrics
		WHERE type = $1 AND duration_ms IS NOT NULL
	`

	var avg int64
	if err := r.pool.QueryRow(ctx, query, metricType).Scan(&avg); err != nil {
		return 0, fmt.Errorf("failed to aggregate latency: %w", err)
	}

	return avg, nil
}

// Close closes the database connection pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
