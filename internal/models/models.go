// Package models defines the domain entities shared by the handlers,
// repositories and the delivery subsystem.
package models

import (
	"encoding/json"
	"time"
)

// Product is a catalog item available for ordering.
type Product struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Stock     int       `json:"stock"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OrderItem is a single product line within an order.
type OrderItem struct {
	ID        string   `json:"id"`
	OrderID   string   `json:"orderId"`
	ProductID string   `json:"productId"`
	Quantity  int      `json:"quantity"`
	Product   *Product `json:"product,omitempty"`
}

// Order groups one or more order items. Status is always CREATED on creation.
type Order struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Webhook is a registered subscriber notified via signed HTTP POST when a
// matching event occurs. Secret is generated at registration and used only
// for signing deliveries.
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Event     string    `json:"event"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// IdempotencyRecord stores the fingerprint and response of the first request
// seen for a given (key, method, route) triple. Never mutated after creation.
type IdempotencyRecord struct {
	Key          string          `json:"key"`
	Method       string          `json:"method"`
	Route        string          `json:"route"`
	RequestHash  string          `json:"requestHash"`
	Status       int             `json:"status"`
	ContentType  string          `json:"contentType"`
	ResponseBody json.RawMessage `json:"responseBody"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// OperationalMetric is one recorded job or webhook outcome, used by the
// admin reporting endpoints.
type OperationalMetric struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"` // "job" or "webhook"
	Name       string            `json:"name"` // "completed", "failed", "sent"
	RefID      string            `json:"refId"`
	DurationMs *int64            `json:"durationMs,omitempty"`
	Meta       map[string]string `json:"meta,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// MetricCount is an aggregated operational metric row.
type MetricCount struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Request payloads.

// CreateProductRequest is the body of POST /products.
type CreateProductRequest struct {
	Name  string   `json:"name"`
	Price *float64 `json:"price"`
}

// OrderItemRequest is one requested line of POST /orders.
type OrderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// CreateOrderRequest is the body of POST /orders.
type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

// CreateWebhookRequest is the body of POST /webhooks.
type CreateWebhookRequest struct {
	URL   string `json:"url"`
	Event string `json:"event"`
}
