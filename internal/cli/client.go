// Package cli implements the fakestorectl command line interface.
package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fakestore-systems/fakestore-api/internal/models"
	"github.com/fakestore-systems/fakestore-api/internal/queue"
)

// Client talks to the store API.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) doRequest(method, path string, body interface{}, idempotent bool) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotent {
		req.Header.Set("Idempotency-Key", uuid.New().String())
	}

	return c.client.Do(req)
}

func (c *Client) decode(resp *http.Response, dst interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if dst == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func (c *Client) Health() (map[string]string, error) {
	resp, err := c.doRequest(http.MethodGet, "/health", nil, false)
	if err != nil {
		return nil, err
	}
	var out map[string]string
	return out, c.decode(resp, &out)
}

func (c *Client) ListProducts() ([]models.Product, error) {
	resp, err := c.doRequest(http.MethodGet, "/products", nil, false)
	if err != nil {
		return nil, err
	}
	var out []models.Product
	return out, c.decode(resp, &out)
}

func (c *Client) CreateProduct(name string, price float64) (*models.Product, error) {
	resp, err := c.doRequest(http.MethodPost, "/products", models.CreateProductRequest{Name: name, Price: &price}, true)
	if err != nil {
		return nil, err
	}
	out := &models.Product{}
	return out, c.decode(resp, out)
}

func (c *Client) ListOrders() ([]models.Order, error) {
	resp, err := c.doRequest(http.MethodGet, "/orders", nil, false)
	if err != nil {
		return nil, err
	}
	var out []models.Order
	return out, c.decode(resp, &out)
}

func (c *Client) CreateOrder(items []models.OrderItemRequest) (*models.Order, error) {
	resp, err := c.doRequest(http.MethodPost, "/orders", models.CreateOrderRequest{Items: items}, true)
	if err != nil {
		return nil, err
	}
	out := &models.Order{}
	return out, c.decode(resp, out)
}

func (c *Client) ListWebhooks() ([]models.Webhook, error) {
	resp, err := c.doRequest(http.MethodGet, "/webhooks", nil, false)
	if err != nil {
		return nil, err
	}
	var out []models.Webhook
	return out, c.decode(resp, &out)
}

func (c *Client) CreateWebhook(url, event string) (*models.Webhook, error) {
	resp, err := c.doRequest(http.MethodPost, "/webhooks", models.CreateWebhookRequest{URL: url, Event: event}, false)
	if err != nil {
		return nil, err
	}
	out := &models.Webhook{}
	return out, c.decode(resp, out)
}

func (c *Client) DeleteWebhook(id string) error {
	resp, err := c.doRequest(http.MethodDelete, "/webhooks/"+id, nil, false)
	if err != nil {
		return err
	}
	return c.decode(resp, nil)
}

func (c *Client) DeadLetters(limit int) ([]queue.DeadLetter, error) {
	resp, err := c.doRequest(http.MethodGet, fmt.Sprintf("/admin/dlq?limit=%d", limit), nil, false)
	if err != nil {
		return nil, err
	}
	var out struct {
		DeadLetters []queue.DeadLetter `json:"deadLetters"`
	}
	return out.DeadLetters, c.decode(resp, &out)
}

func (c *Client) PurgeDeadLetters() error {
	resp, err := c.doRequest(http.MethodDelete, "/admin/dlq", nil, false)
	if err != nil {
		return err
	}
	return c.decode(resp, nil)
}

func (c *Client) MetricsOverview() ([]models.MetricCount, error) {
	resp, err := c.doRequest(http.MethodGet, "/admin/metrics/overview", nil, false)
	if err != nil {
		return nil, err
	}
	var out struct {
		Counts []models.MetricCount `json:"counts"`
	}
	return out.Counts, c.decode(resp, &out)
}

func (c *Client) AverageLatency(metricType string) (int64, error) {
	resp, err := c.doRequest(http.MethodGet, "/admin/metrics/latency?type="+metricType, nil, false)
	if err != nil {
		return 0, err
	}
	var out struct {
		AvgDurationMs int64 `json:"avgDurationMs"`
	}
	return out.AvgDurationMs, c.decode(resp, &out)
}
