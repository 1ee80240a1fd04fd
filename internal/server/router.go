// Package server assembles the HTTP surface: routes plus the middleware
// chain shared by all API endpoints.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fakestore-systems/fakestore-api/internal/handlers"
	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/middleware"
	"github.com/fakestore-systems/fakestore-api/internal/ratelimit"
	"github.com/fakestore-systems/fakestore-api/internal/repository"
)

// NewRouter constructs the store API router. API routes run behind the full
// middleware chain; /health and /metrics stay outside it so probes and
// scrapes are never throttled.
func NewRouter(h *handlers.Handler, repo repository.IdempotencyRepository, limiter ratelimit.RateLimiter, guard *ratelimit.AbuseGuard, logger *logging.Logger) http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/products", h.Products)
	api.HandleFunc("/products/", h.ProductByID)
	api.HandleFunc("/orders", h.Orders)
	api.HandleFunc("/webhooks", h.Webhooks)
	api.HandleFunc("/webhooks/", h.WebhookByID)
	api.HandleFunc("/admin/metrics/overview", h.MetricsOverview)
	api.HandleFunc("/admin/metrics/latency", h.MetricsLatency)
	api.HandleFunc("/admin/dlq", h.DeadLetters)

	// Order matters: correlation first so every downstream log line carries
	// the id, throttling before idempotency so rejected requests never touch
	// the idempotency store, idempotency last so replays skip only the
	// handler itself.
	var chain http.Handler = api
	chain = middleware.Idempotency(repo, logger)(chain)
	if guard != nil {
		chain = middleware.Abuse(guard, logger)(chain)
	}
	chain = middleware.RateLimit(limiter, logger)(chain)
	chain = middleware.Correlation(chain)

	root := http.NewServeMux()
	root.HandleFunc("/health", h.Health)
	root.Handle("/metrics", promhttp.Handler())
	root.Handle("/", chain)
	return root
}
