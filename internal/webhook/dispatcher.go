package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/metrics"
	"github.com/fakestore-systems/fakestore-api/internal/models"
	"github.com/fakestore-systems/fakestore-api/internal/repository"
)

// Delivery headers.
const (
	HeaderWebhookID = "X-Webhook-Id"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderSignature = "X-Webhook-Signature"
)

const defaultDeliveryTimeout = 5 * time.Second

// Dispatcher delivers an event to every webhook registered for it. Targets
// are fully isolated from each other: one slow or failing endpoint never
// affects delivery to the rest, and delivery failures are recorded but never
// surfaced to the caller.
type Dispatcher struct {
	webhooks  repository.WebhookRepository
	opMetrics repository.OperationalMetricRepository
	client    *http.Client
	logger    *logging.Logger
}

// NewDispatcher creates a dispatcher with the given per-delivery timeout.
// A timeout of zero falls back to five seconds.
func NewDispatcher(webhooks repository.WebhookRepository, opMetrics repository.OperationalMetricRepository, timeout time.Duration, logger *logging.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	return &Dispatcher{
		webhooks:  webhooks,
		opMetrics: opMetrics,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Trigger delivers payload to every webhook registered for event,
// concurrently, and waits for all deliveries to finish. Individual delivery
// failures are logged and recorded as operational metrics; Trigger itself
// only fails when the payload cannot be serialized or the subscriber lookup
// fails.
func (d *Dispatcher) Trigger(ctx context.Context, event string, payload any) error {
	targets, err := d.webhooks.FindWebhooksByEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to find webhooks for event %s: %w", event, err)
	}
	if len(targets) == 0 {
		return nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	done := make(chan struct{}, len(targets))
	for _, target := range targets {
		go func(target *models.Webhook) {
			defer func() { done <- struct{}{} }()
			d.deliver(ctx, event, target, body)
		}(target)
	}
	for range targets {
		<-done
	}

	return nil
}

// deliver posts the signed payload to a single target. The signature covers
// the webhook ID, a fresh epoch-millisecond timestamp and the exact bytes of
// the body.
func (d *Dispatcher) deliver(ctx context.Context, event string, target *models.Webhook, body []byte) {
	timestamp := time.Now().UnixMilli()
	signature := Sign(target.ID, target.Secret, timestamp, body)

	start := time.Now()
	err := d.post(ctx, target, timestamp, signature, body)
	elapsed := time.Since(start)

	metrics.WebhookDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.WebhooksFailed.WithLabelValues(event).Inc()
		d.logger.ErrorContext(ctx, "webhook delivery failed",
			"webhook_id", target.ID,
			"event", event,
			"url", target.URL,
			"error", err.Error(),
		)
		d.record(ctx, "failed", target.ID, elapsed, map[string]string{
			"event": event,
			"error": err.Error(),
		})
		return
	}

	metrics.WebhooksSent.WithLabelValues(event).Inc()
	d.logger.InfoContext(ctx, "webhook delivered",
		"webhook_id", target.ID,
		"event", event,
		"duration_ms", elapsed.Milliseconds(),
	)
	d.record(ctx, "sent", target.ID, elapsed, map[string]string{"event": event})
}

func (d *Dispatcher) post(ctx context.Context, target *models.Webhook, timestamp int64, signature string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookID, target.ID)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderSignature, signature)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// record persists a delivery outcome for the admin reporting endpoints.
// Recording failures are logged and otherwise ignored.
func (d *Dispatcher) record(ctx context.Context, outcome, webhookID string, elapsed time.Duration, meta map[string]string) {
	durationMs := elapsed.Milliseconds()
	m := &models.OperationalMetric{
		Type:       "webhook",
		Name:       outcome,
		RefID:      webhookID,
		DurationMs: &durationMs,
		Meta:       meta,
	}
	if err := d.opMetrics.InsertOperationalMetric(ctx, m); err != nil {
		d.logger.Error("failed to record webhook metric", "webhook_id", webhookID, "error", err.Error())
	}
}
