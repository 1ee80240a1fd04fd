// Package worker consumes the durable queue and dispatches jobs by name to
// their handlers. Handler failures bubble up to the queue, which drives retry
// and dead-lettering; only unknown job names are swallowed since retrying a
// job no handler exists for cannot succeed.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/fakestore-systems/fakestore-api/internal/analytics"
	"github.com/fakestore-systems/fakestore-api/internal/eventbus"
	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/metrics"
	"github.com/fakestore-systems/fakestore-api/internal/models"
	"github.com/fakestore-systems/fakestore-api/internal/queue"
	"github.com/fakestore-systems/fakestore-api/internal/repository"
	"github.com/fakestore-systems/fakestore-api/internal/webhook"
)

// Worker processes queued event jobs.
type Worker struct {
	queue      queue.Queue
	dispatcher *webhook.Dispatcher
	analytics  *analytics.Service
	opMetrics  repository.OperationalMetricRepository
	logger     *logging.Logger
}

func New(q queue.Queue, dispatcher *webhook.Dispatcher, analyticsSvc *analytics.Service, opMetrics repository.OperationalMetricRepository, logger *logging.Logger) *Worker {
	return &Worker{
		queue:      q,
		dispatcher: dispatcher,
		analytics:  analyticsSvc,
		opMetrics:  opMetrics,
		logger:     logger,
	}
}

// Run consumes the queue with the given pool size until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, concurrency int) error {
	w.logger.Info("worker started", "concurrency", concurrency)
	return w.queue.Run(ctx, concurrency, w.Handle)
}

// Handle processes one job. It is exported for direct use in tests.
func (w *Worker) Handle(ctx context.Context, job *queue.Job) error {
	start := time.Now()
	err := w.dispatch(ctx, job)
	elapsed := time.Since(start)

	metrics.JobDuration.Observe(elapsed.Seconds())

	if err != nil {
		metrics.JobsFailed.WithLabelValues(job.Name).Inc()
		w.record(ctx, "failed", job, elapsed, err)
		return err
	}

	metrics.JobsCompleted.WithLabelValues(job.Name).Inc()
	w.record(ctx, "completed", job, elapsed, nil)
	return nil
}

func (w *Worker) dispatch(ctx context.Context, job *queue.Job) error {
	switch job.Name {
	case eventbus.ProductCreated:
		return w.handleProductCreated(ctx, job)
	case eventbus.OrderCreated:
		return w.handleOrderCreated(ctx, job)
	default:
		// A job nobody handles is a wiring bug, not a transient failure.
		// Acknowledge it so it is not retried.
		w.logger.WarnContext(ctx, "unknown job name, acknowledging", "job_id", job.ID, "job_name", job.Name)
		metrics.JobsUnknown.Inc()
		return nil
	}
}

func (w *Worker) handleProductCreated(ctx context.Context, job *queue.Job) error {
	if err := w.dispatcher.Trigger(ctx, eventbus.ProductCreated, job.Payload); err != nil {
		return fmt.Errorf("failed to trigger webhooks: %w", err)
	}
	return nil
}

func (w *Worker) handleOrderCreated(ctx context.Context, job *queue.Job) error {
	if err := w.dispatcher.Trigger(ctx, eventbus.OrderCreated, job.Payload); err != nil {
		return fmt.Errorf("failed to trigger webhooks: %w", err)
	}

	event := purchaseEventFromPayload(job.Payload)
	if err := w.analytics.TrackPurchase(ctx, event); err != nil {
		return fmt.Errorf("failed to track purchase: %w", err)
	}
	return nil
}

// purchaseEventFromPayload extracts the analytics view of an order payload.
// Numbers arrive as float64 after the JSON round trip through the queue.
func purchaseEventFromPayload(payload map[string]any) analytics.PurchaseEvent {
	event := analytics.PurchaseEvent{}
	if id, ok := payload["orderId"].(string); ok {
		event.OrderID = id
	}

	items, ok := payload["items"].([]any)
	if !ok {
		return event
	}
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		pi := analytics.PurchaseItem{}
		if id, ok := item["productId"].(string); ok {
			pi.ProductID = id
		}
		switch qty := item["quantity"].(type) {
		case float64:
			pi.Quantity = int(qty)
		case int:
			pi.Quantity = qty
		}
		event.Items = append(event.Items, pi)
	}
	return event
}

func (w *Worker) record(ctx context.Context, outcome string, job *queue.Job, elapsed time.Duration, cause error) {
	durationMs := elapsed.Milliseconds()
	m := &models.OperationalMetric{
		Type:       "job",
		Name:       outcome,
		RefID:      job.ID,
		DurationMs: &durationMs,
		Meta:       map[string]string{"job_name": job.Name},
	}
	if cause != nil {
		m.Meta["error"] = cause.Error()
	}
	if err := w.opMetrics.InsertOperationalMetric(ctx, m); err != nil {
		w.logger.Error("failed to record job metric", "job_id", job.ID, "error", err.Error())
	}
}
