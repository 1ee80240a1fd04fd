// Package eventbus fans domain events out to two delivery paths: volatile
// in-process subscribers invoked synchronously, and the durable queue that
// guarantees the event's asynchronous side effects survive restarts and
// transient failures. The two paths are deliberately decoupled; a failure on
// one never blocks the other.
package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fakestore-systems/fakestore-api/internal/correlation"
	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/metrics"
	"github.com/fakestore-systems/fakestore-api/internal/queue"
)

// Domain event names. The queue job created for an event carries the same
// name.
const (
	ProductCreated = "ProductCreated"
	OrderCreated   = "OrderCreated"
)

// Event is a published domain event. Immutable once published.
type Event struct {
	Name          string
	Payload       map[string]any
	CorrelationID string
}

// Handler is an in-process subscriber callback.
type Handler func(ctx context.Context, event Event) error

// Bus registers in-process subscribers and publishes events to both
// delivery paths.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler

	enqueuer    queue.Enqueuer
	logger      *logging.Logger
	maxAttempts int
	baseDelay   time.Duration
}

// New creates a Bus that enqueues published events onto enq with three
// attempts and an exponential backoff starting at one second.
func New(enq queue.Enqueuer, logger *logging.Logger) *Bus {
	return &Bus{
		handlers:    make(map[string][]Handler),
		enqueuer:    enq,
		logger:      logger,
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
}

// Subscribe registers an in-process handler for an event name.
func (b *Bus) Subscribe(eventName string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], h)
}

// Publish attaches the current correlation ID to the event, invokes all
// registered handlers concurrently and waits for them, then enqueues the
// event onto the durable queue regardless of whether any handler exists.
// Handler errors are logged and returned joined; they do not prevent the
// enqueue.
func (b *Bus) Publish(ctx context.Context, eventName string, payload map[string]any) error {
	correlationID := correlation.ID(ctx)

	enriched := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		enriched[k] = v
	}
	enriched["correlationId"] = correlationID

	event := Event{
		Name:          eventName,
		Payload:       enriched,
		CorrelationID: correlationID,
	}

	metrics.EventsPublished.WithLabelValues(eventName).Inc()

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[eventName]...)
	b.mu.RUnlock()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for _, h := range handlers {
		wg.Add(1)
		go func(h Handler) {
			defer wg.Done()
			if err := h(ctx, event); err != nil {
				b.logger.ErrorContext(ctx, "event handler failed",
					"event", eventName,
					"error", err.Error(),
				)
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(h)
	}
	wg.Wait()

	job := &queue.Job{
		ID:            uuid.New().String(),
		Name:          eventName,
		Payload:       enriched,
		CorrelationID: correlationID,
		MaxAttempts:   b.maxAttempts,
		Backoff:       queue.BackoffPolicy{BaseDelay: b.baseDelay},
	}
	if err := b.enqueuer.Enqueue(ctx, job); err != nil {
		errs = append(errs, fmt.Errorf("failed to enqueue event %s: %w", eventName, err))
	}

	return errors.Join(errs...)
}
