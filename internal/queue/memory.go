package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fakestore-systems/fakestore-api/internal/correlation"
	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/metrics"
)

// MemoryQueue is an in-process Queue implementation with the full retry,
// backoff and dead-letter semantics. Used by tests and by single-process
// deployments without a broker; jobs do not survive a restart.
type MemoryQueue struct {
	logger *logging.Logger

	mu          sync.Mutex
	pending     chan *Job
	deadLetters []DeadLetter
	closed      bool
}

// NewMemoryQueue creates a memory queue with the given pending buffer size.
func NewMemoryQueue(buffer int, logger *logging.Logger) *MemoryQueue {
	if buffer <= 0 {
		buffer = 1024
	}
	return &MemoryQueue{
		logger:  logger,
		pending: make(chan *Job, buffer),
	}
}

// Enqueue appends a job in Pending state.
func (q *MemoryQueue) Enqueue(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.State = StatePending

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	select {
	case q.pending <- job:
		return nil
	default:
		return fmt.Errorf("queue is full")
	}
}

// Run consumes jobs with a pool of concurrency workers until ctx is
// cancelled. Each job is owned by exactly one worker at a time.
func (q *MemoryQueue) Run(ctx context.Context, concurrency int, h Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-q.pending:
					q.process(ctx, job, h)
				}
			}
		}()
	}

	wg.Wait()
	return ctx.Err()
}

func (q *MemoryQueue) process(ctx context.Context, job *Job, h Handler) {
	job.State = StateProcessing
	job.AttemptsMade++

	jobCtx := correlation.WithID(ctx, job.CorrelationID)
	err := h(jobCtx, job)
	if err == nil {
		job.State = StateCompleted
		return
	}

	job.State = StateFailed
	if job.AttemptsMade < job.MaxAttempts {
		q.scheduleRetry(job, err)
		return
	}

	q.deadLetter(jobCtx, job, err)
}

// scheduleRetry moves a failed job back to Pending after the backoff delay.
func (q *MemoryQueue) scheduleRetry(job *Job, cause error) {
	delay := job.Backoff.Delay(job.AttemptsMade)
	q.logger.Warn("job failed, scheduling retry",
		"job_id", job.ID,
		"job_name", job.Name,
		"correlation_id", job.CorrelationID,
		"attempt", job.AttemptsMade,
		"delay", delay.String(),
		"error", cause.Error(),
	)

	time.AfterFunc(delay, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.closed {
			return
		}

		job.State = StatePending
		select {
		case q.pending <- job:
		default:
			q.logger.Error("retry dropped, queue is full", "job_id", job.ID, "job_name", job.Name)
		}
	})
}

func (q *MemoryQueue) deadLetter(ctx context.Context, job *Job, cause error) {
	job.State = StateDeadLettered
	q.logger.ErrorContext(ctx, "job exhausted retries, moving to dead letter queue",
		"job_id", job.ID,
		"job_name", job.Name,
		"attempts", job.AttemptsMade,
		"error", cause.Error(),
	)
	metrics.DeadLetters.WithLabelValues(job.Name).Inc()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetters = append(q.deadLetters, DeadLetter{
		JobID:         job.ID,
		JobName:       job.Name,
		Payload:       job.Payload,
		CorrelationID: job.CorrelationID,
		Reason:        cause.Error(),
		FailedAt:      time.Now().UTC(),
	})
}

// DeadLetters returns up to limit dead-lettered jobs, oldest first.
func (q *MemoryQueue) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if limit <= 0 || limit > len(q.deadLetters) {
		limit = len(q.deadLetters)
	}

	out := make([]DeadLetter, limit)
	copy(out, q.deadLetters[:limit])
	return out, nil
}

// PurgeDeadLetters removes all dead-lettered jobs.
func (q *MemoryQueue) PurgeDeadLetters(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetters = nil
	return nil
}

// Close stops accepting jobs and discards scheduled retries.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	return nil
}
