// Package queue provides the durable job queue that decouples event
// publishing from asynchronous processing. Jobs are delivered at least once:
// failed jobs are retried with exponential backoff and moved to a dead letter
// queue once their attempt budget is exhausted.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// State is the lifecycle state of a job.
type State string

const (
	StatePending      State = "pending"
	StateProcessing   State = "processing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
	StateDeadLettered State = "dead_lettered"
)

// BackoffPolicy controls the delay between retry attempts.
type BackoffPolicy struct {
	// BaseDelay is the delay after the first failure; subsequent failures
	// double it.
	BaseDelay time.Duration `json:"-"`
}

// The persisted job record carries the base delay in milliseconds.
type backoffJSON struct {
	BaseDelayMs int64 `json:"baseDelayMs"`
}

func (b BackoffPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(backoffJSON{BaseDelayMs: b.BaseDelay.Milliseconds()})
}

func (b *BackoffPolicy) UnmarshalJSON(data []byte) error {
	var raw backoffJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.BaseDelay = time.Duration(raw.BaseDelayMs) * time.Millisecond
	return nil
}

// Delay returns the wait before the next attempt given the number of
// attempts already made (1-based): base * 2^(attemptsMade-1).
func (b BackoffPolicy) Delay(attemptsMade int) time.Duration {
	if attemptsMade < 1 {
		attemptsMade = 1
	}
	return b.BaseDelay << (attemptsMade - 1)
}

// Job is one unit of asynchronous work. Each job corresponds to exactly one
// published event. A job is owned by the worker that dequeued it; no other
// worker mutates it.
type Job struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Payload       map[string]any `json:"payload"`
	CorrelationID string         `json:"correlationId"`
	AttemptsMade  int            `json:"attemptsMade"`
	MaxAttempts   int            `json:"maxAttempts"`
	Backoff       BackoffPolicy  `json:"backoff"`
	State         State          `json:"state"`
}

// DeadLetter is a job that exhausted its retry budget, preserved with its
// original payload for operational inspection.
type DeadLetter struct {
	JobID         string         `json:"jobId"`
	JobName       string         `json:"jobName"`
	Payload       map[string]any `json:"payload"`
	CorrelationID string         `json:"correlationId"`
	Reason        string         `json:"reason"`
	FailedAt      time.Time      `json:"failedAt"`
}

// Handler processes a dequeued job. A non-nil error marks the attempt as
// failed and triggers retry or dead-lettering per the job's policy.
type Handler func(ctx context.Context, job *Job) error

// Enqueuer appends jobs to the queue. The event bus depends only on this.
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// Queue is a durable job queue with a consuming worker pool and a dead
// letter queue.
type Queue interface {
	Enqueuer

	// Run consumes jobs with the given pool size, dispatching each to h.
	// It blocks until ctx is cancelled.
	Run(ctx context.Context, concurrency int, h Handler) error

	// DeadLetters returns up to limit dead-lettered jobs.
	DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)

	// PurgeDeadLetters removes all dead-lettered jobs.
	PurgeDeadLetters(ctx context.Context) error

	Close() error
}
