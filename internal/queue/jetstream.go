package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/fakestore-systems/fakestore-api/internal/correlation"
	"github.com/fakestore-systems/fakestore-api/internal/logging"
	"github.com/fakestore-systems/fakestore-api/internal/metrics"
)

const (
	eventStreamName = "EVENTS"
	dlqStreamName   = "EVENTS_DLQ"
	consumerName    = "event-workers"
)

// JetStreamConfig holds NATS JetStream queue configuration.
type JetStreamConfig struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222").
	URL string

	// Name is the client name for connection identification.
	Name string

	// MaxReconnects is the maximum number of reconnection attempts.
	// Use -1 for infinite reconnects.
	MaxReconnects int

	// ReconnectWait is the time to wait between reconnection attempts.
	ReconnectWait time.Duration

	// MaxDeliver caps broker-side redeliveries per job. It should match the
	// highest MaxAttempts any enqueued job carries.
	MaxDeliver int

	// AckWait is the time to wait for acknowledgment before redelivery.
	AckWait time.Duration
}

// DefaultJetStreamConfig returns a config with sensible defaults.
func DefaultJetStreamConfig(url string) JetStreamConfig {
	return JetStreamConfig{
		URL:           url,
		Name:          "fakestore-queue",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		MaxDeliver:    3,
		AckWait:       30 * time.Second,
	}
}

// JetStreamQueue is a Queue backed by NATS JetStream. Jobs are published to a
// work-queue stream and consumed by a durable consumer shared by all worker
// instances, so a job is owned by exactly one worker at a time. Failed jobs
// are NAKed with an exponential delay; jobs that exhaust their attempt budget
// are published onto a separate dead letter stream.
type JetStreamQueue struct {
	conn      *nats.Conn
	js        jetstream.JetStream
	stream    jetstream.Stream
	dlqStream jetstream.Stream
	cfg       JetStreamConfig
	logger    *logging.Logger
}

// NewJetStreamQueue connects to NATS and creates the event and dead letter
// streams.
func NewJetStreamQueue(ctx context.Context, cfg JetStreamConfig, logger *logging.Logger) (*JetStreamQueue, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      eventStreamName,
		Subjects:  []string{"events.>"},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create event stream: %w", err)
	}

	dlqStream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     dlqStreamName,
		Subjects: []string{"dlq.>"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create dead letter stream: %w", err)
	}

	return &JetStreamQueue{
		conn:      conn,
		js:        js,
		stream:    stream,
		dlqStream: dlqStream,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Enqueue publishes a job to the event stream and waits for the broker
// acknowledgment, so an acked enqueue survives process restarts.
func (q *JetStreamQueue) Enqueue(ctx context.Context, job *Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	job.State = StatePending

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	subject := fmt.Sprintf("events.%s", job.Name)
	if _, err := q.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	return nil
}

// Run consumes jobs until ctx is cancelled. Handler errors trigger a NAK
// with the job's backoff delay while attempts remain; exhausted jobs are
// moved to the dead letter stream and acknowledged.
func (q *JetStreamQueue) Run(ctx context.Context, concurrency int, h Handler) error {
	if concurrency < 1 {
		concurrency = 1
	}

	consumer, err := q.stream.CreateOrUpdateConsumer(ctx, q.consumerConfig(concurrency))
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	// Bound handler parallelism with a semaphore; Consume delivers messages
	// from a single goroutine.
	sem := make(chan struct{}, concurrency)

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			q.process(ctx, msg, h)
		}()
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer cons.Stop()

	<-ctx.Done()
	return ctx.Err()
}

// consumerConfig reserves one delivery beyond the retry budget. A job whose
// dead letter publish fails on the final attempt would otherwise vanish: with
// NumDelivered already at MaxDeliver the broker never redelivers it, leaving
// it on neither stream.
func (q *JetStreamQueue) consumerConfig(concurrency int) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Name:          consumerName,
		Durable:       consumerName,
		FilterSubject: "events.>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       q.cfg.AckWait,
		MaxDeliver:    q.cfg.MaxDeliver + 1,
		MaxAckPending: concurrency * 2,
	}
}

func (q *JetStreamQueue) process(ctx context.Context, msg jetstream.Msg, h Handler) {
	var job Job
	if err := json.Unmarshal(msg.Data(), &job); err != nil {
		q.logger.Error("failed to parse job, acknowledging", "subject", msg.Subject(), "error", err.Error())
		_ = msg.Ack()
		return
	}

	meta, err := msg.Metadata()
	if err != nil {
		q.logger.Error("failed to read message metadata", "job_id", job.ID, "error", err.Error())
		_ = msg.Nak()
		return
	}

	job.State = StateProcessing
	job.AttemptsMade = int(meta.NumDelivered)

	jobCtx := correlation.WithID(ctx, job.CorrelationID)

	// A delivery beyond the attempt budget is the reserved one: the handler
	// already ran MaxAttempts times and a previous dead letter publish failed.
	// Finish the move without re-running the handler.
	if job.AttemptsMade > job.MaxAttempts {
		job.AttemptsMade = job.MaxAttempts
		q.deadLetter(jobCtx, msg, &job, errors.New("retries exhausted"))
		return
	}

	if err := h(jobCtx, &job); err == nil {
		job.State = StateCompleted
		_ = msg.Ack()
		return
	} else if job.AttemptsMade < job.MaxAttempts {
		delay := job.Backoff.Delay(job.AttemptsMade)
		q.logger.WarnContext(jobCtx, "job failed, scheduling retry",
			"job_id", job.ID,
			"job_name", job.Name,
			"attempt", job.AttemptsMade,
			"delay", delay.String(),
			"error", err.Error(),
		)
		_ = msg.NakWithDelay(delay)
		return
	} else {
		q.deadLetter(jobCtx, msg, &job, err)
	}
}

func (q *JetStreamQueue) deadLetter(ctx context.Context, msg jetstream.Msg, job *Job, cause error) {
	job.State = StateDeadLettered
	q.logger.ErrorContext(ctx, "job exhausted retries, moving to dead letter queue",
		"job_id", job.ID,
		"job_name", job.Name,
		"attempts", job.AttemptsMade,
		"error", cause.Error(),
	)

	dl := DeadLetter{
		JobID:         job.ID,
		JobName:       job.Name,
		Payload:       job.Payload,
		CorrelationID: job.CorrelationID,
		Reason:        cause.Error(),
		FailedAt:      time.Now().UTC(),
	}

	data, err := json.Marshal(dl)
	if err != nil {
		q.logger.Error("failed to marshal dead letter entry", "job_id", job.ID, "error", err.Error())
		_ = msg.Ack()
		return
	}

	subject := fmt.Sprintf("dlq.%s", job.Name)
	if _, err := q.js.Publish(ctx, subject, data); err != nil {
		// NAK so the reserved delivery (consumer MaxDeliver is one above the
		// attempt budget) retries the move.
		q.logger.Error("failed to publish dead letter entry", "job_id", job.ID, "error", err.Error())
		_ = msg.NakWithDelay(time.Second)
		return
	}

	metrics.DeadLetters.WithLabelValues(job.Name).Inc()
	_ = msg.Ack()
}

// DeadLetters reads up to limit entries from the dead letter stream using an
// ephemeral consumer.
func (q *JetStreamQueue) DeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}

	consumer, err := q.dlqStream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: "dlq.>",
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create dead letter consumer: %w", err)
	}

	msgs, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dead letters: %w", err)
	}

	var entries []DeadLetter
	for msg := range msgs.Messages() {
		var dl DeadLetter
		if err := json.Unmarshal(msg.Data(), &dl); err != nil {
			q.logger.Error("failed to parse dead letter entry", "error", err.Error())
			continue
		}
		entries = append(entries, dl)
	}

	return entries, nil
}

// PurgeDeadLetters removes all entries from the dead letter stream.
func (q *JetStreamQueue) PurgeDeadLetters(ctx context.Context) error {
	if err := q.dlqStream.Purge(ctx); err != nil {
		return fmt.Errorf("failed to purge dead letter stream: %w", err)
	}
	return nil
}

// Close drains the NATS connection.
func (q *JetStreamQueue) Close() error {
	return q.conn.Drain()
}
