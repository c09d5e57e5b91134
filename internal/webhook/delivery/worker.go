// Package delivery implements the consumer side of the webhook queue:
// the HTTP POST attempt with exponential backoff, and the DLQ
// terminal-state handler, grounded on the teacher's dlq-processor
// main.go (attempt counting, backoff computation, retryable-error
// classification by substring).
package delivery

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/metrics"
	"github.com/basesub/subscriptions/internal/webhook/queue"
)

// Requeuer re-enqueues a delivery with its Attempt counter advanced,
// typically after a backoff sleep. Source implements this over
// whichever transport (sqsqueue/rabbitqueue) is wired in.
type Requeuer interface {
	queue.Queue
}

// Worker consumes deliveries, attempts HTTP POST, and either
// considers the delivery done, requeues it for a later retry, or
// routes it to the DLQ once queue.MaxAttempts is exhausted.
type Worker struct {
	httpClient *http.Client
	requeue    Requeuer
	dlq        queue.DLQ
	logger     *zap.Logger
	// sleep waits out the backoff delay between an attempt and its
	// requeue; overridden in tests to avoid real wall-clock delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Worker. deadline bounds each individual POST attempt.
func New(requeue Requeuer, dlq queue.DLQ, logger *zap.Logger, deadline time.Duration) *Worker {
	return &Worker{
		httpClient: &http.Client{Timeout: deadline},
		requeue:    requeue,
		dlq:        dlq,
		logger:     logger,
		sleep:      realSleep,
	}
}

func realSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handle processes one delivery: attempt the POST, and on failure
// either schedule a retry (by sleeping the backoff delay and
// requeueing) or hand off to the DLQ. Returns nil once the delivery
// reaches a terminal state (delivered, requeued, or DLQ'd) — callers
// should ack the source message in all three cases, since retry state
// lives entirely in the requeued message body, not in queue redelivery.
func (w *Worker) Handle(ctx context.Context, d queue.Delivery) error {
	err := w.attempt(ctx, d)
	if err == nil {
		w.logger.Info("webhook delivered", zap.String("subscription_id", d.SubscriptionID), zap.Int("attempt", d.Attempt))
		metrics.WebhookDeliveryAttempts.WithLabelValues("delivered").Inc()
		return nil
	}

	w.logger.Warn("webhook delivery attempt failed",
		zap.String("subscription_id", d.SubscriptionID),
		zap.Int("attempt", d.Attempt),
		zap.Error(err))

	if d.Attempt+1 >= queue.MaxAttempts {
		if dlqErr := w.dlq.Send(ctx, d, err.Error()); dlqErr != nil {
			return fmt.Errorf("route to dlq after %d attempts: %w", d.Attempt+1, dlqErr)
		}
		w.logger.Error("webhook delivery exhausted retries, routed to dlq",
			zap.String("subscription_id", d.SubscriptionID), zap.Int("attempts", d.Attempt+1))
		metrics.WebhookDeliveryAttempts.WithLabelValues("dlq").Inc()
		return nil
	}

	next := d
	next.Attempt++
	delay := queue.NextAttemptDelay(d.Attempt)

	if err := w.sleep(ctx, delay); err != nil {
		return err
	}

	if err := w.requeue.Enqueue(ctx, next); err != nil {
		return fmt.Errorf("requeue after backoff: %w", err)
	}
	metrics.WebhookDeliveryAttempts.WithLabelValues("retried").Inc()
	return nil
}

// attempt performs the single HTTP POST and classifies success as any
// 2xx status, per spec §4.6.
func (w *Worker) attempt(ctx context.Context, d queue.Delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", "sha256="+d.Signature)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return nil
}
