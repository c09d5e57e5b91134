// Package rabbitqueue implements webhook delivery queueing on
// RabbitMQ, grounded on the pack's AmqpService (durable queue
// declare + PublishWithContext idiom).
package rabbitqueue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/basesub/subscriptions/internal/webhook/queue"
)

// Queue publishes webhook deliveries to a durable RabbitMQ queue over
// a long-lived channel.
type Queue struct {
	channel   *amqp.Channel
	queueName string
}

// New declares (idempotently) a durable queue and returns a Queue
// bound to it.
func New(conn *amqp.Connection, queueName string) (*Queue, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	return &Queue{channel: ch, queueName: queueName}, nil
}

func (q *Queue) Enqueue(ctx context.Context, d queue.Delivery) error {
	body, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	return q.channel.PublishWithContext(ctx, "", q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Send implements queue.DLQ; lastError is carried as a message header
// since the body format must stay a plain queue.Delivery.
func (q *Queue) Send(ctx context.Context, d queue.Delivery, lastError string) error {
	body, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	return q.channel.PublishWithContext(ctx, "", q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{"last_error": lastError},
		Body:         body,
	})
}

// Consume starts delivering messages to handle until ctx is canceled
// or the channel closes, mirroring rabbitorderqueue.Consume: ack on a
// nil return (delivery reached a terminal state per
// delivery.Worker.Handle's contract), requeue-nack otherwise.
func (q *Queue) Consume(ctx context.Context, consumerTag string, handle func(context.Context, queue.Delivery) error) error {
	deliveries, err := q.channel.Consume(q.queueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.queueName, err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed for %s", q.queueName)
			}
			msg, err := queue.Unmarshal(d.Body)
			if err != nil {
				d.Nack(false, false) // malformed body: drop, don't requeue forever
				continue
			}
			if err := handle(ctx, msg); err != nil {
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}
}

// Close releases the underlying channel.
func (q *Queue) Close() error { return q.channel.Close() }

var (
	_ queue.Queue = (*Queue)(nil)
	_ queue.DLQ   = (*Queue)(nil)
)
