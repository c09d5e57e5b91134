// Package rabbitorderqueue implements orderqueue.Queue on RabbitMQ,
// for the long-lived-worker deployment where cmd/processor runs a
// standing consumer loop against this queue (grounded on the pack's
// AmqpService durable-queue idiom, same as webhook/queue/rabbitqueue).
package rabbitorderqueue

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/basesub/subscriptions/internal/scheduler/orderqueue"
)

// Queue publishes process-order messages to a durable RabbitMQ queue.
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

func (q *Queue) Enqueue(ctx context.Context, m orderqueue.Message) error {
	body, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("marshal order message: %w", err)
	}
	return q.channel.PublishWithContext(ctx, "", q.queueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume starts delivering messages to handle until ctx is canceled
// or the channel closes. Each message is acked after handle returns
// nil, nacked-with-requeue otherwise (a requeue simply re-attempts the
// same idempotent ProcessOrder call).
func (q *Queue) Consume(ctx context.Context, consumerTag string, handle func(context.Context, orderqueue.Message) error) error {
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
			m, err := orderqueue.Unmarshal(d.Body)
			if err != nil {
				d.Nack(false, false) // malformed body: drop, don't requeue forever
				continue
			}
			if err := handle(ctx, m); err != nil {
				d.Nack(false, true)
				continue
			}
			d.Ack(false)
		}
	}
}

// Close releases the underlying channel.
func (q *Queue) Close() error { return q.channel.Close() }

var _ orderqueue.Queue = (*Queue)(nil)
