// Package sqsqueue implements webhook delivery queueing on AWS SQS,
// grounded on the teacher's webhook-receiver/main.go SendMessage
// wiring (same SDK, same message-attribute tagging idiom).
package sqsqueue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/basesub/subscriptions/internal/webhook/queue"
)

// Queue publishes webhook deliveries to a single SQS queue. The DLQ
// is a second instance pointed at the dead-letter queue URL.
type Queue struct {
	client   *sqs.Client
	queueURL string
}

// New wraps an sqs.Client bound to queueURL.
func New(client *sqs.Client, queueURL string) *Queue {
	return &Queue{client: client, queueURL: queueURL}
}

func (q *Queue) Enqueue(ctx context.Context, d queue.Delivery) error {
	body, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &q.queueURL,
		MessageBody: strPtr(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"SubscriptionID": {StringValue: strPtr(d.SubscriptionID), DataType: strPtr("String")},
			"Attempt":        {StringValue: strPtr(fmt.Sprintf("%d", d.Attempt)), DataType: strPtr("Number")},
		},
	})
	if err != nil {
		return fmt.Errorf("send to sqs: %w", err)
	}
	return nil
}

// Send implements queue.DLQ for the dead-letter instance.
func (q *Queue) Send(ctx context.Context, d queue.Delivery, lastError string) error {
	body, err := d.Marshal()
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &q.queueURL,
		MessageBody: strPtr(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"SubscriptionID": {StringValue: strPtr(d.SubscriptionID), DataType: strPtr("String")},
			"LastError":      {StringValue: strPtr(lastError), DataType: strPtr("String")},
		},
	})
	if err != nil {
		return fmt.Errorf("send to dlq: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }

var (
	_ queue.Queue = (*Queue)(nil)
	_ queue.DLQ   = (*Queue)(nil)
)
