// Package sqsorderqueue implements orderqueue.Queue on AWS SQS, for
// the serverless deployment where cmd/processor runs as a
// Lambda triggered by this queue (grounded on the same
// SendMessage/message-attribute idiom as webhook/queue/sqsqueue).
package sqsorderqueue

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/basesub/subscriptions/internal/scheduler/orderqueue"
)

// Queue publishes process-order messages to a single SQS queue.
type Queue struct {
	client   *sqs.Client
	queueURL string
}

// New wraps an sqs.Client bound to queueURL.
func New(client *sqs.Client, queueURL string) *Queue {
	return &Queue{client: client, queueURL: queueURL}
}

func (q *Queue) Enqueue(ctx context.Context, m orderqueue.Message) error {
	body, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("marshal order message: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &q.queueURL,
		MessageBody: strPtr(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"OrderID":  {StringValue: strPtr(strconv.FormatInt(m.OrderID, 10)), DataType: strPtr("Number")},
			"Provider": {StringValue: strPtr(m.Provider), DataType: strPtr("String")},
		},
	})
	if err != nil {
		return fmt.Errorf("send order message to sqs: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }

var _ orderqueue.Queue = (*Queue)(nil)
