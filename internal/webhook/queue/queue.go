// Package queue defines the webhook delivery queue contract and two
// concrete transports (SQS, RabbitMQ) the outbox and delivery worker
// are wired against.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Delivery is one queued attempt at delivering a signed webhook
// payload to a merchant's URL.
type Delivery struct {
	SubscriptionID string `json:"subscription_id"`
	URL            string `json:"url"`
	Payload        []byte `json:"payload"`
	Signature      string `json:"signature"`
	Timestamp      int64  `json:"timestamp"`
	// Attempt is 0 on first enqueue; the delivery worker increments it
	// on each requeue so backoff and the DLQ handoff can be computed
	// from the message alone.
	Attempt int `json:"attempt"`
}

// Marshal/Unmarshal round-trip a Delivery through the queue's
// byte-string wire format.
func (d Delivery) Marshal() ([]byte, error) { return json.Marshal(d) }

// Unmarshal decodes a Delivery previously produced by Marshal.
func Unmarshal(b []byte) (Delivery, error) {
	var d Delivery
	err := json.Unmarshal(b, &d)
	return d, err
}

// NextAttemptDelay implements the backoff schedule of spec §4.6: base
// 5s, multiplier 2, capped at 600s.
func NextAttemptDelay(attempt int) time.Duration {
	const (
		base = 5 * time.Second
		cap  = 600 * time.Second
	)
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}

// MaxAttempts is the delivery worker's retry ceiling before a message
// routes to the DLQ (spec §4.6: "≤ 10 attempts").
const MaxAttempts = 10

// Queue is the publish/receive contract the outbox and delivery
// worker depend on; sqsqueue and rabbitqueue are its concrete
// implementations.
type Queue interface {
	// Enqueue publishes a delivery attempt for later processing.
	Enqueue(ctx context.Context, d Delivery) error
}

// DLQ is the terminal sink for deliveries that exhausted MaxAttempts.
type DLQ interface {
	Send(ctx context.Context, d Delivery, lastError string) error
}
