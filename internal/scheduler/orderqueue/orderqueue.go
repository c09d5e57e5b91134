// Package orderqueue carries the message a fired OrderScheduler timer
// hands to the process-order entry point (C5), separating "when to
// process" (cmd/scheduler's dispatcher) from "how to process"
// (cmd/processor's queue consumer), per spec §9's "serverless vs
// long-lived worker" background-task note.
package orderqueue

import (
	"context"
	"encoding/json"

	"github.com/basesub/subscriptions/internal/scheduler"
)

// Message is the wire payload enqueued on fire; it carries exactly
// what scheduler.Handler receives.
type Message struct {
	OrderID  int64  `json:"order_id"`
	Provider string `json:"provider"`
}

// Marshal/Unmarshal round-trip a Message through the queue's
// byte-string wire format.
func (m Message) Marshal() ([]byte, error) { return json.Marshal(m) }

// Unmarshal decodes a Message previously produced by Marshal.
func Unmarshal(b []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(b, &m)
	return m, err
}

// FromDueOrder converts a scheduler.DueOrder fire event to the
// message enqueued for a process-order consumer.
func FromDueOrder(d scheduler.DueOrder) Message {
	return Message{OrderID: d.OrderID, Provider: d.Provider}
}

// DueOrder converts the message back to a scheduler.DueOrder for
// handing to processor.ProcessOrder.
func (m Message) DueOrder() scheduler.DueOrder {
	return scheduler.DueOrder{OrderID: m.OrderID, Provider: m.Provider}
}

// Queue is the publish contract cmd/scheduler's dispatcher depends on.
type Queue interface {
	Enqueue(ctx context.Context, m Message) error
}
