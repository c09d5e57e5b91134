// Package webhook implements the outbound notification system of
// spec §4.6: one event type, subscription.updated, fanned out across
// six lifecycle edges, signed and delivered at-least-once via a queue.
package webhook

import (
	"encoding/json"
	"time"

	"github.com/basesub/subscriptions/internal/domain"
)

// EventType is the lifecycle edge that produced this delivery. All of
// them serialise to the same wire event name, subscription.updated;
// EventType only selects which optional payload fields are populated.
type EventType string

const (
	EventSubscriptionCreated   EventType = "subscription_created"
	EventSubscriptionActivated EventType = "subscription_activated"
	EventPaymentProcessed      EventType = "payment_processed"
	EventPaymentFailed         EventType = "payment_failed"
	EventActivationFailed      EventType = "activation_failed"
	EventSubscriptionCanceled  EventType = "subscription_canceled"
)

const wireEventName = "subscription.updated"

// SubscriptionPayload is the event's mandatory sub-object.
type SubscriptionPayload struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Amount          string `json:"amount"`
	PeriodInSeconds int64  `json:"period_in_seconds"`
	Testnet         bool   `json:"testnet,omitempty"`
}

// OrderPayload is included whenever the emission concerns a specific
// charge attempt.
type OrderPayload struct {
	Number             int32  `json:"number"`
	Status             string `json:"status"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
}

// TransactionPayload is included once a charge has settled on-chain.
type TransactionPayload struct {
	Hash   string `json:"hash"`
	Amount string `json:"amount"`
}

// ErrorPayload carries a sanitised domain.HTTPError.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Data is the event's data field; every member but Subscription is
// optional depending on EventType.
type Data struct {
	Subscription SubscriptionPayload `json:"subscription"`
	Order        *OrderPayload       `json:"order,omitempty"`
	Transaction  *TransactionPayload `json:"transaction,omitempty"`
	Error        *ErrorPayload       `json:"error,omitempty"`
	NextRetryAt  *int64              `json:"next_retry_at,omitempty"`
}

// Event is the full JSON body delivered to a merchant's webhook URL.
type Event struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Data      Data   `json:"data"`
}

// newEvent stamps the common envelope; callers populate Data.
func newEvent(now time.Time, data Data) Event {
	return Event{Event: wireEventName, CreatedAt: now.Unix(), Data: data}
}

// subscriptionPayload renders the mandatory sub-object shared by
// every emission.
func subscriptionPayload(sub *domain.Subscription, amount string, periodInSeconds int64) SubscriptionPayload {
	p := SubscriptionPayload{
		ID:              sub.ID.String(),
		Status:          string(sub.Status),
		Amount:          amount,
		PeriodInSeconds: periodInSeconds,
	}
	if sub.Testnet {
		p.Testnet = true
	}
	return p
}

// orderPayload derives current_period_start/end from dueAt and
// periodInSeconds, per spec §4.6 step 2.
func orderPayload(order *domain.Order) *OrderPayload {
	start := order.DueAt.Unix()
	return &OrderPayload{
		Number:             order.OrderNumber,
		Status:             string(order.Status),
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start + order.PeriodLengthInSeconds,
	}
}

// errorPayload sanitises err per spec §4.6 step 3 before it leaves
// the core: only the 402/payment class is exposable verbatim.
func errorPayload(err *domain.HTTPError) *ErrorPayload {
	sanitized := domain.Sanitize(err)
	return &ErrorPayload{Code: string(sanitized.Code), Message: sanitized.Message}
}

// Marshal serialises the event for signing and delivery.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
