package domain

import "time"

// OrderType distinguishes the activation charge from later cycles.
type OrderType string

const (
	OrderInitial   OrderType = "initial"
	OrderRecurring OrderType = "recurring"
	OrderRetry     OrderType = "retry"
)

// OrderStatus is the lifecycle of a single charge attempt.
type OrderStatus string

const (
	OrderPending      OrderStatus = "pending"
	OrderProcessing   OrderStatus = "processing"
	OrderPaid         OrderStatus = "paid"
	OrderFailed       OrderStatus = "failed"
	OrderPendingRetry OrderStatus = "pending_retry"
)

// Terminal reports whether this status is terminal (paid or failed)
// with respect to the "exactly one non-terminal order per subscription"
// invariant (spec §3); a false result means the order is in flight.
func (s OrderStatus) Terminal() bool {
	return s == OrderPaid || s == OrderFailed
}

// Order is a single charge attempt bound to one subscription.
type Order struct {
	ID                    int64
	SubscriptionID        SubscriptionID
	OrderNumber           int32
	Type                  OrderType
	DueAt                 time.Time
	Amount                string
	PeriodLengthInSeconds int64
	Status                OrderStatus
	Attempts              int32
	ParentOrderID         *int64
	NextRetryAt           *time.Time
	FailureReason         *ErrorCode
	RawError              *string
	CreatedAt             time.Time
}
