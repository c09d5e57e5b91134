package domain

import "time"

// TransactionStatus tracks on-chain settlement of an order's charge.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionConfirmed TransactionStatus = "confirmed"
	TransactionFailed    TransactionStatus = "failed"
)

// Transaction is the on-chain settlement record for an Order. Primary
// key is OrderID — at most one confirmed transaction per order.
type Transaction struct {
	OrderID         int64
	TransactionHash string
	SubscriptionID  SubscriptionID
	Amount          string
	Status          TransactionStatus
	GasUsed         *int64
	CreatedAt       time.Time
}
