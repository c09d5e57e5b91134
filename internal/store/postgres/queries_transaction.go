package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/basesub/subscriptions/internal/domain"
)

// InsertTransactionParams is the sqlc-style params struct for InsertTransaction.
type InsertTransactionParams struct {
	OrderID         int64
	SubscriptionID  domain.SubscriptionID
	TransactionHash string
	Amount          string
	Status          domain.TransactionStatus
	GasUsed         *int64
}

// InsertTransaction records one on-chain settlement row.
func (q *Queries) InsertTransaction(ctx context.Context, arg InsertTransactionParams) error {
	const query = `
INSERT INTO transactions (order_id, subscription_id, transaction_hash, amount, status, gas_used, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())`
	_, err := q.db.Exec(ctx, query, arg.OrderID, arg.SubscriptionID[:], arg.TransactionHash, arg.Amount, string(arg.Status), arg.GasUsed)
	return err
}

// GetSuccessfulTransaction fetches the confirmed settlement for one order.
func (q *Queries) GetSuccessfulTransaction(ctx context.Context, subscriptionID domain.SubscriptionID, orderID int64) (*domain.Transaction, error) {
	const query = `
SELECT order_id, transaction_hash, subscription_id, amount, status, gas_used, created_at
FROM transactions WHERE subscription_id = $1 AND order_id = $2 AND status = 'confirmed'`
	return scanTransaction(q.db.QueryRow(ctx, query, subscriptionID[:], orderID))
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var subIDBytes []byte
	var status string
	var gasUsed pgtype.Int8
	if err := row.Scan(&t.OrderID, &t.TransactionHash, &subIDBytes, &t.Amount, &status, &gasUsed, &t.CreatedAt); err != nil {
		return nil, err
	}
	copy(t.SubscriptionID[:], subIDBytes)
	t.Status = domain.TransactionStatus(status)
	if gasUsed.Valid {
		v := gasUsed.Int64
		t.GasUsed = &v
	}
	return &t, nil
}
