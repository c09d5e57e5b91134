package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/basesub/subscriptions/internal/domain"
)

// InsertOrderParams is the sqlc-style params struct for InsertOrder.
type InsertOrderParams struct {
	SubscriptionID        domain.SubscriptionID
	OrderNumber           int32
	Type                  domain.OrderType
	DueAt                 time.Time
	Amount                string
	PeriodLengthInSeconds int64
	Status                domain.OrderStatus
	ParentOrderID         *int64
}

// InsertOrder inserts one order row and returns its generated id.
func (q *Queries) InsertOrder(ctx context.Context, arg InsertOrderParams) (int64, error) {
	const query = `
INSERT INTO orders (subscription_id, order_number, type, due_at, amount, period_length_seconds, status, attempts, parent_order_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, now())
RETURNING id`
	var id int64
	err := q.db.QueryRow(ctx, query, arg.SubscriptionID[:], arg.OrderNumber, string(arg.Type), arg.DueAt, arg.Amount,
		arg.PeriodLengthInSeconds, string(arg.Status), arg.ParentOrderID).Scan(&id)
	return id, err
}

// NextOrderNumber returns the next sequential order_number for a
// subscription (1 for the first order).
func (q *Queries) NextOrderNumber(ctx context.Context, subscriptionID domain.SubscriptionID) (int32, error) {
	const query = `SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders WHERE subscription_id = $1`
	var next int32
	err := q.db.QueryRow(ctx, query, subscriptionID[:]).Scan(&next)
	return next, err
}

// GetOrder fetches one order by id.
func (q *Queries) GetOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	const query = `
SELECT id, subscription_id, order_number, type, due_at, amount, period_length_seconds, status, attempts,
       parent_order_id, next_retry_at, failure_reason, raw_error, created_at
FROM orders WHERE id = $1`
	return scanOrder(q.db.QueryRow(ctx, query, orderID))
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var subIDBytes []byte
	var orderType, status string
	var failureReason pgtype.Text
	var rawError pgtype.Text
	var nextRetryAt pgtype.Timestamptz
	var parentOrderID pgtype.Int8

	if err := row.Scan(&o.ID, &subIDBytes, &o.OrderNumber, &orderType, &o.DueAt, &o.Amount, &o.PeriodLengthInSeconds,
		&status, &o.Attempts, &parentOrderID, &nextRetryAt, &failureReason, &rawError, &o.CreatedAt); err != nil {
		return nil, err
	}
	copy(o.SubscriptionID[:], subIDBytes)
	o.Type = domain.OrderType(orderType)
	o.Status = domain.OrderStatus(status)
	if parentOrderID.Valid {
		v := parentOrderID.Int64
		o.ParentOrderID = &v
	}
	if nextRetryAt.Valid {
		t := nextRetryAt.Time
		o.NextRetryAt = &t
	}
	if failureReason.Valid {
		code := domain.ErrorCode(failureReason.String)
		o.FailureReason = &code
	}
	if rawError.Valid {
		o.RawError = &rawError.String
	}
	return &o, nil
}

// GetSubscriptionOrders lists every order for a subscription, oldest first.
func (q *Queries) GetSubscriptionOrders(ctx context.Context, subscriptionID domain.SubscriptionID) ([]domain.Order, error) {
	const query = `
SELECT id, subscription_id, order_number, type, due_at, amount, period_length_seconds, status, attempts,
       parent_order_id, next_retry_at, failure_reason, raw_error, created_at
FROM orders WHERE subscription_id = $1 ORDER BY order_number ASC`
	rows, err := q.db.Query(ctx, query, subscriptionID[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateOrder updates status/failure fields and returns order_number
// for event payloads.
func (q *Queries) UpdateOrder(ctx context.Context, id int64, status domain.OrderStatus, failureReason *domain.ErrorCode, rawError *string) (int32, error) {
	const query = `
UPDATE orders SET status = $2, failure_reason = $3, raw_error = $4 WHERE id = $1
RETURNING order_number`
	var orderNumber int32
	err := q.db.QueryRow(ctx, query, id, string(status), failureReason, rawError).Scan(&orderNumber)
	return orderNumber, err
}

// ScheduleRetry sets status=pending_retry, increments attempts, and
// records the next retry time and failure reason.
func (q *Queries) ScheduleRetry(ctx context.Context, orderID int64, nextRetryAt time.Time, failureReason domain.ErrorCode, rawError string) error {
	const query = `
UPDATE orders SET status = 'pending_retry', attempts = attempts + 1, next_retry_at = $2, failure_reason = $3, raw_error = $4
WHERE id = $1`
	_, err := q.db.Exec(ctx, query, orderID, nextRetryAt, string(failureReason), rawError)
	return err
}

// ClaimDueOrders selects up to limit orders that are due, belong to
// an active or past_due subscription, and locks them with FOR UPDATE SKIP LOCKED
// so two concurrent schedulers never claim the same row, then flips
// them to processing in the same statement via a CTE.
func (q *Queries) ClaimDueOrders(ctx context.Context, limit int32, now time.Time) ([]DueOrderRow, error) {
	const query = `
WITH candidates AS (
	SELECT o.id
	FROM orders o
	JOIN subscriptions s ON s.subscription_id = o.subscription_id
	WHERE o.status = 'pending' AND o.due_at <= $2
	  AND s.status IN ('active', 'past_due')
	ORDER BY o.due_at ASC
	LIMIT $1
	FOR UPDATE OF o SKIP LOCKED
)
UPDATE orders o
SET status = 'processing'
FROM candidates c, subscriptions s
WHERE o.id = c.id AND s.subscription_id = o.subscription_id
RETURNING o.id, o.subscription_id, o.order_number, o.type, o.due_at, o.amount, o.period_length_seconds,
          o.status, o.attempts, o.parent_order_id, o.next_retry_at, o.failure_reason, o.raw_error, o.created_at,
          s.status, s.beneficiary_address, s.provider, s.testnet, s.account_id`
	rows, err := q.db.Query(ctx, query, limit, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DueOrderRow
	for rows.Next() {
		var d DueOrderRow
		var subIDBytes []byte
		var orderType, orderStatus, subStatus string
		var failureReason, rawError pgtype.Text
		var nextRetryAt pgtype.Timestamptz
		var parentOrderID pgtype.Int8

		if err := rows.Scan(&d.ID, &subIDBytes, &d.OrderNumber, &orderType, &d.DueAt, &d.Amount, &d.PeriodLengthInSeconds,
			&orderStatus, &d.Attempts, &parentOrderID, &nextRetryAt, &failureReason, &rawError, &d.CreatedAt,
			&subStatus, &d.BeneficiaryAddress, &d.Provider, &d.Testnet, &d.AccountID); err != nil {
			return nil, err
		}
		copy(d.SubscriptionID[:], subIDBytes)
		d.Type = domain.OrderType(orderType)
		d.Status = domain.OrderStatus(orderStatus)
		d.SubscriptionStatus = domain.SubscriptionStatus(subStatus)
		if parentOrderID.Valid {
			v := parentOrderID.Int64
			d.ParentOrderID = &v
		}
		if nextRetryAt.Valid {
			t := nextRetryAt.Time
			d.NextRetryAt = &t
		}
		if failureReason.Valid {
			code := domain.ErrorCode(failureReason.String)
			d.FailureReason = &code
		}
		if rawError.Valid {
			d.RawError = &rawError.String
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DueOrderRow is the flat scan target for ClaimDueOrders; postgres.go
// folds it into store.DueOrder.
type DueOrderRow struct {
	domain.Order
	SubscriptionStatus domain.SubscriptionStatus
	BeneficiaryAddress string
	Provider           string
	Testnet            bool
	AccountID          int64
}

// CancelPendingOrders marks every non-terminal order for a
// subscription as failed (reason: subscription canceled) and returns
// their ids so the caller can cancel matching scheduler timers.
func (q *Queries) CancelPendingOrders(ctx context.Context, subscriptionID domain.SubscriptionID) ([]int64, error) {
	const query = `
UPDATE orders SET status = 'failed', failure_reason = $2
WHERE subscription_id = $1 AND status NOT IN ('paid', 'failed')
RETURNING id`
	rows, err := q.db.Query(ctx, query, subscriptionID[:], string(domain.ReasonSubscriptionCanceled))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
