package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/store"
)

// Postgres implements store.Store on top of a pgxpool.Pool, scoping
// each atomic operation from §4.1 to its own transaction.
type Postgres struct {
	pool *pgxpool.Pool
	q    *Queries
}

// NewStore builds a Postgres store from an already-configured pool
// (the caller owns the pool's lifecycle — Connect builds one from a DSN).
func NewStore(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, q: New(pool)}
}

// Connect opens a pool against dsn and verifies connectivity.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func (p *Postgres) CreateSubscriptionWithOrder(ctx context.Context, id domain.SubscriptionID, accountID int64, beneficiary, providerName string, testnet bool, order store.NewOrder) (*store.CreateSubscriptionResult, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, classify("CreateSubscriptionWithOrder", err)
	}
	defer tx.Rollback(ctx)

	q := New(tx)
	if err := q.InsertSubscription(ctx, InsertSubscriptionParams{
		ID: id, AccountID: accountID, BeneficiaryAddress: beneficiary, Provider: providerName, Testnet: testnet,
	}); err != nil {
		if isUniqueViolation(err) {
			return &store.CreateSubscriptionResult{Created: false}, nil
		}
		return nil, classify("CreateSubscriptionWithOrder", err)
	}

	orderID, err := q.InsertOrder(ctx, InsertOrderParams{
		SubscriptionID: id, OrderNumber: 1, Type: order.Type, DueAt: order.DueAt,
		Amount: order.Amount, PeriodLengthInSeconds: order.PeriodLengthInSeconds, Status: order.Status,
	})
	if err != nil {
		return nil, classify("CreateSubscriptionWithOrder", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify("CreateSubscriptionWithOrder", err)
	}
	return &store.CreateSubscriptionResult{Created: true, OrderID: orderID, OrderNumber: 1}, nil
}

func (p *Postgres) ExecuteSubscriptionActivation(ctx context.Context, in store.ActivationInput) (int64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, classify("ExecuteSubscriptionActivation", err)
	}
	defer tx.Rollback(ctx)
	q := New(tx)

	if err := q.InsertTransaction(ctx, InsertTransactionParams{
		OrderID: in.OrderID, SubscriptionID: in.SubscriptionID, TransactionHash: in.TransactionHash,
		Amount: in.Amount, Status: domain.TransactionConfirmed, GasUsed: in.GasUsed,
	}); err != nil {
		return 0, classify("ExecuteSubscriptionActivation", err)
	}

	if _, err := q.UpdateOrder(ctx, in.OrderID, domain.OrderPaid, nil, nil); err != nil {
		return 0, classify("ExecuteSubscriptionActivation", err)
	}

	nextNumber, err := q.NextOrderNumber(ctx, in.SubscriptionID)
	if err != nil {
		return 0, classify("ExecuteSubscriptionActivation", err)
	}
	nextOrderID, err := q.InsertOrder(ctx, InsertOrderParams{
		SubscriptionID: in.SubscriptionID, OrderNumber: nextNumber, Type: in.NextOrder.Type,
		DueAt: in.NextOrder.DueAt, Amount: in.NextOrder.Amount, PeriodLengthInSeconds: in.NextOrder.PeriodLengthInSeconds,
		Status: in.NextOrder.Status,
	})
	if err != nil {
		return 0, classify("ExecuteSubscriptionActivation", err)
	}

	if err := q.UpdateSubscriptionStatus(ctx, in.SubscriptionID, domain.SubscriptionActive); err != nil {
		return 0, classify("ExecuteSubscriptionActivation", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, classify("ExecuteSubscriptionActivation", err)
	}
	return nextOrderID, nil
}

func (p *Postgres) MarkSubscriptionIncomplete(ctx context.Context, subscriptionID domain.SubscriptionID, orderID int64, reason domain.ErrorCode) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return classify("MarkSubscriptionIncomplete", err)
	}
	defer tx.Rollback(ctx)
	q := New(tx)

	if _, err := q.UpdateOrder(ctx, orderID, domain.OrderFailed, &reason, nil); err != nil {
		return classify("MarkSubscriptionIncomplete", err)
	}
	if err := q.UpdateSubscriptionStatus(ctx, subscriptionID, domain.SubscriptionIncomplete); err != nil {
		return classify("MarkSubscriptionIncomplete", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("MarkSubscriptionIncomplete", err)
	}
	return nil
}

func (p *Postgres) ClaimDueOrders(ctx context.Context, limit int32, now time.Time) ([]store.DueOrder, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, classify("ClaimDueOrders", err)
	}
	defer tx.Rollback(ctx)

	rows, err := New(tx).ClaimDueOrders(ctx, limit, now)
	if err != nil {
		return nil, classify("ClaimDueOrders", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, classify("ClaimDueOrders", err)
	}

	out := make([]store.DueOrder, 0, len(rows))
	for _, r := range rows {
		out = append(out, store.DueOrder{
			Order:              r.Order,
			SubscriptionStatus: r.SubscriptionStatus,
			BeneficiaryAddress: r.BeneficiaryAddress,
			Provider:           r.Provider,
			Testnet:            r.Testnet,
			AccountID:          r.AccountID,
		})
	}
	return out, nil
}

func (p *Postgres) CreateNextOrder(ctx context.Context, subscriptionID domain.SubscriptionID, order store.NewOrder) (int64, int32, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, 0, classify("CreateNextOrder", err)
	}
	defer tx.Rollback(ctx)
	q := New(tx)

	number, err := q.NextOrderNumber(ctx, subscriptionID)
	if err != nil {
		return 0, 0, classify("CreateNextOrder", err)
	}
	id, err := q.InsertOrder(ctx, InsertOrderParams{
		SubscriptionID: subscriptionID, OrderNumber: number, Type: order.Type, DueAt: order.DueAt,
		Amount: order.Amount, PeriodLengthInSeconds: order.PeriodLengthInSeconds, Status: order.Status,
	})
	if err != nil {
		return 0, 0, classify("CreateNextOrder", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, 0, classify("CreateNextOrder", err)
	}
	return id, number, nil
}

func (p *Postgres) RecordTransaction(ctx context.Context, in store.RecordTransactionInput) error {
	err := p.q.InsertTransaction(ctx, InsertTransactionParams{
		OrderID: in.OrderID, SubscriptionID: in.SubscriptionID, TransactionHash: in.TransactionHash,
		Amount: in.Amount, Status: in.Status, GasUsed: in.GasUsed,
	})
	return classify("RecordTransaction", err)
}

func (p *Postgres) UpdateOrder(ctx context.Context, in store.UpdateOrderInput) (int32, error) {
	n, err := p.q.UpdateOrder(ctx, in.ID, in.Status, in.FailureReason, in.RawError)
	if err != nil {
		return 0, classify("UpdateOrder", err)
	}
	return n, nil
}

func (p *Postgres) UpdateSubscriptionStatus(ctx context.Context, id domain.SubscriptionID, status domain.SubscriptionStatus) error {
	return classify("UpdateSubscriptionStatus", p.q.UpdateSubscriptionStatus(ctx, id, status))
}

func (p *Postgres) ScheduleRetry(ctx context.Context, in store.ScheduleRetryInput) error {
	return classify("ScheduleRetry", p.q.ScheduleRetry(ctx, in.OrderID, in.NextRetryAt, in.FailureReason, in.RawError))
}

func (p *Postgres) ReactivateSubscription(ctx context.Context, orderID int64, subscriptionID domain.SubscriptionID) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return classify("ReactivateSubscription", err)
	}
	defer tx.Rollback(ctx)
	q := New(tx)

	if _, err := q.UpdateOrder(ctx, orderID, domain.OrderPaid, nil, nil); err != nil {
		return classify("ReactivateSubscription", err)
	}
	if err := q.UpdateSubscriptionStatus(ctx, subscriptionID, domain.SubscriptionActive); err != nil {
		return classify("ReactivateSubscription", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify("ReactivateSubscription", err)
	}
	return nil
}

func (p *Postgres) CancelPendingOrders(ctx context.Context, subscriptionID domain.SubscriptionID) ([]int64, error) {
	ids, err := p.q.CancelPendingOrders(ctx, subscriptionID)
	if err != nil {
		return nil, classify("CancelPendingOrders", err)
	}
	return ids, nil
}

func (p *Postgres) CancelSubscription(ctx context.Context, id domain.SubscriptionID) error {
	return classify("CancelSubscription", p.q.UpdateSubscriptionStatus(ctx, id, domain.SubscriptionCanceled))
}

func (p *Postgres) GetSubscription(ctx context.Context, id domain.SubscriptionID) (*domain.Subscription, error) {
	s, err := p.q.GetSubscription(ctx, id)
	if err != nil {
		return nil, classify("GetSubscription", err)
	}
	return s, nil
}

func (p *Postgres) GetSubscriptionOrders(ctx context.Context, id domain.SubscriptionID) ([]domain.Order, error) {
	o, err := p.q.GetSubscriptionOrders(ctx, id)
	if err != nil {
		return nil, classify("GetSubscriptionOrders", err)
	}
	return o, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, accountID int64, testnet *bool) ([]domain.Subscription, error) {
	s, err := p.q.ListSubscriptions(ctx, accountID, testnet)
	if err != nil {
		return nil, classify("ListSubscriptions", err)
	}
	return s, nil
}

func (p *Postgres) GetOrderDetails(ctx context.Context, orderID int64) (*domain.Order, error) {
	o, err := p.q.GetOrder(ctx, orderID)
	if err != nil {
		return nil, classify("GetOrderDetails", err)
	}
	return o, nil
}

func (p *Postgres) GetOrderByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	o, err := p.q.GetOrder(ctx, orderID)
	if err != nil {
		return nil, classify("GetOrderByID", err)
	}
	return o, nil
}

func (p *Postgres) GetSuccessfulTransaction(ctx context.Context, subscriptionID domain.SubscriptionID, orderID int64) (*domain.Transaction, error) {
	t, err := p.q.GetSuccessfulTransaction(ctx, subscriptionID, orderID)
	if err != nil {
		return nil, classify("GetSuccessfulTransaction", err)
	}
	return t, nil
}

func (p *Postgres) GetAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	a, err := p.q.GetAccountByID(ctx, id)
	if err != nil {
		return nil, classify("GetAccountByID", err)
	}
	return a, nil
}

func (p *Postgres) GetAccountByWalletAddress(ctx context.Context, wallet string) (*domain.Account, error) {
	a, err := p.q.GetAccountByWalletAddress(ctx, wallet)
	if err != nil {
		return nil, classify("GetAccountByWalletAddress", err)
	}
	return a, nil
}

func (p *Postgres) GetOrCreateAccount(ctx context.Context, wallet string, externalAuthUserID *string) (*domain.Account, error) {
	a, err := p.q.UpsertAccount(ctx, wallet, externalAuthUserID)
	if err != nil {
		return nil, classify("GetOrCreateAccount", err)
	}
	return a, nil
}

func (p *Postgres) CreateApiKey(ctx context.Context, key domain.ApiKey) error {
	return classify("CreateApiKey", p.q.InsertApiKey(ctx, key))
}

func (p *Postgres) GetApiKeyByHash(ctx context.Context, keyHash string) (*domain.ApiKey, error) {
	k, err := p.q.GetApiKeyByHash(ctx, keyHash)
	if err != nil {
		return nil, classify("GetApiKeyByHash", err)
	}
	return k, nil
}

func (p *Postgres) ListApiKeys(ctx context.Context, accountID int64) ([]domain.ApiKey, error) {
	k, err := p.q.ListApiKeys(ctx, accountID)
	if err != nil {
		return nil, classify("ListApiKeys", err)
	}
	return k, nil
}

func (p *Postgres) UpdateApiKey(ctx context.Context, id string, name *string, enabled *bool) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return classify("UpdateApiKey", err)
	}
	return classify("UpdateApiKey", p.q.UpdateApiKey(ctx, parsed, name, enabled))
}

func (p *Postgres) DeleteApiKey(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return classify("DeleteApiKey", err)
	}
	return classify("DeleteApiKey", p.q.DeleteApiKey(ctx, parsed))
}

func (p *Postgres) TouchApiKeyLastUsed(ctx context.Context, id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return classify("TouchApiKeyLastUsed", err)
	}
	return classify("TouchApiKeyLastUsed", p.q.TouchApiKeyLastUsed(ctx, parsed))
}

func (p *Postgres) UpsertWebhook(ctx context.Context, w domain.Webhook) error {
	return classify("UpsertWebhook", p.q.UpsertWebhook(ctx, w))
}

func (p *Postgres) GetWebhook(ctx context.Context, accountID int64) (*domain.Webhook, error) {
	w, err := p.q.GetWebhook(ctx, accountID)
	if err != nil {
		return nil, classify("GetWebhook", err)
	}
	return w, nil
}

func (p *Postgres) RotateWebhookSecret(ctx context.Context, accountID int64, newSecret string) error {
	return classify("RotateWebhookSecret", p.q.RotateWebhookSecret(ctx, accountID, newSecret))
}

func (p *Postgres) DeleteWebhook(ctx context.Context, accountID int64) error {
	return classify("DeleteWebhook", p.q.DeleteWebhook(ctx, accountID))
}

func (p *Postgres) TouchWebhookLastUsed(ctx context.Context, accountID int64) error {
	return classify("TouchWebhookLastUsed", p.q.TouchWebhookLastUsed(ctx, accountID))
}

var _ store.Store = (*Postgres)(nil)
