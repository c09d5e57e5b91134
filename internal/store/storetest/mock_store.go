// Package storetest provides a hand-written in-memory store.Store for
// unit tests that exercise callers (processor, service) without a
// database.
package storetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/store"
)

func notFound(op string) error {
	return &store.StorageError{Kind: store.NotFound, Op: op, Err: errors.New("not found")}
}

// MemStore is a minimal, non-concurrent-safe-beyond-a-mutex in-memory
// implementation of store.Store for tests.
type MemStore struct {
	mu            sync.Mutex
	subscriptions map[domain.SubscriptionID]*domain.Subscription
	orders        map[int64]*domain.Order
	transactions  map[int64]*domain.Transaction
	accounts      map[int64]*domain.Account
	webhooks      map[int64]*domain.Webhook
	apiKeys       map[uuid.UUID]*domain.ApiKey
	nextOrderID   int64
	nextAccountID int64
}

// New returns an empty MemStore.
func New() *MemStore {
	return &MemStore{
		subscriptions: map[domain.SubscriptionID]*domain.Subscription{},
		orders:        map[int64]*domain.Order{},
		transactions:  map[int64]*domain.Transaction{},
		accounts:      map[int64]*domain.Account{},
		webhooks:      map[int64]*domain.Webhook{},
		apiKeys:       map[uuid.UUID]*domain.ApiKey{},
	}
}

func (m *MemStore) CreateSubscriptionWithOrder(ctx context.Context, id domain.SubscriptionID, accountID int64, beneficiary, providerName string, testnet bool, order store.NewOrder) (*store.CreateSubscriptionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscriptions[id]; ok {
		return &store.CreateSubscriptionResult{Created: false}, nil
	}
	now := time.Now()
	m.subscriptions[id] = &domain.Subscription{
		ID: id, Status: domain.SubscriptionProcessing, AccountID: accountID,
		BeneficiaryAddress: beneficiary, Provider: providerName, Testnet: testnet,
		CreatedAt: now, ModifiedAt: now,
	}
	m.nextOrderID++
	oid := m.nextOrderID
	m.orders[oid] = &domain.Order{
		ID: oid, SubscriptionID: id, OrderNumber: 1, Type: order.Type, DueAt: order.DueAt,
		Amount: order.Amount, PeriodLengthInSeconds: order.PeriodLengthInSeconds, Status: order.Status,
		CreatedAt: now,
	}
	return &store.CreateSubscriptionResult{Created: true, OrderID: oid, OrderNumber: 1}, nil
}

func (m *MemStore) ExecuteSubscriptionActivation(ctx context.Context, in store.ActivationInput) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[in.OrderID] = &domain.Transaction{
		OrderID: in.OrderID, TransactionHash: in.TransactionHash, SubscriptionID: in.SubscriptionID,
		Amount: in.Amount, Status: domain.TransactionConfirmed, GasUsed: in.GasUsed, CreatedAt: time.Now(),
	}
	if o, ok := m.orders[in.OrderID]; ok {
		o.Status = domain.OrderPaid
	}
	m.nextOrderID++
	nid := m.nextOrderID
	m.orders[nid] = &domain.Order{
		ID: nid, SubscriptionID: in.SubscriptionID, OrderNumber: 2, Type: in.NextOrder.Type,
		DueAt: in.NextOrder.DueAt, Amount: in.NextOrder.Amount, PeriodLengthInSeconds: in.NextOrder.PeriodLengthInSeconds,
		Status: in.NextOrder.Status, CreatedAt: time.Now(),
	}
	if s, ok := m.subscriptions[in.SubscriptionID]; ok {
		s.Status = domain.SubscriptionActive
		s.ModifiedAt = time.Now()
	}
	return nid, nil
}

func (m *MemStore) MarkSubscriptionIncomplete(ctx context.Context, subscriptionID domain.SubscriptionID, orderID int64, reason domain.ErrorCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.Status = domain.OrderFailed
		o.FailureReason = &reason
	}
	if s, ok := m.subscriptions[subscriptionID]; ok {
		s.Status = domain.SubscriptionIncomplete
	}
	return nil
}

func (m *MemStore) ClaimDueOrders(ctx context.Context, limit int32, now time.Time) ([]store.DueOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.DueOrder
	for _, o := range m.orders {
		if int32(len(out)) >= limit {
			break
		}
		if o.Status != domain.OrderPending || o.DueAt.After(now) {
			continue
		}
		sub, ok := m.subscriptions[o.SubscriptionID]
		if !ok || !sub.Status.Chargeable() {
			continue
		}
		o.Status = domain.OrderProcessing
		out = append(out, store.DueOrder{
			Order: *o, SubscriptionStatus: sub.Status, BeneficiaryAddress: sub.BeneficiaryAddress,
			Provider: sub.Provider, Testnet: sub.Testnet, AccountID: sub.AccountID,
		})
	}
	return out, nil
}

func (m *MemStore) CreateNextOrder(ctx context.Context, subscriptionID domain.SubscriptionID, order store.NewOrder) (int64, int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var maxNumber int32
	for _, o := range m.orders {
		if o.SubscriptionID == subscriptionID && o.OrderNumber > maxNumber {
			maxNumber = o.OrderNumber
		}
	}
	number := maxNumber + 1
	m.nextOrderID++
	id := m.nextOrderID
	m.orders[id] = &domain.Order{
		ID: id, SubscriptionID: subscriptionID, OrderNumber: number, Type: order.Type, DueAt: order.DueAt,
		Amount: order.Amount, PeriodLengthInSeconds: order.PeriodLengthInSeconds, Status: order.Status,
		CreatedAt: time.Now(),
	}
	return id, number, nil
}

func (m *MemStore) RecordTransaction(ctx context.Context, in store.RecordTransactionInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[in.OrderID] = &domain.Transaction{
		OrderID: in.OrderID, TransactionHash: in.TransactionHash, SubscriptionID: in.SubscriptionID,
		Amount: in.Amount, Status: in.Status, GasUsed: in.GasUsed, CreatedAt: time.Now(),
	}
	return nil
}

func (m *MemStore) UpdateOrder(ctx context.Context, in store.UpdateOrderInput) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[in.ID]
	if !ok {
		return 0, notFound("UpdateOrder")
	}
	o.Status = in.Status
	o.FailureReason = in.FailureReason
	o.RawError = in.RawError
	return o.OrderNumber, nil
}

func (m *MemStore) UpdateSubscriptionStatus(ctx context.Context, id domain.SubscriptionID, status domain.SubscriptionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.subscriptions[id]; ok {
		s.Status = status
		s.ModifiedAt = time.Now()
	}
	return nil
}

func (m *MemStore) ScheduleRetry(ctx context.Context, in store.ScheduleRetryInput) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[in.OrderID]; ok {
		o.Status = domain.OrderPendingRetry
		o.Attempts++
		o.NextRetryAt = &in.NextRetryAt
		reason := in.FailureReason
		o.FailureReason = &reason
		o.RawError = &in.RawError
	}
	return nil
}

func (m *MemStore) ReactivateSubscription(ctx context.Context, orderID int64, subscriptionID domain.SubscriptionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.Status = domain.OrderPaid
	}
	if s, ok := m.subscriptions[subscriptionID]; ok {
		s.Status = domain.SubscriptionActive
	}
	return nil
}

func (m *MemStore) CancelPendingOrders(ctx context.Context, subscriptionID domain.SubscriptionID) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	reason := domain.ReasonSubscriptionCanceled
	for _, o := range m.orders {
		if o.SubscriptionID == subscriptionID && !o.Status.Terminal() {
			o.Status = domain.OrderFailed
			o.FailureReason = &reason
			ids = append(ids, o.ID)
		}
	}
	return ids, nil
}

func (m *MemStore) CancelSubscription(ctx context.Context, id domain.SubscriptionID) error {
	return m.UpdateSubscriptionStatus(ctx, id, domain.SubscriptionCanceled)
}

func (m *MemStore) GetSubscription(ctx context.Context, id domain.SubscriptionID) (*domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subscriptions[id]
	if !ok {
		return nil, notFound("GetSubscription")
	}
	cp := *s
	return &cp, nil
}

func (m *MemStore) GetSubscriptionOrders(ctx context.Context, id domain.SubscriptionID) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.SubscriptionID == id {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *MemStore) ListSubscriptions(ctx context.Context, accountID int64, testnet *bool) ([]domain.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Subscription
	for _, s := range m.subscriptions {
		if s.AccountID != accountID {
			continue
		}
		if testnet != nil && s.Testnet != *testnet {
			continue
		}
		out = append(out, *s)
	}
	return out, nil
}

func (m *MemStore) GetOrderDetails(ctx context.Context, orderID int64) (*domain.Order, error) {
	return m.GetOrderByID(ctx, orderID)
}

func (m *MemStore) GetOrderByID(ctx context.Context, orderID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, notFound("GetOrderByID")
	}
	cp := *o
	return &cp, nil
}

func (m *MemStore) GetSuccessfulTransaction(ctx context.Context, subscriptionID domain.SubscriptionID, orderID int64) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.transactions[orderID]
	if !ok || t.Status != domain.TransactionConfirmed || t.SubscriptionID != subscriptionID {
		return nil, notFound("GetSuccessfulTransaction")
	}
	cp := *t
	return &cp, nil
}

func (m *MemStore) GetAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, notFound("GetAccountByID")
	}
	cp := *a
	return &cp, nil
}

func (m *MemStore) GetAccountByWalletAddress(ctx context.Context, wallet string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.WalletAddress == wallet {
			cp := *a
			return &cp, nil
		}
	}
	return nil, notFound("GetAccountByWalletAddress")
}

func (m *MemStore) GetOrCreateAccount(ctx context.Context, wallet string, externalAuthUserID *string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.WalletAddress == wallet {
			cp := *a
			return &cp, nil
		}
	}
	m.nextAccountID++
	a := &domain.Account{ID: m.nextAccountID, WalletAddress: wallet, ExternalAuthUserID: externalAuthUserID, CreatedAt: time.Now()}
	m.accounts[a.ID] = a
	cp := *a
	return &cp, nil
}

func (m *MemStore) CreateApiKey(ctx context.Context, key domain.ApiKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kCopy := key
	m.apiKeys[key.ID] = &kCopy
	return nil
}

func (m *MemStore) GetApiKeyByHash(ctx context.Context, keyHash string) (*domain.ApiKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.apiKeys {
		if k.KeyHash == keyHash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, notFound("GetApiKeyByHash")
}

func (m *MemStore) ListApiKeys(ctx context.Context, accountID int64) ([]domain.ApiKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ApiKey
	for _, k := range m.apiKeys {
		if k.AccountID == accountID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (m *MemStore) UpdateApiKey(ctx context.Context, id string, name *string, enabled *bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parsed, err := uuid.Parse(id)
	if err != nil {
		return notFound("UpdateApiKey")
	}
	k, ok := m.apiKeys[parsed]
	if !ok {
		return notFound("UpdateApiKey")
	}
	if name != nil {
		k.Name = *name
	}
	if enabled != nil {
		k.Enabled = *enabled
	}
	return nil
}

func (m *MemStore) DeleteApiKey(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parsed, err := uuid.Parse(id)
	if err != nil {
		return notFound("DeleteApiKey")
	}
	if _, ok := m.apiKeys[parsed]; !ok {
		return notFound("DeleteApiKey")
	}
	delete(m.apiKeys, parsed)
	return nil
}

func (m *MemStore) TouchApiKeyLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parsed, err := uuid.Parse(id)
	if err != nil {
		return notFound("TouchApiKeyLastUsed")
	}
	k, ok := m.apiKeys[parsed]
	if !ok {
		return notFound("TouchApiKeyLastUsed")
	}
	now := time.Now()
	k.LastUsedAt = &now
	return nil
}

func (m *MemStore) UpsertWebhook(ctx context.Context, w domain.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.webhooks[w.AccountID]; ok {
		w.CreatedAt = existing.CreatedAt
	} else {
		w.CreatedAt = time.Now()
	}
	wCopy := w
	m.webhooks[w.AccountID] = &wCopy
	return nil
}

func (m *MemStore) GetWebhook(ctx context.Context, accountID int64) (*domain.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[accountID]
	if !ok {
		return nil, notFound("GetWebhook")
	}
	wCopy := *w
	return &wCopy, nil
}

func (m *MemStore) RotateWebhookSecret(ctx context.Context, accountID int64, newSecret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[accountID]
	if !ok {
		return notFound("RotateWebhookSecret")
	}
	w.Secret = newSecret
	return nil
}

func (m *MemStore) DeleteWebhook(ctx context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[accountID]
	if !ok {
		return notFound("DeleteWebhook")
	}
	now := time.Now()
	w.DeletedAt = &now
	w.Enabled = false
	return nil
}

func (m *MemStore) TouchWebhookLastUsed(ctx context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.webhooks[accountID]
	if !ok {
		return notFound("TouchWebhookLastUsed")
	}
	now := time.Now()
	w.LastUsedAt = &now
	return nil
}

var _ store.Store = (*MemStore)(nil)
