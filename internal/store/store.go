// Package store defines the transactional persistence contract (C1).
// All mutations happen through these named atomic operations;
// ad-hoc writes are forbidden — callers never issue SQL of their own.
package store

import (
	"context"
	"time"

	"github.com/basesub/subscriptions/internal/domain"
)

// Kind classifies a StorageError so callers can decide whether to
// retry or report.
type Kind int

const (
	// Conflict is semantic: a unique violation interpreted as
	// "already exists".
	Conflict Kind = iota
	NotFound
	Constraint
	// Transient is retryable by the caller.
	Transient
)

// StorageError is the only error type Store operations return.
type StorageError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func newErr(kind Kind, op string, err error) *StorageError {
	return &StorageError{Kind: kind, Op: op, Err: err}
}

// NewOrder describes the first order created alongside a subscription.
type NewOrder struct {
	DueAt                 time.Time
	Amount                string
	PeriodLengthInSeconds int64
	Type                  domain.OrderType
	Status                domain.OrderStatus
}

// CreateSubscriptionResult is returned by CreateSubscriptionWithOrder.
type CreateSubscriptionResult struct {
	Created     bool
	OrderID     int64
	OrderNumber int32
}

// ActivationInput is the atomic input to ExecuteSubscriptionActivation.
type ActivationInput struct {
	SubscriptionID domain.SubscriptionID
	OrderID        int64
	TransactionHash string
	GasUsed        *int64
	Amount         string
	NextOrder      NewOrder
}

// RecordTransactionInput is the input to RecordTransaction.
type RecordTransactionInput struct {
	OrderID         int64
	SubscriptionID  domain.SubscriptionID
	TransactionHash string
	Amount          string
	Status          domain.TransactionStatus
	GasUsed         *int64
}

// UpdateOrderInput is the input to UpdateOrder.
type UpdateOrderInput struct {
	ID            int64
	Status        domain.OrderStatus
	FailureReason *domain.ErrorCode
	RawError      *string
}

// ScheduleRetryInput is the input to ScheduleRetry.
type ScheduleRetryInput struct {
	OrderID        int64
	SubscriptionID domain.SubscriptionID
	NextRetryAt    time.Time
	FailureReason  domain.ErrorCode
	RawError       string
}

// DueOrder is one row claimed by ClaimDueOrders: the order plus the
// subscription-level fields the processor needs without a second
// round trip.
type DueOrder struct {
	domain.Order
	SubscriptionStatus domain.SubscriptionStatus
	BeneficiaryAddress string
	Provider           string
	Testnet            bool
	AccountID          int64
}

// Store is the transactional persistence contract of spec §4.1.
type Store interface {
	// CreateSubscriptionWithOrder inserts the subscription (status
	// processing) and its first order atomically. If the subscription
	// already exists (unique conflict on id), returns
	// {Created: false} without side effects — never a StorageError.
	CreateSubscriptionWithOrder(ctx context.Context, id domain.SubscriptionID, accountID int64, beneficiary, provider string, testnet bool, order NewOrder) (*CreateSubscriptionResult, error)

	// ExecuteSubscriptionActivation atomically: records the confirmed
	// transaction, marks order paid, inserts the next pending order,
	// and flips the subscription to active. Returns the new order's id.
	ExecuteSubscriptionActivation(ctx context.Context, in ActivationInput) (nextOrderID int64, err error)

	// MarkSubscriptionIncomplete atomically sets subscription status
	// to incomplete and the given order to failed with reason.
	MarkSubscriptionIncomplete(ctx context.Context, subscriptionID domain.SubscriptionID, orderID int64, reason domain.ErrorCode) error

	// ClaimDueOrders atomically selects up to limit rows where
	// status=pending, dueAt<=now, and the parent subscription is
	// active or past_due, transitions them to processing, and returns them.
	// Linearizable: the same row is never returned to two callers.
	ClaimDueOrders(ctx context.Context, limit int32, now time.Time) ([]DueOrder, error)

	// CreateNextOrder inserts the following cycle's order for an
	// already-existing subscription (used by the "other_error" dunning
	// action, which advances the cycle without touching subscription
	// status). Returns the new order's id and orderNumber.
	CreateNextOrder(ctx context.Context, subscriptionID domain.SubscriptionID, order NewOrder) (orderID int64, orderNumber int32, err error)

	RecordTransaction(ctx context.Context, in RecordTransactionInput) error

	// UpdateOrder returns the order's orderNumber.
	UpdateOrder(ctx context.Context, in UpdateOrderInput) (orderNumber int32, err error)

	UpdateSubscriptionStatus(ctx context.Context, id domain.SubscriptionID, status domain.SubscriptionStatus) error

	// ScheduleRetry sets order status=pending_retry, bumps attempts,
	// sets nextRetryAt; the row stays in place.
	ScheduleRetry(ctx context.Context, in ScheduleRetryInput) error

	// ReactivateSubscription sets subscription status=active on
	// successful retry of a previously-failed order.
	ReactivateSubscription(ctx context.Context, orderID int64, subscriptionID domain.SubscriptionID) error

	// CancelPendingOrders marks all non-terminal orders failed with
	// reason "Subscription canceled" and returns their ids so the
	// caller can delete the corresponding timers.
	CancelPendingOrders(ctx context.Context, subscriptionID domain.SubscriptionID) ([]int64, error)

	CancelSubscription(ctx context.Context, id domain.SubscriptionID) error

	GetSubscription(ctx context.Context, id domain.SubscriptionID) (*domain.Subscription, error)
	GetSubscriptionOrders(ctx context.Context, id domain.SubscriptionID) ([]domain.Order, error)
	ListSubscriptions(ctx context.Context, accountID int64, testnet *bool) ([]domain.Subscription, error)

	GetOrderDetails(ctx context.Context, orderID int64) (*domain.Order, error)
	GetOrderByID(ctx context.Context, orderID int64) (*domain.Order, error)
	GetSuccessfulTransaction(ctx context.Context, subscriptionID domain.SubscriptionID, orderID int64) (*domain.Transaction, error)

	// Account, ApiKey, Webhook — minimal CRUD backing §6's RPC surface.
	GetAccountByID(ctx context.Context, id int64) (*domain.Account, error)
	GetAccountByWalletAddress(ctx context.Context, wallet string) (*domain.Account, error)

	// GetOrCreateAccount returns the account for a wallet address,
	// creating it on first authentication (spec §3 Account).
	GetOrCreateAccount(ctx context.Context, wallet string, externalAuthUserID *string) (*domain.Account, error)

	CreateApiKey(ctx context.Context, key domain.ApiKey) error
	GetApiKeyByHash(ctx context.Context, keyHash string) (*domain.ApiKey, error)
	ListApiKeys(ctx context.Context, accountID int64) ([]domain.ApiKey, error)
	UpdateApiKey(ctx context.Context, id string, name *string, enabled *bool) error
	DeleteApiKey(ctx context.Context, id string) error
	TouchApiKeyLastUsed(ctx context.Context, id string) error

	UpsertWebhook(ctx context.Context, w domain.Webhook) error
	GetWebhook(ctx context.Context, accountID int64) (*domain.Webhook, error)
	RotateWebhookSecret(ctx context.Context, accountID int64, newSecret string) error
	DeleteWebhook(ctx context.Context, accountID int64) error
	TouchWebhookLastUsed(ctx context.Context, accountID int64) error
}
