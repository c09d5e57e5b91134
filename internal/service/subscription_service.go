// Package service implements SubscriptionService (C7), the
// orchestration layer of spec §4.7: createSubscription and
// revokeSubscription wire C1 (Store), C2 (Provider), C4 (Scheduler),
// and C6 (Emitter) into the two merchant-facing flows.
//
// Grounded on the teacher's SubscriptionService.CreateSubscriptionWithDelegation:
// validate first (no DB writes), perform the chain-affecting call,
// only then persist, and on any post-chain-call failure log with full
// context rather than letting the error vanish — background
// activation here mirrors exactly that "blockchain op succeeded, DB
// step failed" recovery path via MarkSubscriptionIncomplete.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/provider"
	"github.com/basesub/subscriptions/internal/scheduler"
	"github.com/basesub/subscriptions/internal/store"
)

// Emitter is the subset of the webhook outbox (C6) this service
// drives directly; EmitSubscriptionActivated/EmitSubscriptionCanceled
// are shared with processor.Emitter, so webhook.Outbox satisfies both
// without extra glue.
type Emitter interface {
	EmitSubscriptionCreated(ctx context.Context, sub *domain.Subscription, order *domain.Order)
	EmitSubscriptionActivated(ctx context.Context, sub *domain.Subscription, order *domain.Order, tx *domain.Transaction)
	EmitActivationFailed(ctx context.Context, sub *domain.Subscription, order *domain.Order, failErr *domain.HTTPError)
	EmitSubscriptionCanceled(ctx context.Context, sub *domain.Subscription)
}

// Service orchestrates the subscription lifecycle RPCs of spec §6.
type Service struct {
	store     store.Store
	providers map[string]provider.SubscriptionProvider
	scheduler scheduler.Scheduler
	emitter   Emitter
	logger    *zap.Logger
	now       func() time.Time
}

// New builds a Service. providers maps Subscription.Provider tags to
// the concrete SubscriptionProvider for that network.
func New(st store.Store, providers map[string]provider.SubscriptionProvider, sched scheduler.Scheduler, emitter Emitter, logger *zap.Logger) *Service {
	return &Service{store: st, providers: providers, scheduler: sched, emitter: emitter, logger: logger, now: time.Now}
}

// CreateSubscriptionInput is the argument to CreateSubscription.
type CreateSubscriptionInput struct {
	AccountID      int64
	SubscriptionID domain.SubscriptionID
	Provider       string
	Testnet        bool
}

// CreateSubscriptionResult is CreateSubscription's synchronous return
// value (spec §4.7 step 5); the caller sees {status: "processing"}.
type CreateSubscriptionResult struct {
	OrderID            int64
	OrderNumber        int32
	SubscriptionStatus domain.SubscriptionStatus
}

func (s *Service) resolveProvider(name string) (provider.SubscriptionProvider, error) {
	prov, ok := s.providers[name]
	if !ok {
		return nil, domain.NewHTTPError(400, domain.ErrInvalidRequest, fmt.Sprintf("unknown provider %q", name))
	}
	return prov, nil
}

// CreateSubscription implements spec §4.7 steps 1-5, then launches the
// background activation flow detached from ctx (fire-and-forget,
// errors logged only — the caller already has its synchronous result).
func (s *Service) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*CreateSubscriptionResult, error) {
	prov, err := s.resolveProvider(in.Provider)
	if err != nil {
		return nil, err
	}

	if !prov.ValidateID(in.SubscriptionID.String()) {
		return nil, domain.NewHTTPError(400, domain.ErrInvalidFormat, "invalid subscription id")
	}

	if _, err := s.store.GetSubscription(ctx, in.SubscriptionID); err == nil {
		return nil, domain.NewHTTPError(409, domain.ErrSubscriptionExists, "subscription already exists")
	} else if se, ok := err.(*store.StorageError); !ok || se.Kind != store.NotFound {
		return nil, fmt.Errorf("check existing subscription: %w", err)
	}

	status, err := prov.GetStatus(ctx, in.SubscriptionID, in.Testnet)
	if err != nil {
		return nil, err
	}
	if !status.PermissionExists {
		return nil, domain.NewHTTPError(404, domain.ErrPermissionNotFound, "permission not found")
	}
	if !status.IsSubscribed {
		return nil, domain.NewHTTPError(403, domain.ErrForbidden, "permission is not subscribed")
	}

	account, err := s.store.GetAccountByID(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}

	now := s.now()
	initialOrder := store.NewOrder{
		DueAt:                 now,
		Amount:                status.RemainingChargeInPeriod,
		PeriodLengthInSeconds: status.PeriodInSeconds(),
		Type:                  domain.OrderInitial,
		Status:                domain.OrderProcessing,
	}

	result, err := s.store.CreateSubscriptionWithOrder(ctx, in.SubscriptionID, in.AccountID, account.WalletAddress, in.Provider, in.Testnet, initialOrder)
	if err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	if !result.Created {
		return nil, domain.NewHTTPError(409, domain.ErrSubscriptionExists, "subscription already exists")
	}

	go s.activateInBackground(in.SubscriptionID, result.OrderID, in.Testnet)

	return &CreateSubscriptionResult{
		OrderID:            result.OrderID,
		OrderNumber:        result.OrderNumber,
		SubscriptionStatus: domain.SubscriptionProcessing,
	}, nil
}

// activateInBackground implements spec §4.7's background activation
// flow. It runs detached from the originating request context, using
// its own bounded timeout, and never returns an error — every failure
// path logs and, where it reflects a charge-succeeded/DB-failed
// split, marks the subscription incomplete instead of leaving it
// stuck in "processing".
func (s *Service) activateInBackground(subscriptionID domain.SubscriptionID, orderID int64, testnet bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		s.logger.Error("activation: failed to reload subscription", zap.String("subscription_id", subscriptionID.String()), zap.Error(err))
		return
	}
	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		s.logger.Error("activation: failed to reload order", zap.Int64("order_id", orderID), zap.Error(err))
		return
	}

	s.emitter.EmitSubscriptionCreated(ctx, sub, order)

	prov, err := s.resolveProvider(sub.Provider)
	if err != nil {
		s.failActivation(ctx, sub, order, domain.NewHTTPError(500, domain.ErrInternal, "provider not configured"))
		return
	}

	txHash, gasUsed, chargeErr := s.processActivationCharge(ctx, prov, sub, order)
	if chargeErr != nil {
		var httpErr *domain.HTTPError
		if he, ok := chargeErr.(*domain.HTTPError); ok {
			httpErr = he
		} else {
			httpErr = domain.NewHTTPError(500, domain.ErrInternal, chargeErr.Error())
		}
		s.failActivation(ctx, sub, order, httpErr)
		return
	}

	status, err := prov.GetStatus(ctx, sub.ID, testnet)
	if err != nil {
		s.failActivation(ctx, sub, order, domain.NewHTTPError(500, domain.ErrInternal, err.Error()))
		return
	}

	nextOrder := store.NewOrder{
		DueAt:                 time.Unix(currentPeriodStart(status), 0),
		Amount:                status.RecurringCharge,
		PeriodLengthInSeconds: status.PeriodInSeconds(),
		Type:                  domain.OrderRecurring,
		Status:                domain.OrderPending,
	}
	if status.NextPeriodStart != nil {
		nextOrder.DueAt = time.Unix(*status.NextPeriodStart, 0)
	}

	nextOrderID, err := s.store.ExecuteSubscriptionActivation(ctx, store.ActivationInput{
		SubscriptionID:  sub.ID,
		OrderID:         order.ID,
		TransactionHash: txHash,
		GasUsed:         gasUsed,
		Amount:          order.Amount,
		NextOrder:       nextOrder,
	})
	if err != nil {
		s.failActivation(ctx, sub, order, domain.NewHTTPError(500, domain.ErrInternal, err.Error()))
		return
	}

	if err := s.scheduler.Set(ctx, nextOrderID, nextOrder.DueAt, sub.Provider); err != nil {
		s.logger.Error("activation: failed to arm scheduler for next order",
			zap.Int64("order_id", nextOrderID), zap.Error(err))
	}

	activatedSub, err := s.store.GetSubscription(ctx, sub.ID)
	if err != nil {
		activatedSub = sub
		activatedSub.Status = domain.SubscriptionActive
	}
	activatedOrder, err := s.store.GetOrderByID(ctx, order.ID)
	if err != nil {
		activatedOrder = order
		activatedOrder.Status = domain.OrderPaid
	}
	s.emitter.EmitSubscriptionActivated(ctx, activatedSub, activatedOrder, &domain.Transaction{
		OrderID: order.ID, TransactionHash: txHash, SubscriptionID: sub.ID,
		Amount: order.Amount, Status: domain.TransactionConfirmed, GasUsed: gasUsed,
	})
}

// processActivationCharge re-queries the idempotency guard (spec
// §4.7 step 2): if a confirmed transaction already exists for this
// order, reuse it rather than charging twice.
func (s *Service) processActivationCharge(ctx context.Context, prov provider.SubscriptionProvider, sub *domain.Subscription, order *domain.Order) (txHash string, gasUsed *int64, err error) {
	if existing, err := s.store.GetSuccessfulTransaction(ctx, sub.ID, order.ID); err == nil {
		return existing.TransactionHash, existing.GasUsed, nil
	}

	result, err := prov.Charge(ctx, provider.ChargeInput{
		SubscriptionID: sub.ID,
		Amount:         order.Amount,
		Recipient:      sub.BeneficiaryAddress,
		Testnet:        sub.Testnet,
	})
	if err != nil {
		return "", nil, err
	}
	return result.TransactionHash, result.GasUsed, nil
}

// failActivation implements spec §4.7 step 6.
func (s *Service) failActivation(ctx context.Context, sub *domain.Subscription, order *domain.Order, failErr *domain.HTTPError) {
	if err := s.store.MarkSubscriptionIncomplete(ctx, sub.ID, order.ID, failErr.Code); err != nil {
		s.logger.Error("activation: failed to mark subscription incomplete",
			zap.String("subscription_id", sub.ID.String()), zap.Error(err))
	}
	s.emitter.EmitActivationFailed(ctx, sub, order, failErr)
}

func currentPeriodStart(status *provider.Status) int64 {
	if status.CurrentPeriodStart != 0 {
		return status.CurrentPeriodStart
	}
	return time.Now().Unix()
}

// RevokeSubscriptionInput is the argument to RevokeSubscription.
type RevokeSubscriptionInput struct {
	AccountID      int64
	SubscriptionID domain.SubscriptionID
}

// RevokeSubscription implements spec §4.7's revocation flow.
func (s *Service) RevokeSubscription(ctx context.Context, in RevokeSubscriptionInput) error {
	sub, err := s.store.GetSubscription(ctx, in.SubscriptionID)
	if err != nil {
		if se, ok := err.(*store.StorageError); ok && se.Kind == store.NotFound {
			return domain.NewHTTPError(404, domain.ErrNotFound, "subscription not found")
		}
		return fmt.Errorf("load subscription: %w", err)
	}
	if sub.AccountID != in.AccountID {
		return domain.NewHTTPError(403, domain.ErrForbidden, "subscription belongs to another account")
	}
	if sub.Status == domain.SubscriptionCanceled {
		return nil // idempotent 200
	}
	if !sub.Status.Revocable() {
		return domain.NewHTTPError(400, domain.ErrInvalidRequest, fmt.Sprintf("subscription in status %q cannot be revoked", sub.Status))
	}

	prov, err := s.resolveProvider(sub.Provider)
	if err != nil {
		return err
	}

	status, err := prov.GetStatus(ctx, sub.ID, sub.Testnet)
	if err != nil {
		return err
	}
	if !status.PermissionExists {
		return domain.NewHTTPError(404, domain.ErrPermissionNotFound, "permission not found")
	}
	if status.IsSubscribed {
		if _, err := prov.Revoke(ctx, sub.ID, sub.Testnet); err != nil {
			return err
		}
	}

	orderIDs, err := s.store.CancelPendingOrders(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("cancel pending orders: %w", err)
	}
	for _, id := range orderIDs {
		if err := s.scheduler.Delete(ctx, id); err != nil {
			s.logger.Warn("revoke: failed to delete scheduler timer", zap.Int64("order_id", id), zap.Error(err))
		}
	}

	if err := s.store.CancelSubscription(ctx, sub.ID); err != nil {
		return fmt.Errorf("cancel subscription: %w", err)
	}

	sub.Status = domain.SubscriptionCanceled
	s.emitter.EmitSubscriptionCanceled(ctx, sub)
	return nil
}
