// Package processor implements the per-order charge pipeline (C5):
// fetch, pre-check, charge, persist, classify, act.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/dunning"
	"github.com/basesub/subscriptions/internal/logger"
	"github.com/basesub/subscriptions/internal/metrics"
	"github.com/basesub/subscriptions/internal/provider"
	"github.com/basesub/subscriptions/internal/scheduler"
	"github.com/basesub/subscriptions/internal/store"
)

// Emitter is the subset of the webhook outbox (C6) the processor
// drives. Defined here, not imported from the webhook package, so C6
// depends on C5's types rather than the other way around.
type Emitter interface {
	EmitSubscriptionActivated(ctx context.Context, sub *domain.Subscription, order *domain.Order, tx *domain.Transaction)
	EmitPaymentProcessed(ctx context.Context, sub *domain.Subscription, order *domain.Order, tx *domain.Transaction)
	EmitPaymentFailed(ctx context.Context, sub *domain.Subscription, order *domain.Order, failErr *domain.HTTPError, nextRetryAt *time.Time)
	EmitSubscriptionCanceled(ctx context.Context, sub *domain.Subscription)
}

// Result is the discriminated outcome of ProcessOrder (spec §4.5 step 7).
type Result struct {
	Success            bool
	TransactionHash    string
	OrderNumber        int32
	NextOrderCreated   bool
	SubscriptionStatus domain.SubscriptionStatus
	FailureReason      domain.ErrorCode
	IsUpstreamError    bool
}

// Processor wires C1 (Store), C2 (per-network Provider), C3
// (DunningPolicy, a pure function called directly), C4 (Scheduler),
// and C6 (Emitter) into the §4.5 pipeline.
type Processor struct {
	store     store.Store
	providers map[string]provider.SubscriptionProvider
	scheduler scheduler.Scheduler
	emitter   Emitter
	now       func() time.Time
}

// New builds a Processor. providers maps Subscription.Provider tags
// to the concrete SubscriptionProvider for that network.
func New(st store.Store, providers map[string]provider.SubscriptionProvider, sched scheduler.Scheduler, emitter Emitter) *Processor {
	return &Processor{store: st, providers: providers, scheduler: sched, emitter: emitter, now: time.Now}
}

// ProcessOrder is the pipeline's single entry point, triggered by a
// scheduler firing or a queue message.
func (p *Processor) ProcessOrder(ctx context.Context, orderID int64) (*Result, error) {
	order, err := p.store.GetOrderByID(ctx, orderID)
	if err != nil {
		logger.Error("processor: order not found, treating as permanent fail", zap.Int64("order_id", orderID), zap.Error(err))
		_ = p.scheduler.Delete(ctx, orderID)
		return nil, fmt.Errorf("load order %d: %w", orderID, err)
	}

	sub, err := p.store.GetSubscription(ctx, order.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("load subscription %s: %w", order.SubscriptionID, err)
	}

	if !sub.Status.Chargeable() {
		reason := domain.ErrSubscriptionNotActive
		if _, err := p.store.UpdateOrder(ctx, store.UpdateOrderInput{ID: order.ID, Status: domain.OrderFailed, FailureReason: &reason}); err != nil {
			return nil, fmt.Errorf("mark order not-active: %w", err)
		}
		_ = p.scheduler.Delete(ctx, order.ID)
		metrics.OrdersProcessed.WithLabelValues("not_active").Inc()
		return &Result{Success: false, FailureReason: reason, SubscriptionStatus: sub.Status}, nil
	}

	prov, ok := p.providers[sub.Provider]
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q", sub.Provider)
	}

	txHash, gasUsed, err := p.chargeOrReuse(ctx, prov, sub, order)
	if err != nil {
		return p.handleFailure(ctx, prov, sub, order, err)
	}

	return p.handleSuccess(ctx, prov, sub, order, txHash, gasUsed)
}

// chargeOrReuse implements step 3: an order with an already-confirmed
// transaction (from a crashed-and-retried run) skips the provider call.
func (p *Processor) chargeOrReuse(ctx context.Context, prov provider.SubscriptionProvider, sub *domain.Subscription, order *domain.Order) (string, *int64, error) {
	if existing, err := p.store.GetSuccessfulTransaction(ctx, sub.ID, order.ID); err == nil && existing != nil {
		return existing.TransactionHash, existing.GasUsed, nil
	}

	start := p.now()
	result, err := prov.Charge(ctx, provider.ChargeInput{
		SubscriptionID: sub.ID,
		Amount:         order.Amount,
		Recipient:      sub.BeneficiaryAddress,
		Testnet:        sub.Testnet,
	})
	metrics.OrderChargeDuration.Observe(p.now().Sub(start).Seconds())
	if err != nil {
		return "", nil, err
	}
	return result.TransactionHash, result.GasUsed, nil
}

func (p *Processor) handleSuccess(ctx context.Context, prov provider.SubscriptionProvider, sub *domain.Subscription, order *domain.Order, txHash string, gasUsed *int64) (*Result, error) {
	wasRetry := order.Status == domain.OrderPendingRetry

	status, err := prov.GetStatus(ctx, sub.ID, sub.Testnet)
	if err != nil {
		logger.Warn("processor: post-charge getStatus failed, skipping next-cycle scheduling",
			zap.String("subscription_id", sub.ID.String()), zap.Error(err))
	}

	nextOrderCreated := status != nil && status.IsSubscribed && status.NextPeriodStart != nil

	var orderNumber int32
	var nextOrderID int64

	if nextOrderCreated {
		nextOrder := store.NewOrder{
			DueAt:                 time.Unix(*status.NextPeriodStart, 0),
			Amount:                status.RecurringCharge,
			PeriodLengthInSeconds: status.PeriodInSeconds(),
			Type:                  domain.OrderRecurring,
			Status:                domain.OrderPending,
		}
		nextID, err := p.store.ExecuteSubscriptionActivation(ctx, store.ActivationInput{
			SubscriptionID:  sub.ID,
			OrderID:         order.ID,
			TransactionHash: txHash,
			GasUsed:         gasUsed,
			Amount:          order.Amount,
			NextOrder:       nextOrder,
		})
		if err != nil {
			return nil, fmt.Errorf("execute activation: %w", err)
		}
		nextOrderID = nextID
		orderNumber = order.OrderNumber

		if err := p.scheduler.Set(ctx, nextOrderID, nextOrder.DueAt, sub.Provider); err != nil {
			logger.Error("processor: failed to arm next order timer", zap.Int64("order_id", nextOrderID), zap.Error(err))
		}
	} else {
		if err := p.store.RecordTransaction(ctx, store.RecordTransactionInput{
			OrderID: order.ID, SubscriptionID: sub.ID, TransactionHash: txHash, Amount: order.Amount,
			Status: domain.TransactionConfirmed, GasUsed: gasUsed,
		}); err != nil {
			return nil, fmt.Errorf("record transaction: %w", err)
		}
		num, err := p.store.UpdateOrder(ctx, store.UpdateOrderInput{ID: order.ID, Status: domain.OrderPaid})
		if err != nil {
			return nil, fmt.Errorf("mark order paid: %w", err)
		}
		orderNumber = num
		if wasRetry {
			if err := p.store.ReactivateSubscription(ctx, order.ID, sub.ID); err != nil {
				return nil, fmt.Errorf("reactivate subscription: %w", err)
			}
		}
	}

	_ = p.scheduler.Delete(ctx, order.ID)

	finalStatus := domain.SubscriptionActive
	tx := &domain.Transaction{OrderID: order.ID, TransactionHash: txHash, SubscriptionID: sub.ID, Amount: order.Amount, Status: domain.TransactionConfirmed, GasUsed: gasUsed}
	updatedOrder := *order
	updatedOrder.Status = domain.OrderPaid
	updatedSub := *sub
	updatedSub.Status = finalStatus

	if order.OrderNumber == 1 {
		p.emitter.EmitSubscriptionActivated(ctx, &updatedSub, &updatedOrder, tx)
	} else {
		p.emitter.EmitPaymentProcessed(ctx, &updatedSub, &updatedOrder, tx)
	}

	metrics.OrdersProcessed.WithLabelValues("paid").Inc()
	return &Result{
		Success: true, TransactionHash: txHash, OrderNumber: orderNumber,
		NextOrderCreated: nextOrderCreated, SubscriptionStatus: finalStatus,
	}, nil
}

func (p *Processor) handleFailure(ctx context.Context, prov provider.SubscriptionProvider, sub *domain.Subscription, order *domain.Order, chargeErr error) (*Result, error) {
	var httpErr *domain.HTTPError
	if !errors.As(chargeErr, &httpErr) {
		httpErr = domain.NewHTTPError(500, domain.ErrPaymentFailed, chargeErr.Error())
	}
	rawError := chargeErr.Error()

	if _, err := p.store.UpdateOrder(ctx, store.UpdateOrderInput{
		ID: order.ID, Status: domain.OrderFailed, FailureReason: &httpErr.Code, RawError: &rawError,
	}); err != nil {
		return nil, fmt.Errorf("mark order failed: %w", err)
	}

	action := dunning.Decide(dunning.Input{Error: httpErr, CurrentAttempts: order.Attempts, FailureDate: p.now()})
	metrics.DunningActionsTaken.WithLabelValues(string(action.Type)).Inc()

	var nextOrderCreated bool
	switch action.Type {
	case dunning.ActionTerminal:
		if err := p.store.UpdateSubscriptionStatus(ctx, sub.ID, domain.SubscriptionCanceled); err != nil {
			return nil, err
		}
		_ = p.scheduler.Delete(ctx, order.ID)

	case dunning.ActionRetry:
		if err := p.store.ScheduleRetry(ctx, store.ScheduleRetryInput{
			OrderID: order.ID, SubscriptionID: sub.ID, NextRetryAt: action.NextRetryAt,
			FailureReason: httpErr.Code, RawError: rawError,
		}); err != nil {
			return nil, err
		}
		if err := p.store.UpdateSubscriptionStatus(ctx, sub.ID, domain.SubscriptionPastDue); err != nil {
			return nil, err
		}
		if err := p.scheduler.Update(ctx, order.ID, action.NextRetryAt, sub.Provider); err != nil {
			logger.Error("processor: failed to re-arm retry timer", zap.Int64("order_id", order.ID), zap.Error(err))
		}

	case dunning.ActionMaxRetriesExhausted:
		if err := p.store.UpdateSubscriptionStatus(ctx, sub.ID, domain.SubscriptionUnpaid); err != nil {
			return nil, err
		}
		_ = p.scheduler.Delete(ctx, order.ID)

	case dunning.ActionUpstreamError:
		// Leave the scheduler untouched; Result.IsUpstreamError makes
		// the queue consumer (cmd/processor) return an error so the
		// whole message is redelivered.

	case dunning.ActionUserOperationFailed:
		_ = p.scheduler.Delete(ctx, order.ID)

	case dunning.ActionOther:
		_ = p.scheduler.Delete(ctx, order.ID)
		if status, statusErr := prov.GetStatus(ctx, sub.ID, sub.Testnet); statusErr == nil && status.IsSubscribed && status.NextPeriodStart != nil {
			nextOrder := store.NewOrder{
				DueAt: time.Unix(*status.NextPeriodStart, 0), Amount: status.RecurringCharge,
				PeriodLengthInSeconds: status.PeriodInSeconds(), Type: domain.OrderRecurring, Status: domain.OrderPending,
			}
			if nextID, _, err := p.store.CreateNextOrder(ctx, sub.ID, nextOrder); err == nil {
				nextOrderCreated = true
				if err := p.scheduler.Set(ctx, nextID, nextOrder.DueAt, sub.Provider); err != nil {
					logger.Error("processor: failed to arm next-cycle timer", zap.Int64("order_id", nextID), zap.Error(err))
				}
			}
		}
	}

	updatedSub := *sub
	updatedSub.Status = action.Status
	var nextRetryAtPtr *time.Time
	if action.Type == dunning.ActionRetry {
		nextRetryAtPtr = &action.NextRetryAt
	}
	p.emitter.EmitPaymentFailed(ctx, &updatedSub, order, httpErr, nextRetryAtPtr)
	if action.Type == dunning.ActionTerminal {
		p.emitter.EmitSubscriptionCanceled(ctx, &updatedSub)
	}

	outcome := "failed"
	if action.IsUpstreamError {
		outcome = "upstream_error"
	}
	metrics.OrdersProcessed.WithLabelValues(outcome).Inc()

	return &Result{
		Success: false, FailureReason: httpErr.Code, SubscriptionStatus: action.Status,
		IsUpstreamError: action.IsUpstreamError, NextOrderCreated: nextOrderCreated,
	}, nil
}
