package webhook

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/processor"
	"github.com/basesub/subscriptions/internal/store"
	"github.com/basesub/subscriptions/internal/webhook/queue"
)

// Outbox is the C6 emitter: it fetches the account's webhook, builds
// and signs the payload, and enqueues delivery. It never returns an
// error to its callers — delivery failures are logged and swallowed
// per spec §4.6 step 5.
type Outbox struct {
	store  store.Store
	queue  queue.Queue
	logger *zap.Logger
	now    func() time.Time
}

// New builds an Outbox backed by st for webhook lookup and q for
// delivery enqueueing.
func New(st store.Store, q queue.Queue, logger *zap.Logger) *Outbox {
	return &Outbox{store: st, queue: q, logger: logger, now: time.Now}
}

// emit implements spec §4.6 steps 1-4 for any event/data pair.
func (o *Outbox) emit(ctx context.Context, accountID int64, subscriptionID string, event EventType, data Data) {
	wh, err := o.store.GetWebhook(ctx, accountID)
	if err != nil {
		if se, ok := err.(*store.StorageError); ok && se.Kind == store.NotFound {
			return // no webhook configured: no-op success
		}
		o.logger.Error("webhook: lookup failed", zap.Int64("account_id", accountID), zap.Error(err))
		return
	}
	if !wh.Enabled || wh.Deleted() {
		return
	}

	evt := newEvent(o.now(), data)
	payload, err := evt.Marshal()
	if err != nil {
		o.logger.Error("webhook: marshal failed", zap.String("event", string(event)), zap.Error(err))
		return
	}

	signature := Sign([]byte(wh.Secret), payload)

	d := queue.Delivery{
		SubscriptionID: subscriptionID,
		URL:            wh.URL,
		Payload:        payload,
		Signature:      signature,
		Timestamp:      o.now().Unix(),
	}
	if err := o.queue.Enqueue(ctx, d); err != nil {
		o.logger.Error("webhook: enqueue failed",
			zap.String("event", string(event)),
			zap.String("url", wh.URL),
			zap.Error(err))
		return
	}

	if err := o.store.TouchWebhookLastUsed(ctx, accountID); err != nil {
		o.logger.Warn("webhook: touch last_used failed", zap.Int64("account_id", accountID), zap.Error(err))
	}
}

// EmitSubscriptionCreated fires when the initial processing-status
// subscription row is inserted (spec §4.7 background activation step 1).
func (o *Outbox) EmitSubscriptionCreated(ctx context.Context, sub *domain.Subscription, order *domain.Order) {
	o.emit(ctx, sub.AccountID, sub.ID.String(), EventSubscriptionCreated, Data{
		Subscription: subscriptionPayload(sub, order.Amount, order.PeriodLengthInSeconds),
		Order:        orderPayload(order),
	})
}

// EmitSubscriptionActivated fires once the activation charge settles
// and the subscription flips to active.
func (o *Outbox) EmitSubscriptionActivated(ctx context.Context, sub *domain.Subscription, order *domain.Order, tx *domain.Transaction) {
	o.emit(ctx, sub.AccountID, sub.ID.String(), EventSubscriptionActivated, Data{
		Subscription: subscriptionPayload(sub, order.Amount, order.PeriodLengthInSeconds),
		Order:        orderPayload(order),
		Transaction:  &TransactionPayload{Hash: tx.TransactionHash, Amount: tx.Amount},
	})
}

// EmitPaymentProcessed fires on every subsequent successful cycle charge.
func (o *Outbox) EmitPaymentProcessed(ctx context.Context, sub *domain.Subscription, order *domain.Order, tx *domain.Transaction) {
	o.emit(ctx, sub.AccountID, sub.ID.String(), EventPaymentProcessed, Data{
		Subscription: subscriptionPayload(sub, order.Amount, order.PeriodLengthInSeconds),
		Order:        orderPayload(order),
		Transaction:  &TransactionPayload{Hash: tx.TransactionHash, Amount: tx.Amount},
	})
}

// EmitPaymentFailed fires on any charge failure, retryable or not.
func (o *Outbox) EmitPaymentFailed(ctx context.Context, sub *domain.Subscription, order *domain.Order, failErr *domain.HTTPError, nextRetryAt *time.Time) {
	data := Data{
		Subscription: subscriptionPayload(sub, order.Amount, order.PeriodLengthInSeconds),
		Order:        orderPayload(order),
		Error:        errorPayload(failErr),
	}
	if nextRetryAt != nil {
		epoch := nextRetryAt.Unix()
		data.NextRetryAt = &epoch
	}
	o.emit(ctx, sub.AccountID, sub.ID.String(), EventPaymentFailed, data)
}

// EmitActivationFailed fires when the background activation flow
// (spec §4.7 step 6) cannot complete and the subscription is marked
// incomplete.
func (o *Outbox) EmitActivationFailed(ctx context.Context, sub *domain.Subscription, order *domain.Order, failErr *domain.HTTPError) {
	o.emit(ctx, sub.AccountID, sub.ID.String(), EventActivationFailed, Data{
		Subscription: subscriptionPayload(sub, order.Amount, order.PeriodLengthInSeconds),
		Order:        orderPayload(order),
		Error:        errorPayload(failErr),
	})
}

// EmitSubscriptionCanceled fires once revocation completes. Amount
// and period_in_seconds are left zero-valued: revocation (spec §4.7)
// has no order in scope at the point of emission, only the
// subscription's id/status.
func (o *Outbox) EmitSubscriptionCanceled(ctx context.Context, sub *domain.Subscription) {
	o.emit(ctx, sub.AccountID, sub.ID.String(), EventSubscriptionCanceled, Data{
		Subscription: SubscriptionPayload{
			ID:     sub.ID.String(),
			Status: string(sub.Status),
		},
	})
}

var _ processor.Emitter = (*Outbox)(nil)
