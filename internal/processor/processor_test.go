package processor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/provider"
	"github.com/basesub/subscriptions/internal/store"
	"github.com/basesub/subscriptions/internal/store/storetest"
)

type fakeProvider struct {
	name         string
	status       *provider.Status
	statusErr    error
	chargeResult *provider.ChargeResult
	chargeErr    error
	chargeCalls  int
}

func (f *fakeProvider) Name() string              { return f.name }
func (f *fakeProvider) ValidateID(id string) bool { return true }
func (f *fakeProvider) GetStatus(ctx context.Context, id domain.SubscriptionID, testnet bool) (*provider.Status, error) {
	return f.status, f.statusErr
}
func (f *fakeProvider) Charge(ctx context.Context, in provider.ChargeInput) (*provider.ChargeResult, error) {
	f.chargeCalls++
	return f.chargeResult, f.chargeErr
}
func (f *fakeProvider) Revoke(ctx context.Context, id domain.SubscriptionID, testnet bool) (*provider.RevokeResult, error) {
	return nil, nil
}

type fakeScheduler struct {
	mu     sync.Mutex
	set    []int64
	update []int64
	del    []int64
}

func (f *fakeScheduler) Set(ctx context.Context, orderID int64, dueAt time.Time, providerName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set = append(f.set, orderID)
	return nil
}
func (f *fakeScheduler) Update(ctx context.Context, orderID int64, dueAt time.Time, providerName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.update = append(f.update, orderID)
	return nil
}
func (f *fakeScheduler) Delete(ctx context.Context, orderID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.del = append(f.del, orderID)
	return nil
}

type fakeEmitter struct {
	mu               sync.Mutex
	activated        int
	paymentProcessed int
	paymentFailed    int
	canceled         int
	lastFailErr      *domain.HTTPError
	lastNextRetryAt  *time.Time
}

func (f *fakeEmitter) EmitSubscriptionActivated(ctx context.Context, sub *domain.Subscription, order *domain.Order, tx *domain.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activated++
}
func (f *fakeEmitter) EmitPaymentProcessed(ctx context.Context, sub *domain.Subscription, order *domain.Order, tx *domain.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentProcessed++
}
func (f *fakeEmitter) EmitPaymentFailed(ctx context.Context, sub *domain.Subscription, order *domain.Order, failErr *domain.HTTPError, nextRetryAt *time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paymentFailed++
	f.lastFailErr = failErr
	f.lastNextRetryAt = nextRetryAt
}
func (f *fakeEmitter) EmitSubscriptionCanceled(ctx context.Context, sub *domain.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.canceled++
}

func testSubID(t *testing.T) domain.SubscriptionID {
	t.Helper()
	id, ok := domain.ParseSubscriptionID("0x" + "1234567890123456789012345678901234567890123456789012345678901234")
	if !ok {
		t.Fatal("failed to construct test subscription id")
	}
	return id
}

// seedActiveSubscription creates a subscription already active with one
// pending order due now, mirroring a scheduler firing on a recurring cycle.
func seedActiveSubscription(t *testing.T, st *storetest.MemStore, status domain.SubscriptionStatus, attempts int32) (domain.SubscriptionID, int64) {
	t.Helper()
	ctx := context.Background()
	account, err := st.GetOrCreateAccount(ctx, "0xmerchant", nil)
	if err != nil {
		t.Fatal(err)
	}
	subID := testSubID(t)
	res, err := st.CreateSubscriptionWithOrder(ctx, subID, account.ID, "0xmerchant", "base", false, store.NewOrder{
		DueAt: time.Now(), Amount: "1000000", PeriodLengthInSeconds: 2592000, Type: domain.OrderInitial, Status: domain.OrderProcessing,
	})
	if err != nil || !res.Created {
		t.Fatalf("seed create: created=%v err=%v", res, err)
	}
	if err := st.UpdateSubscriptionStatus(ctx, subID, status); err != nil {
		t.Fatal(err)
	}
	if attempts > 0 {
		for i := int32(0); i < attempts; i++ {
			if err := st.ScheduleRetry(ctx, store.ScheduleRetryInput{
				OrderID: res.OrderID, SubscriptionID: subID, NextRetryAt: time.Now(), FailureReason: domain.ErrInsufficientBalance, RawError: "seed",
			}); err != nil {
				t.Fatal(err)
			}
		}
	}
	return subID, res.OrderID
}

func TestProcessOrder_HappyPathActivation(t *testing.T) {
	st := storetest.New()
	subID, orderID := seedActiveSubscription(t, st, domain.SubscriptionActive, 0)

	nextStart := int64(1738368000)
	prov := &fakeProvider{
		name:         "base",
		status:       &provider.Status{IsSubscribed: true, NextPeriodStart: &nextStart, RecurringCharge: "1000000", PeriodInDays: 30},
		chargeResult: &provider.ChargeResult{TransactionHash: "0xabc"},
	}
	sched := &fakeScheduler{}
	emitter := &fakeEmitter{}
	p := New(st, map[string]provider.SubscriptionProvider{"base": prov}, sched, emitter)

	result, err := p.ProcessOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.TransactionHash != "0xabc" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.NextOrderCreated {
		t.Fatal("expected next order created")
	}
	if emitter.activated != 1 {
		t.Fatalf("expected 1 activated emission, got %d", emitter.activated)
	}

	sub, err := st.GetSubscription(context.Background(), subID)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Status != domain.SubscriptionActive {
		t.Fatalf("expected active, got %s", sub.Status)
	}

	orders, err := st.GetSubscriptionOrders(context.Background(), subID)
	if err != nil {
		t.Fatal(err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}

	tx, err := st.GetSuccessfulTransaction(context.Background(), subID, orderID)
	if err != nil || tx.TransactionHash != "0xabc" {
		t.Fatalf("expected confirmed transaction, got %v err=%v", tx, err)
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	if len(sched.set) != 1 {
		t.Fatalf("expected scheduler.Set for next order, got %d", len(sched.set))
	}
}

func TestProcessOrder_IdempotentReplaySkipsCharge(t *testing.T) {
	st := storetest.New()
	_, orderID := seedActiveSubscription(t, st, domain.SubscriptionActive, 0)

	if err := st.RecordTransaction(context.Background(), store.RecordTransactionInput{
		OrderID: orderID, SubscriptionID: testSubID(t), TransactionHash: "0xexisting", Amount: "1000000", Status: domain.TransactionConfirmed,
	}); err != nil {
		t.Fatal(err)
	}

	prov := &fakeProvider{
		name:   "base",
		status: &provider.Status{IsSubscribed: true},
	}
	p := New(st, map[string]provider.SubscriptionProvider{"base": prov}, &fakeScheduler{}, &fakeEmitter{})

	result, err := p.ProcessOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || result.TransactionHash != "0xexisting" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if prov.chargeCalls != 0 {
		t.Fatalf("expected no provider charge call on idempotent replay, got %d", prov.chargeCalls)
	}
}

func TestProcessOrder_DunningRetrySchedule(t *testing.T) {
	st := storetest.New()
	subID, orderID := seedActiveSubscription(t, st, domain.SubscriptionActive, 2)

	prov := &fakeProvider{
		name:      "base",
		chargeErr: domain.NewHTTPError(402, domain.ErrInsufficientBalance, "insufficient balance"),
	}
	sched := &fakeScheduler{}
	emitter := &fakeEmitter{}
	p := New(st, map[string]provider.SubscriptionProvider{"base": prov}, sched, emitter)
	p.now = func() time.Time { return time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC) }

	result, err := p.ProcessOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.SubscriptionStatus != domain.SubscriptionPastDue {
		t.Fatalf("expected past_due, got %s", result.SubscriptionStatus)
	}

	order, err := st.GetOrderByID(context.Background(), orderID)
	if err != nil {
		t.Fatal(err)
	}
	if order.Attempts != 3 {
		t.Fatalf("expected attempts=3, got %d", order.Attempts)
	}
	want := time.Date(2025, 1, 29, 0, 0, 0, 0, time.UTC)
	if order.NextRetryAt == nil || !order.NextRetryAt.Equal(want) {
		t.Fatalf("expected nextRetryAt=%s, got %v", want, order.NextRetryAt)
	}

	sub, err := st.GetSubscription(context.Background(), subID)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Status != domain.SubscriptionPastDue {
		t.Fatalf("expected subscription past_due, got %s", sub.Status)
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	if len(sched.update) != 1 {
		t.Fatalf("expected scheduler.Update called once, got %d", len(sched.update))
	}
}

func TestProcessOrder_MaxRetriesExhausted(t *testing.T) {
	st := storetest.New()
	subID, orderID := seedActiveSubscription(t, st, domain.SubscriptionPastDue, 4)

	prov := &fakeProvider{
		name:      "base",
		chargeErr: domain.NewHTTPError(402, domain.ErrInsufficientBalance, "insufficient balance"),
	}
	sched := &fakeScheduler{}
	p := New(st, map[string]provider.SubscriptionProvider{"base": prov}, sched, &fakeEmitter{})

	result, err := p.ProcessOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SubscriptionStatus != domain.SubscriptionUnpaid {
		t.Fatalf("expected unpaid, got %s", result.SubscriptionStatus)
	}

	sub, err := st.GetSubscription(context.Background(), subID)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Status != domain.SubscriptionUnpaid {
		t.Fatalf("expected subscription unpaid, got %s", sub.Status)
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	if len(sched.del) != 1 {
		t.Fatalf("expected scheduler.Delete called, got %d", len(sched.del))
	}
	if len(sched.update) != 0 {
		t.Fatalf("expected no retry re-arm, got %d", len(sched.update))
	}
}

func TestProcessOrder_TerminalErrorCancelsSubscription(t *testing.T) {
	st := storetest.New()
	subID, orderID := seedActiveSubscription(t, st, domain.SubscriptionActive, 0)

	prov := &fakeProvider{
		name:      "base",
		chargeErr: domain.NewHTTPError(402, domain.ErrPermissionRevoked, "permission revoked"),
	}
	sched := &fakeScheduler{}
	emitter := &fakeEmitter{}
	p := New(st, map[string]provider.SubscriptionProvider{"base": prov}, sched, emitter)

	result, err := p.ProcessOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SubscriptionStatus != domain.SubscriptionCanceled {
		t.Fatalf("expected canceled, got %s", result.SubscriptionStatus)
	}
	if result.NextOrderCreated {
		t.Fatal("expected no next order on terminal error")
	}

	sub, err := st.GetSubscription(context.Background(), subID)
	if err != nil {
		t.Fatal(err)
	}
	if sub.Status != domain.SubscriptionCanceled {
		t.Fatalf("expected subscription canceled, got %s", sub.Status)
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	if len(sched.del) != 1 {
		t.Fatalf("expected scheduler.Delete called, got %d", len(sched.del))
	}
	if emitter.canceled != 1 {
		t.Fatalf("expected 1 canceled emission, got %d", emitter.canceled)
	}
}

func TestProcessOrder_SubscriptionNotActivePreCheck(t *testing.T) {
	st := storetest.New()
	_, orderID := seedActiveSubscription(t, st, domain.SubscriptionCanceled, 0)

	prov := &fakeProvider{name: "base"}
	sched := &fakeScheduler{}
	p := New(st, map[string]provider.SubscriptionProvider{"base": prov}, sched, &fakeEmitter{})

	result, err := p.ProcessOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.FailureReason != domain.ErrSubscriptionNotActive {
		t.Fatalf("expected SUBSCRIPTION_NOT_ACTIVE, got %s", result.FailureReason)
	}
	if result.IsUpstreamError {
		t.Fatal("expected isUpstreamError=false")
	}
	if prov.chargeCalls != 0 {
		t.Fatalf("expected no provider call, got %d", prov.chargeCalls)
	}

	order, err := st.GetOrderByID(context.Background(), orderID)
	if err != nil {
		t.Fatal(err)
	}
	if order.Status != domain.OrderFailed || order.FailureReason == nil || *order.FailureReason != domain.ErrSubscriptionNotActive {
		t.Fatalf("unexpected order state: %+v", order)
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	if len(sched.del) != 1 {
		t.Fatalf("expected scheduler.Delete called, got %d", len(sched.del))
	}
}

func TestProcessOrder_UpstreamErrorReentersQueue(t *testing.T) {
	st := storetest.New()
	_, orderID := seedActiveSubscription(t, st, domain.SubscriptionActive, 0)

	prov := &fakeProvider{
		name:      "base",
		chargeErr: domain.NewHTTPError(503, domain.ErrUpstreamServiceError, "service unavailable"),
	}
	sched := &fakeScheduler{}
	p := New(st, map[string]provider.SubscriptionProvider{"base": prov}, sched, &fakeEmitter{})

	result, err := p.ProcessOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsUpstreamError {
		t.Fatal("expected isUpstreamError=true")
	}
	if result.NextOrderCreated {
		t.Fatal("expected no next order on upstream error")
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	if len(sched.del) != 0 {
		t.Fatalf("expected scheduler kept armed as backup, got %d deletes", len(sched.del))
	}
}
