package webhook

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/store/storetest"
	"github.com/basesub/subscriptions/internal/webhook/queue"
)

type fakeQueue struct {
	deliveries []queue.Delivery
}

func (f *fakeQueue) Enqueue(ctx context.Context, d queue.Delivery) error {
	f.deliveries = append(f.deliveries, d)
	return nil
}

func testSubscription() *domain.Subscription {
	id, _ := domain.ParseSubscriptionID("0x" + "1234567890123456789012345678901234567890123456789012345678901234"[:64])
	return &domain.Subscription{
		ID: id, Status: domain.SubscriptionActive, AccountID: 1,
		BeneficiaryAddress: "0xabc", Provider: "base", Testnet: true,
	}
}

func testOrder() *domain.Order {
	return &domain.Order{
		ID: 10, OrderNumber: 2, Type: domain.OrderRecurring,
		Amount: "5.00", PeriodLengthInSeconds: 2592000, Status: domain.OrderPaid,
	}
}

func TestEmit_NoWebhookConfiguredIsNoOp(t *testing.T) {
	st := storetest.New()
	q := &fakeQueue{}
	ob := New(st, q, zap.NewNop())

	ob.EmitPaymentProcessed(context.Background(), testSubscription(), testOrder(), &domain.Transaction{TransactionHash: "0xhash", Amount: "5.00"})

	if len(q.deliveries) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(q.deliveries))
	}
}

func TestEmit_DisabledWebhookIsNoOp(t *testing.T) {
	st := storetest.New()
	st.UpsertWebhook(context.Background(), domain.Webhook{AccountID: 1, URL: "https://merchant.example/hook", Secret: "whsec", Enabled: false})
	q := &fakeQueue{}
	ob := New(st, q, zap.NewNop())

	ob.EmitPaymentProcessed(context.Background(), testSubscription(), testOrder(), &domain.Transaction{TransactionHash: "0xhash", Amount: "5.00"})

	if len(q.deliveries) != 0 {
		t.Fatalf("expected no deliveries for disabled webhook, got %d", len(q.deliveries))
	}
}

func TestEmit_EnabledWebhookEnqueuesSignedDelivery(t *testing.T) {
	st := storetest.New()
	st.UpsertWebhook(context.Background(), domain.Webhook{AccountID: 1, URL: "https://merchant.example/hook", Secret: "whsec", Enabled: true})
	q := &fakeQueue{}
	ob := New(st, q, zap.NewNop())

	sub := testSubscription()
	order := testOrder()
	tx := &domain.Transaction{TransactionHash: "0xhash", Amount: "5.00"}
	ob.EmitPaymentProcessed(context.Background(), sub, order, tx)

	if len(q.deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(q.deliveries))
	}
	d := q.deliveries[0]
	if d.URL != "https://merchant.example/hook" {
		t.Fatalf("unexpected url: %s", d.URL)
	}
	if !Verify([]byte("whsec"), d.Payload, d.Signature) {
		t.Fatal("expected delivery signature to verify against webhook secret")
	}
}

func TestEmitPaymentFailed_SanitizesNonExposableError(t *testing.T) {
	st := storetest.New()
	st.UpsertWebhook(context.Background(), domain.Webhook{AccountID: 1, URL: "https://merchant.example/hook", Secret: "whsec", Enabled: true})
	q := &fakeQueue{}
	ob := New(st, q, zap.NewNop())

	internalErr := domain.NewHTTPError(500, domain.ErrInternal, "db exploded, leaking internal detail")
	ob.EmitPaymentFailed(context.Background(), testSubscription(), testOrder(), internalErr, nil)

	if len(q.deliveries) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(q.deliveries))
	}
	payload := string(q.deliveries[0].Payload)
	if contains := (func(s, sub string) bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	}); contains(payload, "db exploded") {
		t.Fatal("expected internal error detail to be sanitized out of the payload")
	}
}
