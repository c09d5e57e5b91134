package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/webhook/queue"
)

type fakeRequeuer struct {
	enqueued []queue.Delivery
}

func (f *fakeRequeuer) Enqueue(ctx context.Context, d queue.Delivery) error {
	f.enqueued = append(f.enqueued, d)
	return nil
}

type fakeDLQ struct {
	sent      []queue.Delivery
	lastError string
}

func (f *fakeDLQ) Send(ctx context.Context, d queue.Delivery, lastError string) error {
	f.sent = append(f.sent, d)
	f.lastError = lastError
	return nil
}

func TestHandle_2xxNeverRequeues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Webhook-Signature") == "" {
			t.Error("expected signature header")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rq := &fakeRequeuer{}
	dlq := &fakeDLQ{}
	w := New(rq, dlq, zap.NewNop(), time.Second)

	err := w.Handle(context.Background(), queue.Delivery{URL: srv.URL, Payload: []byte("{}"), Signature: "abc"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rq.enqueued) != 0 || len(dlq.sent) != 0 {
		t.Fatal("expected no requeue and no dlq send on success")
	}
}

func TestHandle_FailureRequeuesWithIncrementedAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rq := &fakeRequeuer{}
	dlq := &fakeDLQ{}
	w := New(rq, dlq, zap.NewNop(), time.Second)
	w.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	err := w.Handle(context.Background(), queue.Delivery{URL: srv.URL, Payload: []byte("{}"), Signature: "abc", Attempt: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rq.enqueued) != 1 {
		t.Fatalf("expected 1 requeue, got %d", len(rq.enqueued))
	}
	if rq.enqueued[0].Attempt != 3 {
		t.Fatalf("expected attempt bumped to 3, got %d", rq.enqueued[0].Attempt)
	}
}

func TestHandle_ExhaustedRetriesRoutesToDLQ(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rq := &fakeRequeuer{}
	dlq := &fakeDLQ{}
	w := New(rq, dlq, zap.NewNop(), time.Second)

	err := w.Handle(context.Background(), queue.Delivery{URL: srv.URL, Payload: []byte("{}"), Signature: "abc", Attempt: queue.MaxAttempts - 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dlq.sent) != 1 {
		t.Fatalf("expected delivery routed to dlq, got %d sent", len(dlq.sent))
	}
	if len(rq.enqueued) != 0 {
		t.Fatal("expected no requeue once retries are exhausted")
	}
}

func TestNextAttemptDelay_CapsAt600Seconds(t *testing.T) {
	if got := queue.NextAttemptDelay(0); got != 5*time.Second {
		t.Fatalf("expected 5s base delay, got %v", got)
	}
	if got := queue.NextAttemptDelay(20); got != 600*time.Second {
		t.Fatalf("expected delay capped at 600s, got %v", got)
	}
}
