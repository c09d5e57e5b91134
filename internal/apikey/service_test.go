package apikey

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/store/storetest"
)

func newTestService() *Service {
	return New(storetest.New(), zap.NewNop())
}

func TestCreate_ReturnsSecretOnceAndPersistsHashOnly(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	result, err := svc.Create(ctx, 1, "prod key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Secret == "" {
		t.Fatal("expected a secret to be returned")
	}
	if result.Prefix != Prefix {
		t.Fatalf("expected prefix %q, got %q", Prefix, result.Prefix)
	}
	if result.Start != Start(result.Secret) {
		t.Fatalf("expected start to match secret's random prefix")
	}
	if !result.Enabled {
		t.Fatal("expected newly created key to be enabled")
	}

	keys, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected 1 key, got %d", len(keys))
	}
	if keys[0].KeyHash == result.Secret {
		t.Fatal("expected stored hash to differ from the plaintext secret")
	}
}

func TestCreate_RejectsOverlongName(t *testing.T) {
	svc := newTestService()
	long := make([]byte, NameMaxLength+1)
	for i := range long {
		long[i] = 'a'
	}

	_, err := svc.Create(context.Background(), 1, string(long))
	httpErr, ok := err.(*domain.HTTPError)
	if !ok {
		t.Fatalf("expected *domain.HTTPError, got %T", err)
	}
	if httpErr.Status != 400 || httpErr.Code != domain.ErrInvalidRequest {
		t.Fatalf("unexpected error: %+v", httpErr)
	}
}

func TestAuthenticate_AcceptsEnabledRejectsDisabled(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key, err := svc.Authenticate(ctx, created.Secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.AccountID != 1 {
		t.Fatalf("expected account 1, got %d", key.AccountID)
	}
	if key.LastUsedAt == nil {
		t.Fatal("expected last_used_at to be stamped on successful auth")
	}

	enabled := false
	if err := svc.Update(ctx, 1, created.ID, nil, &enabled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Authenticate(ctx, created.Secret); err == nil {
		t.Fatal("expected disabled key to fail authentication")
	}
}

func TestAuthenticate_RejectsUnknownSecret(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Authenticate(context.Background(), "ck_does-not-exist"); err == nil {
		t.Fatal("expected unknown secret to be rejected")
	}
}

func TestDelete_RejectsForeignAccount(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = svc.Delete(ctx, 2, created.ID)
	httpErr, ok := err.(*domain.HTTPError)
	if !ok {
		t.Fatalf("expected *domain.HTTPError, got %T", err)
	}
	if httpErr.Status != 404 {
		t.Fatalf("expected 404, got %d", httpErr.Status)
	}

	keys, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatal("expected key to survive a rejected foreign delete")
	}
}

func TestDelete_RemovesOwnedKey(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(ctx, 1, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	keys, err := svc.List(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected key to be gone, found %d", len(keys))
	}
}
