package webhook

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/config"
	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/store/storetest"
)

func newTestService(stage config.Stage) *Service {
	return NewService(storetest.New(), stage, zap.NewNop())
}

func TestCreate_ReturnsSecretOnceAndEnabled(t *testing.T) {
	svc := newTestService(config.StageLocal)
	ctx := context.Background()

	result, err := svc.Create(ctx, 1, "https://merchant.example/hook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Secret == "" {
		t.Fatal("expected a secret to be returned")
	}
	if !result.Enabled {
		t.Fatal("expected newly created webhook to be enabled")
	}

	got, err := svc.Get(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.URL != result.URL {
		t.Fatalf("expected url %q, got %q", result.URL, got.URL)
	}
}

func TestCreate_RejectsHTTPInProduction(t *testing.T) {
	svc := newTestService(config.StageProd)
	_, err := svc.Create(context.Background(), 1, "http://merchant.example/hook")
	httpErr, ok := err.(*domain.HTTPError)
	if !ok {
		t.Fatalf("expected *domain.HTTPError, got %T", err)
	}
	if httpErr.Code != domain.ErrInvalidFormat {
		t.Fatalf("expected %s, got %s", domain.ErrInvalidFormat, httpErr.Code)
	}
}

func TestCreate_AllowsHTTPSInProduction(t *testing.T) {
	svc := newTestService(config.StageProd)
	if _, err := svc.Create(context.Background(), 1, "https://merchant.example/hook"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGet_NotFoundAfterDelete(t *testing.T) {
	svc := newTestService(config.StageLocal)
	ctx := context.Background()

	if _, err := svc.Create(ctx, 1, "https://merchant.example/hook"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.Delete(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := svc.Get(ctx, 1)
	httpErr, ok := err.(*domain.HTTPError)
	if !ok {
		t.Fatalf("expected *domain.HTTPError, got %T", err)
	}
	if httpErr.Status != 404 {
		t.Fatalf("expected 404, got %d", httpErr.Status)
	}
}

func TestRotateSecret_ChangesSecretKeepsURL(t *testing.T) {
	svc := newTestService(config.StageLocal)
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, "https://merchant.example/hook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rotated, err := svc.RotateSecret(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rotated == created.Secret {
		t.Fatal("expected rotation to produce a new secret")
	}

	got, err := svc.Get(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.URL != created.URL {
		t.Fatal("expected url to be unchanged by rotation")
	}
}

func TestUpdateURL_RejectsInvalidFormat(t *testing.T) {
	svc := newTestService(config.StageLocal)
	ctx := context.Background()
	if _, err := svc.Create(ctx, 1, "https://merchant.example/hook"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := svc.UpdateURL(ctx, 1, "not-a-url")
	httpErr, ok := err.(*domain.HTTPError)
	if !ok {
		t.Fatalf("expected *domain.HTTPError, got %T", err)
	}
	if httpErr.Code != domain.ErrInvalidFormat {
		t.Fatalf("expected %s, got %s", domain.ErrInvalidFormat, httpErr.Code)
	}
}
