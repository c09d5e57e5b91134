package webhook

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/config"
	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/store"
)

// Service implements the createWebhook/getWebhook/updateWebhookUrl/
// rotateWebhookSecret/deleteWebhook RPCs of spec §6, grounded on
// apikey.Service's generate-hash-wait-no-persist-the-secret-once
// shape (here there is no hash, since the merchant needs the secret
// back on every rotation to re-verify HMAC signatures, but the
// one-time-disclosure pattern is identical).
type Service struct {
	store  store.Store
	stage  config.Stage
	logger *zap.Logger
	now    func() time.Time
}

// NewService builds a webhook management Service. stage gates the
// HTTPS-required check (spec §3: "must be HTTPS in production").
func NewService(st store.Store, stage config.Stage, logger *zap.Logger) *Service {
	return &Service{store: st, stage: stage, logger: logger, now: time.Now}
}

func (s *Service) validateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return domain.NewHTTPError(400, domain.ErrInvalidFormat, "invalid webhook url")
	}
	if s.stage == config.StageProd && u.Scheme != "https" {
		return domain.NewHTTPError(400, domain.ErrInvalidFormat, "webhook url must use https in production")
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return domain.NewHTTPError(400, domain.ErrInvalidFormat, "webhook url must be http or https")
	}
	return nil
}

// CreateResult is createWebhook's response; Secret is populated only
// on the call that minted or rotated it.
type CreateResult struct {
	URL     string
	Secret  string
	Enabled bool
}

// Create registers the account's webhook destination. Spec §3 caps
// this at MaxPerAccount (1) per account; UpsertWebhook's
// account-id-keyed upsert enforces that structurally rather than by a
// separate existence check.
func (s *Service) Create(ctx context.Context, accountID int64, rawURL string) (*CreateResult, error) {
	if err := s.validateURL(rawURL); err != nil {
		return nil, err
	}

	secret, err := GenerateSecret()
	if err != nil {
		return nil, domain.NewHTTPError(500, domain.ErrInternal, "failed to generate webhook secret")
	}

	wh := domain.Webhook{
		AccountID: accountID,
		URL:       rawURL,
		Secret:    secret,
		Enabled:   true,
		CreatedAt: s.now(),
	}
	if err := s.store.UpsertWebhook(ctx, wh); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}

	s.logger.Info("webhook registered", zap.Int64("account_id", accountID), zap.String("url", rawURL))

	return &CreateResult{URL: rawURL, Secret: secret, Enabled: true}, nil
}

// Get returns the account's webhook, secret included (the HTTP handler
// shows only SecretPreview of it); a deleted webhook is reported as
// not found.
func (s *Service) Get(ctx context.Context, accountID int64) (*domain.Webhook, error) {
	wh, err := s.lookup(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return wh, nil
}

func (s *Service) lookup(ctx context.Context, accountID int64) (*domain.Webhook, error) {
	wh, err := s.store.GetWebhook(ctx, accountID)
	if err != nil {
		if se, ok := err.(*store.StorageError); ok && se.Kind == store.NotFound {
			return nil, domain.NewHTTPError(404, domain.ErrNotFound, "no webhook configured")
		}
		return nil, fmt.Errorf("load webhook: %w", err)
	}
	if wh.Deleted() {
		return nil, domain.NewHTTPError(404, domain.ErrNotFound, "no webhook configured")
	}
	return wh, nil
}

// UpdateURL changes the destination URL in place, keeping the
// existing signing secret and enabled flag.
func (s *Service) UpdateURL(ctx context.Context, accountID int64, rawURL string) error {
	if err := s.validateURL(rawURL); err != nil {
		return err
	}
	existing, err := s.lookup(ctx, accountID)
	if err != nil {
		return err
	}
	wh := domain.Webhook{
		AccountID: accountID,
		URL:       rawURL,
		Secret:    existing.Secret,
		Enabled:   existing.Enabled,
		CreatedAt: existing.CreatedAt,
	}
	if err := s.store.UpsertWebhook(ctx, wh); err != nil {
		return fmt.Errorf("update webhook url: %w", err)
	}
	return nil
}

// RotateSecret replaces the signing secret and returns the new value,
// visible to the caller exactly once.
func (s *Service) RotateSecret(ctx context.Context, accountID int64) (string, error) {
	if _, err := s.lookup(ctx, accountID); err != nil {
		return "", err
	}
	secret, err := GenerateSecret()
	if err != nil {
		return "", domain.NewHTTPError(500, domain.ErrInternal, "failed to generate webhook secret")
	}
	if err := s.store.RotateWebhookSecret(ctx, accountID, secret); err != nil {
		return "", fmt.Errorf("rotate webhook secret: %w", err)
	}
	s.logger.Info("webhook secret rotated", zap.Int64("account_id", accountID))
	return secret, nil
}

// Delete soft-deletes the account's webhook.
func (s *Service) Delete(ctx context.Context, accountID int64) error {
	if _, err := s.lookup(ctx, accountID); err != nil {
		return err
	}
	if err := s.store.DeleteWebhook(ctx, accountID); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
