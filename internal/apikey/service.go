package apikey

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/store"
)

// Service implements the createApiKey/listApiKeys/updateApiKey/
// deleteApiKey RPCs of spec §6, grounded on the teacher's
// APIKeyService (generate -> hash -> persist -> return full key once).
type Service struct {
	store  store.Store
	logger *zap.Logger
	now    func() time.Time
}

// New builds a Service.
func New(st store.Store, logger *zap.Logger) *Service {
	return &Service{store: st, logger: logger, now: time.Now}
}

// CreateResult is createApiKey's response shape; Secret is populated
// only on the call that minted the key.
type CreateResult struct {
	ID        uuid.UUID
	Secret    string
	Name      string
	Prefix    string
	Start     string
	Enabled   bool
	CreatedAt time.Time
}

// Create mints a new key for accountID. name defaults to "" (the
// caller may leave it unset; spec does not require a name).
func (s *Service) Create(ctx context.Context, accountID int64, name string) (*CreateResult, error) {
	if len(name) > NameMaxLength {
		return nil, domain.NewHTTPError(400, domain.ErrInvalidRequest, fmt.Sprintf("name exceeds %d characters", NameMaxLength))
	}

	secret, err := Generate()
	if err != nil {
		return nil, domain.NewHTTPError(500, domain.ErrInternal, "failed to generate api key")
	}

	key := domain.ApiKey{
		ID:         uuid.New(),
		AccountID:  accountID,
		KeyHash:    Hash(secret),
		KeyPreview: Start(secret),
		Name:       name,
		Enabled:    true,
		CreatedAt:  s.now(),
	}
	if err := s.store.CreateApiKey(ctx, key); err != nil {
		return nil, domain.NewHTTPError(500, domain.ErrInternal, "failed to store api key")
	}

	s.logger.Info("api key created", zap.Int64("account_id", accountID), zap.String("key_id", key.ID.String()))

	return &CreateResult{
		ID:        key.ID,
		Secret:    secret,
		Name:      key.Name,
		Prefix:    Prefix,
		Start:     key.KeyPreview,
		Enabled:   key.Enabled,
		CreatedAt: key.CreatedAt,
	}, nil
}

// List returns every key belonging to accountID. The returned keys
// carry KeyHash; the HTTP handler maps them to a response DTO that
// drops it.
func (s *Service) List(ctx context.Context, accountID int64) ([]domain.ApiKey, error) {
	keys, err := s.store.ListApiKeys(ctx, accountID)
	if err != nil {
		return nil, domain.NewHTTPError(500, domain.ErrInternal, "failed to list api keys")
	}
	return keys, nil
}

// Update patches name and/or enabled on a key owned by accountID.
func (s *Service) Update(ctx context.Context, accountID int64, keyID uuid.UUID, name *string, enabled *bool) error {
	if name != nil && len(*name) > NameMaxLength {
		return domain.NewHTTPError(400, domain.ErrInvalidRequest, fmt.Sprintf("name exceeds %d characters", NameMaxLength))
	}
	if err := s.ownedBy(ctx, accountID, keyID); err != nil {
		return err
	}
	if err := s.store.UpdateApiKey(ctx, keyID.String(), name, enabled); err != nil {
		return domain.NewHTTPError(500, domain.ErrInternal, "failed to update api key")
	}
	return nil
}

// Delete removes a key owned by accountID.
func (s *Service) Delete(ctx context.Context, accountID int64, keyID uuid.UUID) error {
	if err := s.ownedBy(ctx, accountID, keyID); err != nil {
		return err
	}
	if err := s.store.DeleteApiKey(ctx, keyID.String()); err != nil {
		return domain.NewHTTPError(500, domain.ErrInternal, "failed to delete api key")
	}
	return nil
}

// Authenticate resolves the account behind a bearer secret presented
// on an inbound request, per spec §6's "authenticates to exactly one
// Account" (domain/apikey.go). Disabled keys are rejected even though
// their hash still resolves, so a merchant can deactivate a leaked key
// without deleting its audit trail.
func (s *Service) Authenticate(ctx context.Context, secret string) (*domain.ApiKey, error) {
	key, err := s.store.GetApiKeyByHash(ctx, Hash(secret))
	if err != nil {
		return nil, domain.NewHTTPError(401, domain.ErrInvalidAPIKey, "invalid api key")
	}
	if !key.Enabled {
		return nil, domain.NewHTTPError(401, domain.ErrInvalidAPIKey, "api key is disabled")
	}
	if err := s.store.TouchApiKeyLastUsed(ctx, key.ID.String()); err != nil {
		s.logger.Warn("failed to touch api key last_used_at", zap.String("key_id", key.ID.String()), zap.Error(err))
	}
	return key, nil
}

// ownedBy confirms keyID belongs to accountID. A key that does not
// exist and a key owned by another account both yield 404.
func (s *Service) ownedBy(ctx context.Context, accountID int64, keyID uuid.UUID) error {
	keys, err := s.store.ListApiKeys(ctx, accountID)
	if err != nil {
		return domain.NewHTTPError(500, domain.ErrInternal, "failed to look up api key")
	}
	for _, k := range keys {
		if k.ID == keyID {
			return nil
		}
	}
	return domain.NewHTTPError(404, domain.ErrNotFound, "api key not found")
}
