package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/basesub/subscriptions/internal/apikey"
	"github.com/basesub/subscriptions/internal/auth"
	"github.com/basesub/subscriptions/internal/domain"
	"github.com/basesub/subscriptions/internal/store"
)

// apiKeyResolver adapts apikey.Service to middleware.AccountResolver.
type apiKeyResolver struct {
	keys *apikey.Service
}

func (r *apiKeyResolver) AuthenticateAPIKey(c *gin.Context, secret string) (int64, *domain.HTTPError) {
	key, err := r.keys.Authenticate(c.Request.Context(), secret)
	if err != nil {
		if he, ok := err.(*domain.HTTPError); ok {
			return 0, he
		}
		return 0, domain.NewHTTPError(500, domain.ErrInternal, "authentication failed")
	}
	return key.AccountID, nil
}

// jwtResolver adapts auth.Validator + store.Store (account
// provisioning) to middleware.JWTResolver, per spec §3's "Account ...
// Created when the merchant first authenticates".
type jwtResolver struct {
	validator *auth.Validator
	store     store.Store
}

func (r *jwtResolver) AuthenticateJWT(c *gin.Context, bearerToken string) (int64, *domain.HTTPError) {
	result, err := r.validator.CDPJWTValidate(bearerToken)
	if err != nil {
		return 0, domain.NewHTTPError(401, domain.ErrInvalidAPIKey, "invalid or expired token")
	}
	if result.AccountAddress == "" {
		return 0, domain.NewHTTPError(401, domain.ErrInvalidAPIKey, "token is not yet bound to an account address")
	}

	userID := result.CDPUserID
	account, err := r.store.GetOrCreateAccount(c.Request.Context(), result.AccountAddress, &userID)
	if err != nil {
		return 0, domain.NewHTTPError(500, domain.ErrInternal, "failed to resolve account")
	}
	return account.ID, nil
}
