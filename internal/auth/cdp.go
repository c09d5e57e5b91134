// Package auth implements the cdpAuthenticate/cdpJWTValidate helpers
// of spec §6: opaque validation of a Coinbase Developer Platform JWT,
// surfaced to the core as {cdpUserId, accountAddress?}.
//
// Grounded on the teacher's Web3Auth JWKS validation
// (libs/go/client/auth/middleware.go): JWKS fetched once and kept
// refreshed in the background, jwt.ParseWithClaims against the JWKS
// keyfunc, then issuer/audience checks on the verified claims. The
// auto-provision-a-user-on-first-JWT behavior is dropped: account
// creation in this module happens via Store.GetOrCreateAccount, not
// inside the auth layer.
package auth

import (
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Claims is the subset of a CDP-issued JWT this module relies on.
// AccountAddress is optional: some CDP flows authenticate a user
// without yet binding them to an on-chain address.
type Claims struct {
	jwt.RegisteredClaims
	CDPUserID      string `json:"user_id"`
	AccountAddress string `json:"account_address,omitempty"`
}

// Result is what cdpAuthenticate/cdpJWTValidate hand back to the
// caller per spec §6.
type Result struct {
	CDPUserID      string
	AccountAddress string
}

// Validator validates CDP-issued JWTs against CDP's published JWKS.
type Validator struct {
	jwksURL  string
	issuer   string
	audience string
	jwks     *keyfunc.JWKS
	logger   *zap.Logger
}

// NewValidator fetches the JWKS at jwksURL and keeps it refreshed.
// issuer/audience are checked on every token when non-empty.
func NewValidator(jwksURL, issuer, audience string, logger *zap.Logger) (*Validator, error) {
	v := &Validator{jwksURL: jwksURL, issuer: issuer, audience: audience, logger: logger}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshInterval:  time.Hour,
		RefreshRateLimit: time.Minute,
		RefreshTimeout:   10 * time.Second,
		RefreshErrorHandler: func(err error) {
			logger.Error("cdp jwks refresh failed", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch cdp jwks: %w", err)
	}
	v.jwks = jwks
	return v, nil
}

// CDPJWTValidate parses and verifies tokenString against the JWKS,
// then checks issuer/audience/expiry. It does not look anything up in
// storage — opaque validation, per spec §6.
func (v *Validator) CDPJWTValidate(tokenString string) (*Result, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, v.jwks.Keyfunc)
	if err != nil {
		return nil, fmt.Errorf("parse cdp token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("cdp token is not valid")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("unexpected cdp token claims type")
	}

	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("cdp token expired")
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("cdp token issuer mismatch")
	}
	if v.audience != "" {
		validAudience := false
		for _, aud := range claims.Audience {
			if aud == v.audience {
				validAudience = true
				break
			}
		}
		if !validAudience {
			return nil, fmt.Errorf("cdp token audience mismatch")
		}
	}

	userID := claims.CDPUserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, fmt.Errorf("cdp token has no user identifier")
	}

	return &Result{CDPUserID: userID, AccountAddress: claims.AccountAddress}, nil
}

// CDPAuthenticate is an alias entry point matching spec §6's naming;
// it performs the same opaque validation as CDPJWTValidate. The HTTP
// layer calls only CDPJWTValidate; the two do not differ in behavior.
func (v *Validator) CDPAuthenticate(tokenString string) (*Result, error) {
	return v.CDPJWTValidate(tokenString)
}
