package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// newTestValidator builds a Validator backed by an in-memory JWKS
// (no network fetch), signing tokens with the matching private key so
// CDPJWTValidate's verification path runs end to end.
func newTestValidator(t *testing.T, issuer, audience string) (*Validator, *rsa.PrivateKey, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	const kid = "test-key-1"

	n := base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes())
	e := base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes())

	jwksJSON := fmt.Sprintf(`{"keys":[{"kty":"RSA","kid":%q,"use":"sig","alg":"RS256","n":%q,"e":%q}]}`, kid, n, e)

	jwks, err := keyfunc.NewJSON(json.RawMessage(jwksJSON))
	if err != nil {
		t.Fatalf("build jwks from json: %v", err)
	}

	return &Validator{jwksURL: "test://static", issuer: issuer, audience: audience, jwks: jwks, logger: zap.NewNop()}, key, kid
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestCDPJWTValidate_AcceptsValidToken(t *testing.T) {
	v, key, kid := newTestValidator(t, "https://cdp.example.com", "merchant-api")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://cdp.example.com",
			Audience:  jwt.ClaimStrings{"merchant-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		CDPUserID:      "cdp-user-1",
		AccountAddress: "0xabc",
	}
	token := signToken(t, key, kid, claims)

	result, err := v.CDPJWTValidate(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CDPUserID != "cdp-user-1" || result.AccountAddress != "0xabc" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCDPJWTValidate_RejectsExpiredToken(t *testing.T) {
	v, key, kid := newTestValidator(t, "", "")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		CDPUserID: "cdp-user-1",
	}
	token := signToken(t, key, kid, claims)

	if _, err := v.CDPJWTValidate(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestCDPJWTValidate_RejectsWrongIssuer(t *testing.T) {
	v, key, kid := newTestValidator(t, "https://cdp.example.com", "")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://evil.example.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		CDPUserID: "cdp-user-1",
	}
	token := signToken(t, key, kid, claims)

	if _, err := v.CDPJWTValidate(token); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}

func TestCDPJWTValidate_RejectsWrongAudience(t *testing.T) {
	v, key, kid := newTestValidator(t, "", "merchant-api")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{"some-other-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		CDPUserID: "cdp-user-1",
	}
	token := signToken(t, key, kid, claims)

	if _, err := v.CDPJWTValidate(token); err == nil {
		t.Fatal("expected audience mismatch to be rejected")
	}
}

func TestCDPAuthenticate_DelegatesToValidate(t *testing.T) {
	v, key, kid := newTestValidator(t, "", "")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		CDPUserID: "cdp-user-2",
	}
	token := signToken(t, key, kid, claims)

	result, err := v.CDPAuthenticate(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CDPUserID != "cdp-user-2" {
		t.Fatalf("unexpected result: %+v", result)
	}
}
