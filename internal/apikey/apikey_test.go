package apikey

import (
	"strings"
	"testing"
)

func TestGenerate_HasPrefixAndEntropy(t *testing.T) {
	secret, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(secret, Prefix) {
		t.Fatalf("expected secret to start with %q, got %q", Prefix, secret)
	}
	if len(secret) != len(Prefix)+SecretBytes*2 {
		t.Fatalf("unexpected secret length %d", len(secret))
	}

	other, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secret == other {
		t.Fatal("expected two generated secrets to differ")
	}
}

func TestStart_ReturnsFirstSixCharsOfRandomPart(t *testing.T) {
	secret := Prefix + "abcdef0123456789"
	if got := Start(secret); got != "abcdef" {
		t.Fatalf("expected start %q, got %q", "abcdef", got)
	}
}

func TestVerify_RoundTrips(t *testing.T) {
	secret, err := Generate()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	hash := Hash(secret)
	if !Verify(secret, hash) {
		t.Fatal("expected secret to verify against its own hash")
	}
	if Verify("wrong-secret", hash) {
		t.Fatal("expected mismatched secret to fail verification")
	}
}
