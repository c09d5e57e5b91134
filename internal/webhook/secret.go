package webhook

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const (
	// SecretBytes is the amount of random entropy behind a webhook
	// signing secret (spec §6 WEBHOOK.secretBytes).
	SecretBytes = 32
	// SecretPrefix is prepended to every generated secret.
	SecretPrefix = "whsec_"
	// SecretPreviewChars is how much of the secret's random part is
	// safe to display once the full value is gone.
	SecretPreviewChars = 8
	// MaxPerAccount is the cap on active webhooks per account (spec §3:
	// "at most one active record per Account").
	MaxPerAccount = 1
)

// GenerateSecret creates a new signing secret: SecretPrefix followed
// by SecretBytes of randomness hex-encoded, mirroring apikey.Generate's
// shape. The caller sees it exactly once, at creation or rotation.
func GenerateSecret() (string, error) {
	raw := make([]byte, SecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate webhook secret: %w", err)
	}
	return SecretPrefix + hex.EncodeToString(raw), nil
}

// SecretPreview returns the first SecretPreviewChars of secret's
// random part, for display after the full value is no longer shown.
func SecretPreview(secret string) string {
	random := secret[len(SecretPrefix):]
	if len(random) < SecretPreviewChars {
		return random
	}
	return random[:SecretPreviewChars]
}
