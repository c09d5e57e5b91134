// Package apikey generates and verifies the merchant-facing API keys
// of spec §6, grounded on the teacher's libs/go/helpers/apikey.go
// generation idiom, adapted to this module's prefix/preview scheme and
// to a deterministic lookup hash (the teacher's per-workspace keys are
// looked up by id, not by the key itself, so its bcrypt-hashed storage
// doesn't need to support lookup-by-secret; ours does, per
// store.GetApiKeyByHash).
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const (
	// Prefix is prepended to every generated secret and echoed back in
	// createApiKey's response as a display-only field.
	Prefix = "ck_"
	// SecretBytes is the amount of random entropy behind the prefix.
	SecretBytes = 32
	// StartChars is the length of the non-secret preview stored and
	// returned alongside the key, taken from the random part only.
	StartChars = 6
	// NameMaxLength bounds the key's display name.
	NameMaxLength = 32
)

// Generate creates a new secret: Prefix followed by SecretBytes of
// randomness hex-encoded. The caller sees it exactly once.
func Generate() (secret string, err error) {
	raw := make([]byte, SecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return Prefix + hex.EncodeToString(raw), nil
}

// Start returns the first StartChars of the secret's random part, for
// display once the full secret is gone.
func Start(secret string) string {
	random := secret[len(Prefix):]
	if len(random) < StartChars {
		return random
	}
	return random[:StartChars]
}

// Hash returns the deterministic digest stored for lookup-by-secret on
// every authenticated request. SHA-256 rather than the teacher's
// bcrypt: the secret already carries 32 bytes of entropy, so a
// computationally-cheap, collision-resistant digest is sufficient, and
// unlike bcrypt it supports an equality lookup instead of an O(n) scan
// of every stored key.
func Hash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether secret hashes to hash, in constant time.
func Verify(secret, hash string) bool {
	return subtle.ConstantTimeCompare([]byte(Hash(secret)), []byte(hash)) == 1
}
