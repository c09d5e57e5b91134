package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes hex(HMAC-SHA-256(secret, payload)), the raw signature
// value placed in the X-Webhook-Signature delivery header (prefixed
// with "sha256=" by the delivery worker, not here — the outbox only
// produces the digest).
func Sign(secret, payload []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the correct hex HMAC-SHA-256 of
// payload under secret. Constant-time; only the tests call it, the
// delivery worker sends the stored signature without re-verifying.
func Verify(secret, payload []byte, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(payload)
	got := mac.Sum(nil)
	return hmac.Equal(want, got)
}
