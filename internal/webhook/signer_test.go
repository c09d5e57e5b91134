package webhook

import "testing"

func TestSignVerify_RoundTrips(t *testing.T) {
	secret := []byte("whsec_test")
	payload := []byte(`{"event":"subscription.updated"}`)

	sig := Sign(secret, payload)
	if !Verify(secret, payload, sig) {
		t.Fatal("expected signature to verify")
	}
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	secret := []byte("whsec_test")
	sig := Sign(secret, []byte(`{"a":1}`))
	if Verify(secret, []byte(`{"a":2}`), sig) {
		t.Fatal("expected tampered payload to fail verification")
	}
}

func TestVerify_RejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"a":1}`)
	sig := Sign([]byte("secret-a"), payload)
	if Verify([]byte("secret-b"), payload, sig) {
		t.Fatal("expected wrong secret to fail verification")
	}
}

func TestVerify_RejectsMalformedHex(t *testing.T) {
	if Verify([]byte("secret"), []byte("payload"), "not-hex") {
		t.Fatal("expected malformed signature to fail verification")
	}
}
