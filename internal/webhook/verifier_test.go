package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
)

func signPayload(body []byte, token []byte) string {
	mac := hmac.New(sha256.New, token)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyValidSignature(t *testing.T) {
	token := []byte("verifier-token")
	body := []byte(`{"eventNotifications":[]}`)

	verified, err := Verify(body, signPayload(body, token), token)
	if err != nil {
		t.Fatal("unexpected error ", err)
	}

	if !verified {
		t.Fatal("a correctly signed payload failed verification")
	}
}

func TestVerifyRejectsBadSignatures(t *testing.T) {
	token := []byte("verifier-token")
	body := []byte(`{"eventNotifications":[]}`)

	testCases := []struct {
		name      string
		signature string
	}{
		{"signed with the wrong key", signPayload(body, []byte("other-token"))},
		{"signature over a different body", signPayload([]byte("tampered"), token)},
		{"empty signature header", ""},
		{"signature header is not base64", "!!! not base64 !!!"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			verified, err := Verify(body, tc.signature, token)
			if err != nil {
				t.Fatal("unexpected error ", err)
			}

			if verified {
				t.Fatal("an invalid signature passed verification")
			}
		})
	}
}

func TestVerifyRequiresConfiguredToken(t *testing.T) {
	body := []byte(`{"eventNotifications":[]}`)

	verified, err := Verify(body, signPayload(body, []byte("anything")), nil)
	if err != ErrNoVerifierToken {
		t.Fatalf("expected ErrNoVerifierToken, got %v", err)
	}

	if verified {
		t.Fatal("verification passed without a configured token")
	}
}
