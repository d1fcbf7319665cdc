package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrNoVerifierToken is returned when no shared secret is configured.
// An unverifiable payload is a configuration error, not a pass-through.
var ErrNoVerifierToken = errors.New("webhook verifier token is not configured")

// Verify recomputes the HMAC-SHA256 of the raw body under the shared
// secret and compares it to the base64-encoded signature header.  The
// comparison is constant-time with respect to the provided signature.
func Verify(body []byte, signatureHeader string, verifierToken []byte) (bool, error) {

	if len(verifierToken) == 0 {
		return false, ErrNoVerifierToken
	}

	if signatureHeader == "" {
		return false, nil
	}

	provided, err := base64.StdEncoding.DecodeString(signatureHeader)
	if err != nil {
		return false, nil
	}

	mac := hmac.New(sha256.New, verifierToken)
	mac.Write(body)
	expected := mac.Sum(nil)

	return hmac.Equal(expected, provided), nil
}
