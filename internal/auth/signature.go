package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

var (
	// ErrMissingBody means there are no raw request bytes to verify against.
	ErrMissingBody = errors.New("request body required for signature verification")
	// ErrMissingSignature means the client did not send a signature.
	ErrMissingSignature = errors.New("missing signature header")
	// ErrSignatureLength means the supplied signature cannot be a hex SHA-256 MAC.
	ErrSignatureLength = errors.New("invalid signature")
	// ErrSignatureMismatch means the signature does not cover the body.
	ErrSignatureMismatch = errors.New("invalid signature")
)

// Sign returns the lowercase hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks that signature is the HMAC-SHA256 of the raw body. The
// comparison runs over the full length so timing does not reveal the first
// differing byte.
func Verify(secret, body []byte, signature string) error {
	if len(body) == 0 {
		return ErrMissingBody
	}
	if signature == "" {
		return ErrMissingSignature
	}
	expected := Sign(secret, body)
	if len(signature) != len(expected) {
		return ErrSignatureLength
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(expected)) != 1 {
		return ErrSignatureMismatch
	}
	return nil
}
