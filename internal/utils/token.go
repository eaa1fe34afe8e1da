package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA‑256 hashing for stored token digests
	"encoding/hex"  // hex encoding
)

// TokenBytes is the entropy of every opaque bearer token (session cookie,
// password reset link).
const TokenBytes = 32

// NewOpaqueToken returns a random token as 64 hex characters.  Only its
// HashToken digest is ever persisted.
func NewOpaqueToken() (string, error) {
	return RandomHex(TokenBytes)
}

// HashToken returns the SHA‑256 hash of the raw token as a hex string.
// Storing only the hash means a leaked table cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RandomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
