package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

const continuationSecretSize = 32

// ClaimKey derives a fixed-length redis key component from an identity claim.
// Claims are normalized (lowercase, trimmed) before hashing so the same
// mailbox always maps to the same key regardless of input casing.
func ClaimKey(identity string) string {
	normalized := strings.ToLower(strings.TrimSpace(identity))
	sum := sha256.Sum256([]byte(normalized))
	return base64.RawURLEncoding.EncodeToString(sum[:16])
}

// NewContinuationSecret returns a fresh one-shot continuation secret.
func NewContinuationSecret() ([continuationSecretSize]byte, error) {
	var secret [continuationSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

// HashContinuationSecret hashes a continuation secret for storage. Only the
// hash is ever persisted.
func HashContinuationSecret(secret [continuationSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}
