package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// OpaqueTokenBytes is the entropy of session and verification tokens (256 bits).
const OpaqueTokenBytes = 32

// NewOpaqueToken returns a random hex token and the SHA-256 hash under which
// it is stored. The raw token is only ever handed to the client.
func NewOpaqueToken() (token, hash string, err error) {
	b := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generating token: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, HashOpaqueToken(token), nil
}

// HashOpaqueToken returns the hex-encoded SHA-256 of token.
func HashOpaqueToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidOpaqueToken reports whether token has the shape produced by
// NewOpaqueToken, so malformed input can be rejected without a lookup.
func ValidOpaqueToken(token string) bool {
	if len(token) != OpaqueTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}
