package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateSessionToken creates an opaque login token and its SHA256 hash.
// The raw token goes to the client once; only the hash is stored, so a
// database leak never yields a usable credential.
func GenerateSessionToken() (rawToken, tokenHash string, err error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	rawToken = fmt.Sprintf("cst_%s", hex.EncodeToString(bytes))
	return rawToken, HashToken(rawToken), nil
}

// HashToken maps a presented token to its stored form.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
