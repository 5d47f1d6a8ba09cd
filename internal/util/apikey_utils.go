package util

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/makkenzo/keygate/internal/domain/apikey"
)

func generateRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// GenerateAPIKey returns a URL-safe key carrying 256 bits of entropy
// (32 random bytes, base64url without padding).
func GenerateAPIKey() (string, error) {
	b, err := generateRandomBytes(apikey.APIKeyRandomBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// KeyFingerprint shortens a key for logs so full secrets never reach them.
func KeyFingerprint(key string) string {
	if len(key) <= apikey.FingerprintLength {
		return key
	}
	return key[:apikey.FingerprintLength] + "..."
}
