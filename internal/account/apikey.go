package account

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	keyPrefix    = "ak_"
	keyPrefixLen = 12
	keyBytes     = 24
)

// GenerateAPIKey returns a new raw API key and its lookup prefix
func GenerateAPIKey() (raw, prefix string, err error) {
	b := make([]byte, keyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate API key: %w", err)
	}

	raw = keyPrefix + hex.EncodeToString(b)
	return raw, raw[:keyPrefixLen], nil
}

// KeyPrefix returns the lookup prefix of a raw key, or false when the key is malformed
func KeyPrefix(raw string) (string, bool) {
	if !strings.HasPrefix(raw, keyPrefix) || len(raw) < keyPrefixLen {
		return "", false
	}
	return raw[:keyPrefixLen], true
}
