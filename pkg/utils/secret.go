package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// NewSecret returns prefix followed by n random bytes hex-encoded.
func NewSecret(prefix string, n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return prefix + hex.EncodeToString(b), nil
}

// MaskSecret hides all but the last four characters of s.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "****" + s
	}
	return "****" + s[len(s)-4:]
}

// SumSHA256Hex returns the hex SHA-256 checksum of the provided data.
func SumSHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
