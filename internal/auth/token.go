package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// TokenBytes gives 256 bits of entropy per session token.
const TokenBytes = 32

var ErrInvalidToken = errors.New("invalid token")

// NewSessionToken returns a hex encoded random token.
func NewSessionToken() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// ValidateToken rejects values that could not have come from NewSessionToken.
func ValidateToken(token string) error {
	if len(token) != TokenBytes*2 {
		return ErrInvalidToken
	}
	if _, err := hex.DecodeString(token); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// HashToken is the at-rest form of a session token.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return fmt.Sprintf("%x", sum)
}
