// Package auth provides the credential primitives used by the API: API keys,
// bcrypt password hashing, HS256 JWTs, scopes, PKCE and opaque token hashing.
// Request-time authentication lives in internal/middleware/auth.go.
package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyLength is the number of random alphanumeric characters after the prefix.
	APIKeyLength = 32

	// DisplayPrefixLength is the number of leading characters stored for lookup and display.
	DisplayPrefixLength = 10

	// BcryptCost is the cost factor for API key and client secret hashes.
	BcryptCost = 12

	// PasswordCost is the cost factor for account passwords.
	PasswordCost = bcrypt.DefaultCost
)

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// RandomAlphanumeric returns n characters drawn uniformly from [A-Za-z0-9].
func RandomAlphanumeric(n int) (string, error) {
	var sb strings.Builder
	sb.Grow(n)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(alphanumeric[idx.Int64()])
	}
	return sb.String(), nil
}

// GenerateAPIKey creates a key of the form <prefix><32 alphanumerics>, e.g.
// "lp_" + 32 chars. It returns the full key (shown once), its bcrypt hash and
// the display prefix used for lookup.
func GenerateAPIKey(prefix string) (key string, hash string, displayPrefix string, err error) {
	random, err := RandomAlphanumeric(APIKeyLength)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate random key: %w", err)
	}
	fullKey := prefix + random

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(fullKey), BcryptCost)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to hash API key: %w", err)
	}

	return fullKey, string(hashBytes), DisplayPrefix(fullKey), nil
}

// DisplayPrefix returns the lookup prefix of a key.
func DisplayPrefix(key string) string {
	if len(key) > DisplayPrefixLength {
		return key[:DisplayPrefixLength]
	}
	return key
}

// ValidateAPIKey checks if a provided key matches the stored hash
func ValidateAPIKey(providedKey, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(providedKey)) == nil
}

// HashPassword bcrypt-hashes an account password.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ExtractBearerToken extracts the token from an Authorization header of the
// form "Bearer <token>".
func ExtractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header is empty")
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("authorization header must start with 'Bearer '")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", errors.New("token is empty after Bearer prefix")
	}
	return token, nil
}
