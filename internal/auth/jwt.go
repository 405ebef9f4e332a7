// Package auth - jwt.go signs and verifies the HS256 bearer tokens used for
// dashboard sessions and OAuth access tokens.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTSecretEnv names the environment variable holding the signing secret.
const JWTSecretEnv = "LAUNCHPAL_JWT_SECRET"

// Token types carried in Claims.TokenType.
const (
	TokenTypeSession = "session"
	TokenTypeAccess  = "access"
)

var (
	jwtSecret     string
	jwtSecretOnce sync.Once
	jwtSecretErr  error
)

// Claims represents the JWT claims structure
type Claims struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	Scopes    []string `json:"scopes,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

func isDevMode() bool {
	devMode := os.Getenv("DEV_MODE")
	return devMode == "true" || devMode == "1" || os.Getenv("GIN_MODE") == "debug"
}

// ValidateJWTSecret loads the signing secret once. Outside dev mode a missing
// secret is fatal; in dev mode a random one is generated so sessions simply
// do not survive restarts.
func ValidateJWTSecret() error {
	jwtSecretOnce.Do(func() {
		secret := os.Getenv(JWTSecretEnv)
		if secret == "" {
			if !isDevMode() {
				jwtSecretErr = fmt.Errorf("%s is required (generate one with: keygen jwt)", JWTSecretEnv)
				return
			}
			buf := make([]byte, 32)
			if _, err := rand.Read(buf); err != nil {
				jwtSecretErr = fmt.Errorf("generate dev jwt secret: %w", err)
				return
			}
			secret = hex.EncodeToString(buf)
			slog.Warn("jwt secret not set, using a random development secret", "env", JWTSecretEnv)
		} else if len(secret) < 32 {
			slog.Warn("jwt secret is shorter than 32 characters", "env", JWTSecretEnv)
		}
		jwtSecret = secret
	})
	return jwtSecretErr
}

// GetJWTSecret returns the validated secret and panics if it is unavailable.
func GetJWTSecret() string {
	if jwtSecret == "" {
		if err := ValidateJWTSecret(); err != nil {
			panic(err)
		}
	}
	return jwtSecret
}

func sign(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(GetJWTSecret()))
}

// GenerateJWT issues a session token for a signed-in user with read and write scopes.
func GenerateJWT(userID, email string, expiresIn time.Duration) (string, error) {
	if expiresIn == 0 {
		expiresIn = 24 * time.Hour
	}
	now := time.Now()
	return sign(&Claims{
		UserID:    userID,
		Email:     email,
		Scopes:    DefaultScopes(),
		TokenType: TokenTypeSession,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "launchpal",
			Subject:   userID,
		},
	})
}

// GenerateAccessToken issues an OAuth access token bound to a client and scopes.
func GenerateAccessToken(issuer, userID, email, clientID string, scopes []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	return sign(&Claims{
		UserID:    userID,
		Email:     email,
		Scopes:    scopes,
		ClientID:  clientID,
		TokenType: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{clientID},
		},
	})
}

// ValidateJWT parses and validates a JWT token
func ValidateJWT(tokenString string) (*Claims, error) {
	secret := GetJWTSecret()

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
