package auth

import (
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// resetJWTSecret resets the package-level sync.Once so tests can set a fresh secret.
func resetJWTSecret() {
	jwtSecret = ""
	jwtSecretOnce = sync.Once{}
	jwtSecretErr = nil
}

func TestMain(m *testing.M) {
	os.Setenv(JWTSecretEnv, "test-jwt-secret-that-is-32-chars-!")
	os.Exit(m.Run())
}

func TestValidateJWTSecret(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		devMode string
		wantErr bool
	}{
		{"configured", "launchpal-session-secret-32-bytes", "", false},
		{"missing in release", "", "", true},
		{"missing in dev", "", "true", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetJWTSecret()
			t.Setenv(JWTSecretEnv, tt.secret)
			t.Setenv("DEV_MODE", tt.devMode)
			t.Setenv("GIN_MODE", "release")

			err := ValidateJWTSecret()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateJWTSecret() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && GetJWTSecret() == "" {
				t.Error("secret should be set once validated")
			}
		})
	}
	resetJWTSecret()
}

func TestGenerateAndValidateJWT(t *testing.T) {
	resetJWTSecret()

	token, err := GenerateJWT("user-1", "alice@example.com", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT() error = %v", err)
	}
	claims, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT() error = %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "alice@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.TokenType != TokenTypeSession || !slices.Equal(claims.Scopes, []string{"read", "write"}) {
		t.Errorf("session token should carry read+write: %+v", claims)
	}
}

func TestGenerateAccessToken(t *testing.T) {
	resetJWTSecret()

	token, err := GenerateAccessToken("https://launch.getfoundry.app", "user-1", "a@example.com", "client-1", []string{"read"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	claims, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT() error = %v", err)
	}
	if claims.ClientID != "client-1" || claims.TokenType != TokenTypeAccess || claims.Issuer != "https://launch.getfoundry.app" {
		t.Errorf("claims = %+v", claims)
	}
	if HasScope(claims.Scopes, ScopeWrite) {
		t.Error("read-only access token must not satisfy write")
	}
}

func TestValidateJWT_Rejects(t *testing.T) {
	resetJWTSecret()

	expired, _ := GenerateJWT("user-1", "a@example.com", -time.Minute)
	foreign, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: "x"}).SignedString([]byte("some-other-secret-of-32-bytes!!!"))

	tests := map[string]string{
		"expired":      expired,
		"wrong secret": foreign,
		"garbage":      "not.a.jwt",
		"empty":        "",
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ValidateJWT(tok); err == nil {
				t.Error("ValidateJWT() expected error, got nil")
			}
		})
	}
}
