package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func testKey() []byte {
	return bytes.Repeat([]byte("k"), 32)
}

func TestNewTokenCipher(t *testing.T) {
	if _, err := NewTokenCipher(testKey()); err != nil {
		t.Fatalf("NewTokenCipher() unexpected error: %v", err)
	}

	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := NewTokenCipher(make([]byte, n)); !errors.Is(err, ErrKeyLengthInvalid) {
			t.Errorf("NewTokenCipher(len=%d) error = %v, want ErrKeyLengthInvalid", n, err)
		}
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	tc, _ := NewTokenCipher(testKey())

	sealed, err := tc.Seal("client-secret")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if strings.Contains(sealed, "client-secret") {
		t.Fatal("sealed output contains plaintext")
	}
	got, err := tc.Open(sealed)
	if err != nil || got != "client-secret" {
		t.Fatalf("Open() = %q, %v", got, err)
	}

	again, _ := tc.Seal("client-secret")
	if again == sealed {
		t.Error("two seals of the same plaintext should use different nonces")
	}
}

func TestOpen_Failures(t *testing.T) {
	tc, _ := NewTokenCipher(testKey())
	other, _ := NewTokenCipher(bytes.Repeat([]byte("x"), 32))
	sealed, _ := tc.Seal("secret")

	tests := []struct {
		name    string
		c       *TokenCipher
		input   string
		wantErr error
	}{
		{"not base64", tc, "%%%", ErrCiphertextCorrupted},
		{"too short", tc, base64.URLEncoding.EncodeToString([]byte("abc")), ErrCiphertextCorrupted},
		{"wrong key", other, sealed, ErrDecryptionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.c.Open(tt.input); !errors.Is(err, tt.wantErr) {
				t.Errorf("Open() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCredentialsRoundTrip(t *testing.T) {
	tc, _ := NewTokenCipher(testKey())
	in := map[string]string{"clientId": "abc", "clientSecret": "shh"}

	sealed, err := tc.SealCredentials(in)
	if err != nil {
		t.Fatalf("SealCredentials() error = %v", err)
	}
	out, err := tc.OpenCredentials(sealed)
	if err != nil {
		t.Fatalf("OpenCredentials() error = %v", err)
	}
	if out["clientId"] != "abc" || out["clientSecret"] != "shh" || len(out) != 2 {
		t.Errorf("OpenCredentials() = %v", out)
	}

	empty, err := tc.OpenCredentials("")
	if err != nil || len(empty) != 0 {
		t.Errorf("OpenCredentials(\"\") = %v, %v", empty, err)
	}
}

func TestFromKeyMaterial(t *testing.T) {
	raw := testKey()
	tests := []struct {
		name     string
		material string
		wantErr  error
	}{
		{"hex", hex.EncodeToString(raw), nil},
		{"base64", base64.StdEncoding.EncodeToString(raw), nil},
		{"raw 32 chars", string(raw), nil},
		{"passphrase", "correct horse battery staple", nil},
		{"empty", "", ErrNoKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := FromKeyMaterial(tt.material)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("FromKeyMaterial() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			sealed, _ := tc.Seal("x")
			if got, _ := tc.Open(sealed); got != "x" {
				t.Error("round trip failed")
			}
		})
	}

	// hex and base64 forms of the same key must be interchangeable.
	a, _ := FromKeyMaterial(hex.EncodeToString(raw))
	b, _ := FromKeyMaterial(base64.StdEncoding.EncodeToString(raw))
	sealed, _ := a.Seal("shared")
	if got, err := b.Open(sealed); err != nil || got != "shared" {
		t.Errorf("keys decoded from hex and base64 differ: %v", err)
	}
}

func TestDeriveTokenCipher_ShortSalt(t *testing.T) {
	if _, err := DeriveTokenCipher("pass", []byte("short"), 0); !errors.Is(err, ErrSaltTooShort) {
		t.Errorf("DeriveTokenCipher() error = %v, want ErrSaltTooShort", err)
	}
}
