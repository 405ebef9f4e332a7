// Package crypto seals platform credential blobs at rest with AES-256-GCM.
//
// Credentials connected by a user (Product Hunt client secrets, Reddit
// passwords, access tokens) are stored in platform_credentials.credentials
// only in sealed form. The key comes from ENCRYPTION_KEY.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrKeyLengthInvalid is returned when a master key is not exactly 32 bytes.
	ErrKeyLengthInvalid = errors.New("crypto: key must be exactly 32 bytes for AES-256")
	// ErrCiphertextCorrupted is returned when the ciphertext is not valid base64 or is shorter than a nonce.
	ErrCiphertextCorrupted = errors.New("crypto: ciphertext is corrupted or tampered")
	// ErrDecryptionFailed is returned when GCM authentication fails (tampering or wrong key).
	ErrDecryptionFailed = errors.New("crypto: decryption operation failed")
	// ErrSaltTooShort is returned when a PBKDF2 salt is under 16 bytes.
	ErrSaltTooShort = errors.New("crypto: salt must be at least 16 bytes")
	// ErrNoKey is returned by FromKeyMaterial when ENCRYPTION_KEY is empty.
	ErrNoKey = errors.New("crypto: ENCRYPTION_KEY is not set")
)

// passphraseSalt is used when ENCRYPTION_KEY is a passphrase rather than raw key bytes.
var passphraseSalt = []byte("launchpal.platform-credentials.v1")

const passphraseIterations = 210000

// TokenCipher encrypts and decrypts credential blobs.
type TokenCipher struct {
	masterKey []byte
}

// NewTokenCipher creates a cipher with a 32-byte master key.
func NewTokenCipher(masterKey []byte) (*TokenCipher, error) {
	if len(masterKey) != 32 {
		return nil, ErrKeyLengthInvalid
	}
	keyCopy := make([]byte, 32)
	copy(keyCopy, masterKey)
	return &TokenCipher{masterKey: keyCopy}, nil
}

// DeriveTokenCipher derives the key from a passphrase with PBKDF2-SHA256.
func DeriveTokenCipher(passphrase string, salt []byte, iterations int) (*TokenCipher, error) {
	if len(salt) < 16 {
		return nil, ErrSaltTooShort
	}
	if iterations < 10000 {
		iterations = 100000
	}
	return NewTokenCipher(pbkdf2.Key([]byte(passphrase), salt, iterations, 32, sha256.New))
}

// FromKeyMaterial builds a cipher from the ENCRYPTION_KEY value. It accepts a
// 64-char hex key, a base64 encoding of 32 bytes, or exactly 32 raw bytes; any
// other value is treated as a passphrase and stretched with PBKDF2.
func FromKeyMaterial(material string) (*TokenCipher, error) {
	if material == "" {
		return nil, ErrNoKey
	}
	if len(material) == 64 {
		if key, err := hex.DecodeString(material); err == nil {
			return NewTokenCipher(key)
		}
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if key, err := enc.DecodeString(material); err == nil && len(key) == 32 {
			return NewTokenCipher(key)
		}
	}
	if len(material) == 32 {
		return NewTokenCipher([]byte(material))
	}
	return DeriveTokenCipher(material, passphraseSalt, passphraseIterations)
}

// Seal encrypts plaintext and returns base64url(nonce || ciphertext).
func (tc *TokenCipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := tc.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (tc *TokenCipher) Open(encodedCiphertext string) (string, error) {
	if encodedCiphertext == "" {
		return "", nil
	}

	ciphertext, err := base64.URLEncoding.DecodeString(encodedCiphertext)
	if err != nil {
		return "", ErrCiphertextCorrupted
	}

	aead, err := tc.aead()
	if err != nil {
		return "", err
	}

	nonceLen := aead.NonceSize()
	if len(ciphertext) < nonceLen {
		return "", ErrCiphertextCorrupted
	}

	plaintext, err := aead.Open(nil, ciphertext[:nonceLen], ciphertext[nonceLen:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// SealCredentials JSON-encodes a credential map and seals it.
func (tc *TokenCipher) SealCredentials(creds map[string]string) (string, error) {
	if creds == nil {
		creds = map[string]string{}
	}
	raw, err := json.Marshal(creds)
	if err != nil {
		return "", fmt.Errorf("crypto: encode credentials: %w", err)
	}
	return tc.Seal(string(raw))
}

// OpenCredentials reverses SealCredentials. An empty blob yields an empty map.
func (tc *TokenCipher) OpenCredentials(sealed string) (map[string]string, error) {
	plain, err := tc.Open(sealed)
	if err != nil {
		return nil, err
	}
	creds := map[string]string{}
	if plain == "" {
		return creds, nil
	}
	if err := json.Unmarshal([]byte(plain), &creds); err != nil {
		return nil, ErrCiphertextCorrupted
	}
	return creds, nil
}

func (tc *TokenCipher) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(tc.masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// GenerateKey returns 32 random bytes suitable for ENCRYPTION_KEY.
func GenerateKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
