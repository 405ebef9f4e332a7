// Package checksum computes the SHA-256 digests stored alongside media
// objects.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Bytes returns the hex SHA-256 of data.
func Bytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Hasher is an io.Writer that accumulates a SHA-256 digest while counting
// the bytes written.
type Hasher struct {
	h hash.Hash
	n int64
}

// NewHasher creates a new Hasher
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	n, _ := h.h.Write(p)
	h.n += int64(n)
	return n, nil
}

// Hex returns the digest of everything written so far.
func (h *Hasher) Hex() string { return hex.EncodeToString(h.h.Sum(nil)) }

// Size returns the number of bytes written.
func (h *Hasher) Size() int64 { return h.n }

// Copy copies r to w and returns the byte count and digest of what was copied.
func Copy(w io.Writer, r io.Reader) (int64, string, error) {
	h := NewHasher()
	n, err := io.Copy(io.MultiWriter(w, h), r)
	if err != nil {
		return n, "", err
	}
	return n, h.Hex(), nil
}

// Verify reports whether r hashes to expected.
func Verify(r io.Reader, expected string) (bool, error) {
	_, sum, err := Copy(io.Discard, r)
	if err != nil {
		return false, err
	}
	return sum == expected, nil
}
