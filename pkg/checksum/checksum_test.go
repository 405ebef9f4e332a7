package checksum

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const helloSHA = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestBytes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		// echo -n "hello" | sha256sum
		{"hello", "hello", helloSHA},
		{"empty", "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bytes([]byte(tt.input)); got != tt.want {
				t.Errorf("Bytes() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCopy(t *testing.T) {
	var dst bytes.Buffer
	n, sum, err := Copy(&dst, strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if n != 5 || sum != helloSHA || dst.String() != "hello" {
		t.Errorf("Copy() = %d, %s, dst %q", n, sum, dst.String())
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestCopy_ReadError(t *testing.T) {
	if _, _, err := Copy(&bytes.Buffer{}, failingReader{}); err == nil {
		t.Error("expected error")
	}
}

func TestHasher(t *testing.T) {
	h := NewHasher()
	_, _ = h.Write([]byte("hel"))
	_, _ = h.Write([]byte("lo"))
	if h.Size() != 5 || h.Hex() != helloSHA {
		t.Errorf("Size() = %d, Hex() = %s", h.Size(), h.Hex())
	}
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		want     bool
	}{
		{"match", helloSHA, true},
		{"mismatch", strings.Repeat("0", 64), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Verify(strings.NewReader("hello"), tt.expected)
			if err != nil || ok != tt.want {
				t.Errorf("Verify() = %v, %v; want %v", ok, err, tt.want)
			}
		})
	}
}
