// Package localauth keeps the MCP server's Product Hunt login on the local
// machine: a token file and the browser-based OAuth flow that fills it.
package localauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Token is the persisted login. Timestamps are Unix milliseconds.
type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	CreatedAt    int64  `json:"created_at"`
	ExpiresAt    *int64 `json:"expires_at,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Expired reports whether the token has an expiry in the past.
func (t *Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && *t.ExpiresAt < now.UnixMilli()
}

// Info summarises the stored login without exposing the token.
type Info struct {
	Authenticated bool
	CreatedAt     time.Time
	ExpiresAt     *time.Time
	Scopes        string
}

// Store reads and writes the token file. Every read goes to disk so a login
// completed by another process is picked up.
type Store struct {
	path         string
	now          func() time.Time
	pollInterval time.Duration
}

// NewStore creates a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now, pollInterval: time.Second}
}

// Path returns the token file location.
func (s *Store) Path() string { return s.path }

// Load returns the stored token, or nil when there is none. A corrupt file
// counts as no token.
func (s *Store) Load() (*Token, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil || t.AccessToken == "" {
		return nil, nil
	}
	return &t, nil
}

// Save writes t with owner-only permissions, creating the directory.
func (s *Store) Save(t *Token) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Clear removes the token file. A missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// AccessToken returns the stored access token when it exists and has not
// expired.
func (s *Store) AccessToken() (string, bool) {
	t, err := s.Load()
	if err != nil || t == nil || t.Expired(s.now()) {
		return "", false
	}
	return t.AccessToken, true
}

// Info describes the stored login. An expired token reports unauthenticated.
func (s *Store) Info() Info {
	t, err := s.Load()
	if err != nil || t == nil || t.Expired(s.now()) {
		return Info{}
	}
	info := Info{
		Authenticated: true,
		CreatedAt:     time.UnixMilli(t.CreatedAt),
		Scopes:        t.Scope,
	}
	if t.ExpiresAt != nil {
		exp := time.UnixMilli(*t.ExpiresAt)
		info.ExpiresAt = &exp
	}
	return info
}

// WaitForToken polls until a valid token appears, timeout elapses or ctx is
// done. It returns "" on timeout.
func (s *Store) WaitForToken(ctx context.Context, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		if tok, ok := s.AccessToken(); ok {
			return tok, nil
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", nil
			}
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}
