// Package auth - scopes.go defines the read/write/admin scopes carried by API
// keys, session tokens and OAuth access tokens.
package auth

import (
	"fmt"
	"strings"
)

// Scope represents a permission/scope type
type Scope string

const (
	ScopeRead  Scope = "read"
	ScopeWrite Scope = "write"
	// ScopeAdmin grants every scope.
	ScopeAdmin Scope = "admin"
)

// AllScopes returns all valid scopes
func AllScopes() []Scope {
	return []Scope{ScopeRead, ScopeWrite, ScopeAdmin}
}

// ValidateScopes checks if all provided scopes are valid
func ValidateScopes(scopes []string) error {
	for _, s := range scopes {
		switch Scope(s) {
		case ScopeRead, ScopeWrite, ScopeAdmin:
		default:
			return fmt.Errorf("invalid scope: %s", s)
		}
	}
	return nil
}

// HasScope reports whether userScopes satisfy required. admin satisfies
// everything and write implies read.
func HasScope(userScopes []string, required Scope) bool {
	for _, s := range userScopes {
		switch {
		case s == string(required), s == string(ScopeAdmin):
			return true
		case required == ScopeRead && s == string(ScopeWrite):
			return true
		}
	}
	return false
}

// DefaultScopes returns the scopes granted to a user's own keys and sessions.
func DefaultScopes() []string {
	return []string{string(ScopeRead), string(ScopeWrite)}
}

// ParseScopeParam splits a space-delimited OAuth scope parameter. An empty
// parameter yields the default scopes.
func ParseScopeParam(param string) ([]string, error) {
	fields := strings.Fields(param)
	if len(fields) == 0 {
		return DefaultScopes(), nil
	}
	if err := ValidateScopes(fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// IntersectScopes returns the requested scopes that allowed also contains.
func IntersectScopes(requested, allowed []string) []string {
	out := make([]string, 0, len(requested))
	for _, r := range requested {
		for _, a := range allowed {
			if r == a {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
