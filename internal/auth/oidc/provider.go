// Package oidc implements optional OpenID Connect sign-in for the LaunchPal
// dashboard. A successful callback resolves to an Identity which the account
// service maps onto a local user and a session JWT.
package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/launchpal/launchpal/internal/config"
	"golang.org/x/oauth2"
)

// Identity is the subset of ID token claims LaunchPal uses.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// Provider wraps an OIDC issuer configured for the authorization code flow.
type Provider struct {
	verifier *oidc.IDTokenVerifier
	config   *oauth2.Config
}

// NewProvider runs issuer discovery and builds the provider.
func NewProvider(ctx context.Context, cfg *config.OIDCConfig) (*Provider, error) {
	if !cfg.Enabled {
		return nil, errors.New("OIDC is not enabled")
	}
	if cfg.IssuerURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("OIDC issuer_url, client_id and client_secret are required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, "email", "profile"}
	}

	return newProvider(
		provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		&oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       scopes,
		},
	), nil
}

func newProvider(verifier *oidc.IDTokenVerifier, cfg *oauth2.Config) *Provider {
	return &Provider{verifier: verifier, config: cfg}
}

// AuthURL returns the issuer's authorization URL for state.
func (p *Provider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Authenticate exchanges the callback code, verifies the returned ID token and
// extracts the identity. Email is required; name falls back to email.
func (p *Provider) Authenticate(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code for token: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse ID token claims: %w", err)
	}
	if claims.Email == "" {
		return nil, errors.New("ID token missing 'email' claim")
	}
	if claims.Name == "" {
		claims.Name = claims.Email
	}

	return &Identity{Subject: idToken.Subject, Email: claims.Email, Name: claims.Name}, nil
}
