package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/launchpal/launchpal/internal/auth"
	"github.com/launchpal/launchpal/internal/auth/oidc"
	"github.com/launchpal/launchpal/internal/db/models"
)

const minPasswordLength = 8

// AccountUser is the user summary returned on sign-in. APIKey is only set
// when a key was created by the call.
type AccountUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Subscription string `json:"subscription"`
	APIKey       string `json:"apiKey,omitempty"`
}

// Session is a signed session token and its user.
type Session struct {
	Token string      `json:"token"`
	User  AccountUser `json:"user"`
}

// ProfileUsage is the current month's usage on a profile.
type ProfileUsage struct {
	Requests  int     `json:"requests"`
	Cost      float64 `json:"cost"`
	Remaining int     `json:"remaining"`
}

// Profile is the authenticated user's account view.
type Profile struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	Name         string            `json:"name"`
	APIKeyPrefix string            `json:"apiKeyPrefix,omitempty"`
	Subscription string            `json:"subscription"`
	Limits       models.PlanLimits `json:"limits"`
	Usage        ProfileUsage      `json:"usage"`
}

// AccountService handles registration, sign-in and API keys.
type AccountService struct {
	users     UserStore
	keys      APIKeyStore
	meter     *Meter
	keyPrefix string
	tokenTTL  time.Duration
}

// NewAccountService creates a new AccountService. keyPrefix is the API key
// prefix ("lp_"); tokenTTL is the session lifetime.
func NewAccountService(users UserStore, keys APIKeyStore, meter *Meter, keyPrefix string, tokenTTL time.Duration) *AccountService {
	return &AccountService{users: users, keys: keys, meter: meter, keyPrefix: keyPrefix, tokenTTL: tokenTTL}
}

// Register creates a free-plan account with a first API key.
func (s *AccountService) Register(ctx context.Context, email, password, name string) (*Session, error) {
	email = strings.TrimSpace(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLength)
	}
	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: an account with this email already exists", ErrConflict)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = email
	}
	user := &models.User{Email: email, Name: name, PasswordHash: &hash}
	user.ApplyPlan(models.PlanFree)
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	key, err := s.issueAPIKey(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	sess, err := s.session(user)
	if err != nil {
		return nil, err
	}
	sess.User.APIKey = key
	slog.Info("account registered", "user_id", user.ID)
	return sess, nil
}

// Login verifies a password and returns a session.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.VerifyPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.session(user)
}

// VerifyPassword returns the user whose credentials match. Unknown emails,
// SSO-only accounts and wrong passwords all fail with ErrInvalidCredentials.
func (s *AccountService) VerifyPassword(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil || user.PasswordHash == nil || !auth.CheckPassword(*user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to record login", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// GetUserByID returns the account or nil if it does not exist.
func (s *AccountService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	return s.users.GetUserByID(ctx, userID)
}

// LoginOIDC resolves an SSO identity to an account, creating one with an API
// key on first sign-in.
func (s *AccountService) LoginOIDC(ctx context.Context, id *oidc.Identity) (*Session, error) {
	user, err := s.users.GetOrCreateUserByOIDC(ctx, id.Subject, id.Email, id.Name)
	if err != nil {
		return nil, fmt.Errorf("resolve sso user: %w", err)
	}
	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		slog.Warn("failed to record login", "user_id", user.ID, "error", err)
	}

	sess, err := s.session(user)
	if err != nil {
		return nil, err
	}
	keys, err := s.keys.ListAPIKeysByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	if len(keys) == 0 {
		key, err := s.issueAPIKey(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		sess.User.APIKey = key
	}
	return sess, nil
}

// Profile returns the account with this month's usage.
func (s *AccountService) Profile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	stats, err := s.meter.Stats(ctx, userID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}

	p := &Profile{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		Subscription: user.Subscription,
		Limits:       user.Limits(),
		Usage: ProfileUsage{
			Requests:  stats.TotalRequests,
			Cost:      stats.TotalCost,
			Remaining: stats.Remaining,
		},
	}
	keys, err := s.keys.ListAPIKeysByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	if len(keys) > 0 {
		p.APIKeyPrefix = keys[0].KeyPrefix
	}
	return p, nil
}

// RegenerateAPIKey revokes every existing key and returns a new one.
func (s *AccountService) RegenerateAPIKey(ctx context.Context, userID string) (string, error) {
	if err := s.keys.DeleteAPIKeysByUser(ctx, userID); err != nil {
		return "", fmt.Errorf("revoke api keys: %w", err)
	}
	key, err := s.issueAPIKey(ctx, userID)
	if err != nil {
		return "", err
	}
	slog.Info("api key regenerated", "user_id", userID)
	return key, nil
}

func (s *AccountService) issueAPIKey(ctx context.Context, userID string) (string, error) {
	key, hash, prefix, err := auth.GenerateAPIKey(s.keyPrefix)
	if err != nil {
		return "", err
	}
	err = s.keys.CreateAPIKey(ctx, &models.APIKey{
		UserID:    userID,
		Name:      "default",
		KeyHash:   hash,
		KeyPrefix: prefix,
		Scopes:    auth.DefaultScopes(),
	})
	if err != nil {
		return "", fmt.Errorf("store api key: %w", err)
	}
	return key, nil
}

func (s *AccountService) session(user *models.User) (*Session, error) {
	token, err := auth.GenerateJWT(user.ID, user.Email, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Session{
		Token: token,
		User: AccountUser{
			ID:           user.ID,
			Email:        user.Email,
			Name:         user.Name,
			Subscription: user.Subscription,
		},
	}, nil
}
