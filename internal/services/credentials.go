package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/launchpal/launchpal/internal/crypto"
	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/platform"
)

// PlatformStatus is a catalog entry annotated for one user.
type PlatformStatus struct {
	platform.Info
	Connected bool `json:"connected"`
	// Available is false for catalog platforms without an adapter yet.
	Available bool `json:"available"`
}

// CredentialService connects users to launch platforms and builds adapters
// from their stored credentials.
type CredentialService struct {
	creds    CredentialStore
	users    UserStore
	meter    *Meter
	cipher   *crypto.TokenCipher
	registry *platform.Registry
}

// NewCredentialService creates a new CredentialService
func NewCredentialService(creds CredentialStore, users UserStore, meter *Meter, cipher *crypto.TokenCipher, registry *platform.Registry) *CredentialService {
	return &CredentialService{creds: creds, users: users, meter: meter, cipher: cipher, registry: registry}
}

// Connect stores credentials for a platform, replacing and reactivating any
// previous ones. Credentials are not checked against the platform.
func (s *CredentialService) Connect(ctx context.Context, userID, platformID string, credentials map[string]string) (string, error) {
	if err := s.meter.Track(ctx, userID, EndpointPlatformsConnect); err != nil {
		return "", err
	}
	if !platform.IsKnown(platformID) {
		return "", fmt.Errorf("%w: unknown platform: %s", platform.ErrUnsupportedPlatform, platformID)
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return "", fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	others, err := s.creds.CountActiveExcept(ctx, userID, platformID)
	if err != nil {
		return "", fmt.Errorf("count platforms: %w", err)
	}
	if others >= user.PlatformLimit {
		return "", fmt.Errorf("%w: platform limit reached (%d)", ErrQuotaExceeded, user.PlatformLimit)
	}

	if credentials == nil {
		credentials = map[string]string{}
	}
	sealed, err := s.cipher.SealCredentials(credentials)
	if err != nil {
		return "", fmt.Errorf("seal credentials: %w", err)
	}
	cred := &models.PlatformCredential{UserID: userID, Platform: platformID, Credentials: sealed}
	if err := s.creds.Upsert(ctx, cred); err != nil {
		return "", fmt.Errorf("store credentials: %w", err)
	}

	slog.Info("platform connected", "user_id", userID, "platform", platformID)
	return "Successfully connected to " + platformID, nil
}

// Disconnect deactivates the user's credentials for a platform. Disconnecting
// a platform that was never connected is not an error.
func (s *CredentialService) Disconnect(ctx context.Context, userID, platformID string) error {
	if err := s.creds.Deactivate(ctx, userID, platformID); err != nil {
		return fmt.Errorf("disconnect %s: %w", platformID, err)
	}
	slog.Info("platform disconnected", "user_id", userID, "platform", platformID)
	return nil
}

// ActiveAdapter builds an adapter from the user's active credentials.
func (s *CredentialService) ActiveAdapter(ctx context.Context, userID, platformID string) (platform.Adapter, error) {
	cred, err := s.creds.Get(ctx, userID, platformID)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if cred == nil || !cred.IsActive {
		return nil, fmt.Errorf("%w: Platform %s not connected", ErrPlatformNotConnected, platformID)
	}
	blob, err := s.cipher.OpenCredentials(cred.Credentials)
	if err != nil {
		return nil, fmt.Errorf("open credentials: %w", err)
	}
	return s.registry.Build(platformID, platform.Credentials(blob))
}

// List returns the catalog with the user's connection state.
func (s *CredentialService) List(ctx context.Context, userID string) ([]PlatformStatus, error) {
	rows, err := s.creds.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	active := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.IsActive {
			active[r.Platform] = true
		}
	}

	out := make([]PlatformStatus, 0, len(platform.Catalog))
	for _, info := range platform.Catalog {
		out = append(out, PlatformStatus{
			Info:      info,
			Connected: active[info.ID],
			Available: s.registry.Has(info.ID),
		})
	}
	return out, nil
}
