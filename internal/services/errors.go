// Package services implements LaunchPal's business rules on top of the
// repositories and platform adapters: usage metering, credential storage,
// the product and launch lifecycle, billing and accounts. Handlers, the MCP
// proxy and background jobs all go through this package.
package services

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrPlatformNotConnected = errors.New("platform not connected")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrProductHasLaunches   = errors.New("cannot delete product with launches")
	ErrInvalidTransition    = errors.New("invalid launch status transition")
	ErrValidation           = errors.New("validation failed")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrConflict             = errors.New("already exists")
)
