// Package oauth implements the authorization server that lets third-party
// tools act on a LaunchPal account: the authorization code grant with
// mandatory S256 PKCE, refresh tokens, server metadata and client
// registration. HTTP binding lives in internal/api/oauth.
package oauth

import (
	"errors"
	"net/http"
)

// Protocol errors. Their text is the RFC 6749 error code.
var (
	ErrInvalidRequest          = errors.New("invalid_request")
	ErrInvalidClient           = errors.New("invalid_client")
	ErrInvalidGrant            = errors.New("invalid_grant")
	ErrUnauthorizedClient      = errors.New("unauthorized_client")
	ErrUnsupportedGrantType    = errors.New("unsupported_grant_type")
	ErrUnsupportedResponseType = errors.New("unsupported_response_type")
	ErrInvalidScope            = errors.New("invalid_scope")
	ErrAccessDenied            = errors.New("access_denied")
)

var protocolErrors = []error{
	ErrInvalidRequest,
	ErrInvalidClient,
	ErrInvalidGrant,
	ErrUnauthorizedClient,
	ErrUnsupportedGrantType,
	ErrUnsupportedResponseType,
	ErrInvalidScope,
	ErrAccessDenied,
}

// ErrorCode returns the protocol error code err wraps, or "server_error".
func ErrorCode(err error) string {
	for _, pe := range protocolErrors {
		if errors.Is(err, pe) {
			return pe.Error()
		}
	}
	return "server_error"
}

// StatusCode returns the HTTP status for a token endpoint error.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrInvalidClient):
		return http.StatusUnauthorized
	case ErrorCode(err) == "server_error":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
