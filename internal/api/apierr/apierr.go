// Package apierr maps service errors onto HTTP responses. Every handler
// reports failures through Respond so the same error always produces the same
// status code and a {"error": "..."} body.
package apierr

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/launchpal/launchpal/internal/media"
	"github.com/launchpal/launchpal/internal/oauth"
	"github.com/launchpal/launchpal/internal/platform"
	"github.com/launchpal/launchpal/internal/services"
)

// Status returns the HTTP status code for err.
func Status(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound), errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrPlatformNotConnected),
		errors.Is(err, services.ErrProductHasLaunches),
		errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, platform.ErrUnsupportedPlatform),
		errors.Is(err, platform.ErrInvalidCredentials),
		errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrUnknownPlan),
		errors.Is(err, media.ErrRejected):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, platform.ErrPlatformAPI):
		return http.StatusBadGateway
	case errors.Is(err, oauth.ErrInvalidClient):
		return http.StatusUnauthorized
	case oauth.ErrorCode(err) != "server_error":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text shown to the client. Internal errors are never
// echoed; everything else is the error chain minus Go's "prefix: " noise
// from the outermost wrappers.
func Message(err error) string {
	status := Status(err)
	if status == http.StatusInternalServerError {
		return "Internal server error"
	}
	if code := oauth.ErrorCode(err); code != "server_error" {
		return code
	}
	return userMessage(err)
}

// userMessage drops a sentinel's own text when it prefixes a more specific
// message, so "validation failed: name is required" reads "name is required".
func userMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{
		services.ErrValidation,
		services.ErrNotFound,
		services.ErrQuotaExceeded,
		services.ErrPlatformNotConnected,
		services.ErrConflict,
		platform.ErrUnsupportedPlatform,
		platform.ErrInvalidCredentials,
		media.ErrRejected,
	} {
		prefix := sentinel.Error() + ": "
		if i := strings.Index(msg, prefix); i >= 0 {
			return msg[i+len(prefix):]
		}
	}
	return msg
}

// Respond writes err as a JSON error response and aborts the chain.
func Respond(c *gin.Context, err error) {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": Message(err)})
}

// BadRequest responds 400 with message.
func BadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}
