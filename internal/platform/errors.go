package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedPlatform is returned for platform ids without an adapter.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	// ErrPlatformAPI marks a failed call to a platform's API.
	ErrPlatformAPI = errors.New("platform API error")
	// ErrInvalidCredentials is returned when a credential blob lacks required keys.
	ErrInvalidCredentials = errors.New("invalid platform credentials")
)

// RemoteError carries the status and message of a failed platform call.
// StatusCode is 0 when no response was received.
type RemoteError struct {
	Platform   string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Platform, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match both ErrPlatformAPI and the underlying cause.
func (e *RemoteError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrPlatformAPI, e.Err}
	}
	return []error{ErrPlatformAPI}
}

// NewRemoteError builds a RemoteError.
func NewRemoteError(platform string, status int, message string, err error) *RemoteError {
	return &RemoteError{Platform: platform, StatusCode: status, Message: message, Err: err}
}
