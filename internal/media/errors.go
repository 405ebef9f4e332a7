package media

import "errors"

var (
	// ErrRejected wraps every upload refused by the policy.
	ErrRejected = errors.New("media rejected")
	// ErrNotFound is returned when an object does not exist.
	ErrNotFound = errors.New("media not found")
	// ErrNotSignable is returned by URL on backends without signed URLs.
	ErrNotSignable = errors.New("backend does not issue signed URLs")
)
