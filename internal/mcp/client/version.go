package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-version"
)

// BackendConstraint is the range of API server versions this client speaks.
const BackendConstraint = ">= 0.1.0, < 1.0.0"

// BackendVersion is the reply to GET /version.
type BackendVersion struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
}

// CheckBackend fetches the server version and reports whether it satisfies
// BackendConstraint. Development builds ("dev" or any unparseable version)
// are accepted.
func (c *Client) CheckBackend(ctx context.Context) (*BackendVersion, bool, error) {
	var out BackendVersion
	if err := c.Do(ctx, http.MethodGet, "/version", nil, nil, &out); err != nil {
		return nil, false, err
	}
	ok, err := Compatible(out.Version)
	if err != nil {
		return &out, false, err
	}
	return &out, ok, nil
}

// Compatible reports whether v satisfies BackendConstraint.
func Compatible(v string) (bool, error) {
	got, err := version.NewVersion(v)
	if err != nil {
		return true, nil
	}
	constraint, err := version.NewConstraint(BackendConstraint)
	if err != nil {
		return false, fmt.Errorf("invalid backend constraint: %w", err)
	}
	return constraint.Check(got), nil
}
