// Package client calls the LaunchPal REST API on behalf of the MCP tool server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// User-facing messages for statuses the tool server does not pass through.
const (
	MsgAuthFailed  = "Authentication failed. Please check your API key."
	MsgRateLimited = "Rate limit exceeded. Please upgrade your plan or wait."
)

// APIError is a non-2xx reply from the API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client is a LaunchPal API client. The bearer token starts as the configured
// API key and is replaced after a successful Login.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client for baseURL with a fixed per-request timeout.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		token:      apiKey,
	}
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Do sends a JSON request and decodes the reply into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	slog.Debug("api call", "method", method, "path", path, "status", resp.StatusCode)

	if resp.StatusCode >= 300 {
		return toAPIError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func toAPIError(status int, body []byte) *APIError {
	switch status {
	case http.StatusUnauthorized:
		return &APIError{Status: status, Message: MsgAuthFailed}
	case http.StatusTooManyRequests:
		return &APIError{Status: status, Message: MsgRateLimited}
	}
	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		return &APIError{Status: status, Message: payload.Error}
	}
	return &APIError{Status: status, Message: fmt.Sprintf("request failed with status %d", status)}
}
