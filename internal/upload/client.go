package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Error is a failed upload attempt. Server-side and throttling failures are
// retryable; client-side rejections (bad token, malformed path) are terminal.
type Error struct {
	StatusCode int
	Path       string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("uploading %q: backend returned %d", e.Path, e.StatusCode)
}

// Retryable reports whether the failure is worth another attempt.
func (e *Error) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client uploads batch files to the backend over HTTP. A file lands at
// PUT <base-url>/<path> with a bearer token; any 2xx response confirms
// durable delivery.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *slog.Logger
}

// NewClient creates an upload client for the given backend base URL.
func NewClient(baseURL, token string, logger *slog.Logger) (*Client, error) {
	u, err := url.ParseRequestURI(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("backend URL %q must be a valid http or https URL", baseURL)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     logger,
	}, nil
}

// Upload delivers payload to path, retrying transient failures with backoff.
// A nil return confirms the backend accepted the file; callers may only
// advance checkpoints after that confirmation.
func (c *Client) Upload(ctx context.Context, path string, payload []byte) error {
	err := Retry(ctx, defaultMaxAttempts, func() error {
		return c.put(ctx, path, payload)
	})
	if err != nil {
		return fmt.Errorf("uploading %q: %w", path, err)
	}
	c.log.Debug("upload confirmed", "path", path, "bytes", len(payload))
	return nil
}

// put performs a single PUT attempt.
func (c *Client) put(ctx context.Context, path string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/"+strings.TrimLeft(path, "/"), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending upload request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{StatusCode: resp.StatusCode, Path: path}
	}
	return nil
}

// Ping checks that the backend is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("building ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pinging backend: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("backend rejected token (status %d)", resp.StatusCode)
	}
	return nil
}
