// Package api implements the HTTP wire protocol of the artifact-assembly
// service: capability discovery, assemble calls, and chunk batch uploads.
//
// The package retries transient failures (network errors, 429, 5xx) with
// exponential backoff and jitter; other HTTP errors are permanent.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	puberrors "github.com/symkit/chunkpub/errors"
	"github.com/symkit/chunkpub/pubtypes"
)

// CapabilitiesResponse is the raw JSON body of the capability endpoint.
// Pointer fields distinguish absent from zero; the negotiate package turns
// this into a validated pubtypes.ServerCapabilities.
type CapabilitiesResponse struct {
	URL              *string  `json:"url"`
	ChunkSize        *int64   `json:"chunkSize"`
	ChunksPerRequest *int     `json:"chunksPerRequest"`
	MaxRequestSize   *int64   `json:"maxRequestSize"`
	Concurrency      *int     `json:"concurrency"`
	HashAlgorithm    *string  `json:"hashAlgorithm"`
	Accept           []string `json:"accept"`
	Compression      []string `json:"compression"`
}

// AssembleRequestEntry is one artifact's entry in an assemble request body,
// keyed by its whole-content checksum.
type AssembleRequestEntry struct {
	Name    string   `json:"name"`
	DebugID string   `json:"debug_id"`
	Chunks  []string `json:"chunks"`
}

// Assembly states reported by the server.
const (
	StateOK       = "ok"
	StateCreated  = "created"
	StateNotFound = "not_found"
	StateError    = "error"
)

// AssembleResponseEntry is one artifact's entry in an assemble response body.
type AssembleResponseEntry struct {
	State         string   `json:"state"`
	MissingChunks []string `json:"missingChunks"`
	Detail        string   `json:"detail,omitempty"`
}

// API is the wire surface consumed by the negotiate, assemble, and uploader
// packages. It exists as an interface so tests can script server behavior.
type API interface {
	// Capabilities fetches the server's upload limits.
	Capabilities(ctx context.Context) (*CapabilitiesResponse, error)

	// Assemble submits one assemble round for the given endpoint path and
	// returns the per-checksum response entries.
	Assemble(ctx context.Context, path string, req map[string]AssembleRequestEntry) (map[string]AssembleResponseEntry, error)

	// UploadChunks POSTs one encoded multipart batch to the given absolute
	// URL. Only the status code is meaningful; the response body is
	// discarded.
	UploadChunks(ctx context.Context, url, contentType string, body []byte) error
}

// Config holds transport configuration.
type Config struct {
	// BaseURL is the API root without a trailing slash.
	BaseURL string

	// Organization is the organization slug used in endpoint paths.
	Organization string

	// Credentials supplies the Authorization header.
	Credentials pubtypes.CredentialProvider

	// HTTPClient is the underlying transport.
	HTTPClient *http.Client

	// UserAgent is sent on every request.
	UserAgent string

	// MaxAttempts bounds attempts per call, retries included.
	MaxAttempts int

	// RetryInitialInterval is the first backoff delay.
	RetryInitialInterval time.Duration

	// RetryMaxInterval caps the backoff delay.
	RetryMaxInterval time.Duration

	// Logger receives retry events.
	Logger *zap.Logger
}

// Client is the HTTP implementation of API.
type Client struct {
	cfg Config
}

// NewClient creates a transport client, filling config defaults.
func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 500 * time.Millisecond
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "chunkpub"
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{cfg: cfg}
}

// CapabilitiesPath returns the capability endpoint path for the configured
// organization.
func (c *Client) CapabilitiesPath() string {
	return fmt.Sprintf("/organizations/%s/chunk-upload/", c.cfg.Organization)
}

// Capabilities implements API.
func (c *Client) Capabilities(ctx context.Context) (*CapabilitiesResponse, error) {
	var caps CapabilitiesResponse
	err := c.retry(ctx, "capabilities", func() error {
		req, err := c.newRequest(ctx, http.MethodGet, c.cfg.BaseURL+c.CapabilitiesPath(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		return c.doJSON(req, &caps)
	})
	if err != nil {
		return nil, puberrors.NewError("capabilities", err)
	}
	return &caps, nil
}

// Assemble implements API.
func (c *Client) Assemble(
	ctx context.Context,
	path string,
	entries map[string]AssembleRequestEntry,
) (map[string]AssembleResponseEntry, error) {
	body, err := json.Marshal(entries)
	if err != nil {
		return nil, puberrors.NewError("assemble", err)
	}

	var resp map[string]AssembleResponseEntry
	err = c.retry(ctx, "assemble", func() error {
		req, err := c.newRequest(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		return c.doJSON(req, &resp)
	})
	if err != nil {
		return nil, puberrors.NewError("assemble", err)
	}
	return resp, nil
}

// UploadChunks implements API.
func (c *Client) UploadChunks(ctx context.Context, url, contentType string, body []byte) error {
	err := c.retry(ctx, "uploadChunks", func() error {
		req, err := c.newRequest(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		// The chunk endpoint returns an empty or "[]" body; drain and
		// discard so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return statusError(resp.StatusCode)
	})
	if err != nil {
		return puberrors.NewError("uploadChunks", err)
	}
	return nil
}

// newRequest builds an authenticated request.
func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	auth, err := c.cfg.Credentials.AuthHeader(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	return req, nil
}

// doJSON executes the request and decodes a JSON response into out.
// A body that fails to decode is a permanent error: the server is not
// speaking the protocol, so retrying cannot help.
func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("malformed response body: %w", err))
	}
	return nil
}

// retry runs op with exponential backoff and jitter, up to the configured
// attempt budget. Errors wrapped in backoff.Permanent stop immediately.
func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInitialInterval
	bo.MaxInterval = c.cfg.RetryMaxInterval
	bo.MaxElapsedTime = 0

	wrapped := func() error {
		attempt++
		err := fn()
		if err != nil && attempt > 1 {
			c.cfg.Logger.Debug("retrying request",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	}
	return backoff.Retry(wrapped, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(c.cfg.MaxAttempts-1)), ctx))
}

// HTTPStatusError reports a non-success HTTP status.
type HTTPStatusError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// statusError maps a status code to nil (2xx), a retryable error (429, 5xx),
// or a permanent error (everything else).
func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return &HTTPStatusError{StatusCode: code}
	default:
		return backoff.Permanent(&HTTPStatusError{StatusCode: code})
	}
}
