// Package api provides the single outbound HTTP client for the Datatram
// backend. Every request carries the current session's bearer token; errors
// surface as apperrors.APIError with the backend's status and message.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datatram-io/datatram-go/pkg/apperrors"
	"github.com/datatram-io/datatram-go/pkg/auth"
	"github.com/datatram-io/datatram-go/pkg/logging"
)

// DefaultTimeout is the maximum time to wait for backend responses. There is
// no retry at this layer; retry policy belongs to callers.
const DefaultTimeout = 30 * time.Second

// Client provides access to the Datatram backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     auth.TokenSource
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient substitutes the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// New creates a backend client. The token source is asked for the current
// session token before every request; when it yields nothing the request is
// sent unauthenticated and the backend answers with an auth error.
func New(baseURL string, tokens auth.TokenSource, logger *zap.Logger, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend URL %q", baseURL)
	}
	if tokens == nil {
		tokens = auth.Static("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		logger:     logger.Named("api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get fetches path and returns the raw response body.
func (c *Client) Get(ctx context.Context, p string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, p, "", nil)
}

// GetJSON fetches path and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, p string, out any) error {
	body, err := c.Get(ctx, p)
	if err != nil {
		return err
	}
	return decodeInto(body, out)
}

// PostJSON sends body as JSON and decodes the response into out (out may be
// nil).
func (c *Client) PostJSON(ctx context.Context, p string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPost, p, body, out)
}

// PatchJSON sends body as a JSON partial update and decodes the response
// into out (out may be nil).
func (c *Client) PatchJSON(ctx context.Context, p string, body, out any) error {
	return c.sendJSON(ctx, http.MethodPatch, p, body, out)
}

// PostForm sends a multipart form and decodes the response into out (out may
// be nil).
func (c *Client) PostForm(ctx context.Context, p string, form *Form, out any) error {
	return c.sendForm(ctx, http.MethodPost, p, form, out)
}

// PatchForm sends a multipart form as a partial update.
func (c *Client) PatchForm(ctx context.Context, p string, form *Form, out any) error {
	return c.sendForm(ctx, http.MethodPatch, p, form, out)
}

// Delete issues a DELETE for path.
func (c *Client) Delete(ctx context.Context, p string) error {
	_, err := c.do(ctx, http.MethodDelete, p, "", nil)
	return err
}

func (c *Client) sendJSON(ctx context.Context, method, p string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	respBody, err := c.do(ctx, method, p, "application/json", bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	return decodeInto(respBody, out)
}

func (c *Client) sendForm(ctx context.Context, method, p string, form *Form, out any) error {
	contentType, body, err := form.Encode()
	if err != nil {
		return fmt.Errorf("encode form: %w", err)
	}

	respBody, err := c.do(ctx, method, p, contentType, body)
	if err != nil {
		return err
	}
	return decodeInto(respBody, out)
}

// do executes one request: resolves the URL, attaches the bearer token and a
// request id, and maps non-2xx responses to APIError.
func (c *Client) do(ctx context.Context, method, p, contentType string, body io.Reader) ([]byte, error) {
	endpoint, err := c.buildURL(p)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve session token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("url", logging.SanitizeURL(endpoint)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("call backend: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apperrors.APIError{
			StatusCode: resp.StatusCode,
			Message:    backendMessage(respBody),
		}
		c.logger.Debug("backend returned error",
			zap.String("method", method),
			zap.String("url", logging.SanitizeURL(endpoint)),
			zap.Int("status", resp.StatusCode))
		return nil, apiErr
	}

	return respBody, nil
}

// buildURL joins path segments onto the base URL, preserving any query
// string in p.
func (c *Client) buildURL(p string) (string, error) {
	rel, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("invalid request path %q: %w", p, err)
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, rel.Path)
	u.RawQuery = rel.RawQuery
	return u.String(), nil
}

func decodeInto(body []byte, out any) error {
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// backendMessage extracts the human-readable message from an error body.
// The backend uses both {"message": ...} and {"error": ...} shapes.
func backendMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}

	trimmed := strings.TrimSpace(string(body))
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}
