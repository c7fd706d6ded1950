// Package graph talks to SharePoint through the Microsoft Graph v1.0 REST API:
// document libraries as storage drives, the School Directory list as a record
// source, the Processing Log list as a result sink, and folder sharing.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// BaseURL is the Graph v1.0 endpoint.
const BaseURL = "https://graph.microsoft.com/v1.0"

// APIError is a non-success Graph response that was not retried, or whose
// retries ran out.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	return fmt.Sprintf("graph %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, body)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client is a low-level Graph HTTP client with retry handling.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
	retry   RetryPolicy
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint, such as a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

// WithLogger sets the logger for retry warnings.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient returns a client that asks tokens for a bearer token on every request.
func NewClient(tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL: BaseURL,
		http:    &http.Client{Timeout: 2 * time.Minute},
		tokens:  tokens,
		retry:   DefaultRetryPolicy(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON decodes the response of a GET into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	data, err := c.Do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	return decode(path, data, out)
}

// GetBytes returns the raw body of a GET, used for file downloads.
func (c *Client) GetBytes(ctx context.Context, path string) ([]byte, error) {
	return c.Do(ctx, http.MethodGet, path, nil, "")
}

// PostJSON sends in as JSON and decodes the response into out when out is not nil.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request for %s: %w", path, err)
	}
	data, err := c.Do(ctx, http.MethodPost, path, body, "application/json")
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(path, data, out)
}

// PutBytes uploads data with the given content type and decodes the response into out.
func (c *Client) PutBytes(ctx context.Context, path string, data []byte, contentType string, out any) error {
	resp, err := c.Do(ctx, http.MethodPut, path, data, contentType)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(path, resp, out)
}

// Do sends one logical request, retrying as the policy allows. path is either
// relative to the base URL (leading "/") or an absolute URL such as an
// @odata.nextLink.
func (c *Client) Do(ctx context.Context, method, path string, body []byte, contentType string) ([]byte, error) {
	url := path
	if strings.HasPrefix(path, "/") {
		url = c.baseURL + path
	}

	serverRetries := 0
	for {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire graph token: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to build graph request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("graph %s %s: %w", method, path, err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read graph response for %s: %w", path, err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}

		wait, retry := c.retry.Next(resp.StatusCode, resp.Header, serverRetries)
		if !retry {
			return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(data)}
		}
		if resp.StatusCode >= 500 {
			serverRetries++
		}
		c.logger.Warn("Graph request failed, retrying", "method", method, "path", path, "status", resp.StatusCode, "wait", wait)

		if err := c.retry.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func decode(path string, data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode graph response for %s: %w", path, err)
	}
	return nil
}

// page is the envelope of a paged Graph collection.
type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// getAll follows @odata.nextLink until the collection is exhausted.
func getAll[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	for next := path; next != ""; {
		var p page[T]
		if err := c.GetJSON(ctx, next, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Value...)
		next = p.NextLink
	}
	return all, nil
}
