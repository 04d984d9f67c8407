// Package transport wraps the retrying HTTP client shared by the OAuth and
// Drive callers.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/appleboy/go-httpretry"
)

// Client executes requests through go-httpretry and converts transport
// failures into *NetworkError.
type Client struct {
	retry *retry.Client
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the response carries a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// New builds a Client backed by a TLS 1.2+ transport with connection reuse.
func New() (*Client, error) {
	baseHTTPClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			MaxIdleConns:        10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			DisableKeepAlives:   false,
		},
	}

	rc, err := retry.NewBackgroundClient(
		retry.WithHTTPClient(baseHTTPClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retry client: %w", err)
	}
	return &Client{retry: rc}, nil
}

// NewWithRetryClient wraps an existing retry client. Tests use it with
// retry.NewClient().
func NewWithRetryClient(rc *retry.Client) *Client {
	return &Client{retry: rc}
}

// Do sends req and returns the raw response. The caller must close the body.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	resp, err := c.retry.DoWithContext(ctx, req)
	if err != nil {
		return nil, &NetworkError{Op: req.Method, URL: redact(req.URL), Err: err}
	}
	return resp, nil
}

// Send sends req and reads the whole body. Non-2xx statuses are not errors
// here; callers classify them.
func (c *Client) Send(ctx context.Context, req *http.Request) (*Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{
			Op:  req.Method,
			URL: redact(req.URL),
			Err: fmt.Errorf("failed to read response: %w", err),
		}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// PostForm posts data as application/x-www-form-urlencoded.
func (c *Client) PostForm(ctx context.Context, endpoint string, data url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		endpoint,
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.Send(ctx, req)
}

// PostJSON posts an already encoded JSON body with optional bearer auth.
func (c *Client) PostJSON(
	ctx context.Context,
	endpoint string,
	body []byte,
	bearer string,
) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.Send(ctx, req)
}

// redact strips the query string, which may carry API keys.
func redact(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	return clean.String()
}
