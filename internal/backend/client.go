// Package backend is the HTTP transport to the device-control service.
//
// Both the health monitor and the per-device clients talk to the backend
// through a single [Client], so they share one connection pool.
package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxResponseBodySize = 1 << 20 // 1MB

const defaultTimeout = 10 * time.Second

// connection pooling limits; the console only ever talks to one host
const (
	defaultMaxIdleConns        = 16
	defaultMaxIdleConnsPerHost = 8
	defaultMaxConnsPerHost     = 8
	defaultIdleConnTimeout     = 60 * time.Second
)

// Request describes one call to the backend.
type Request struct {
	// Method is the HTTP method. Empty means GET.
	Method string

	// URL is the absolute request URL.
	URL string

	// Headers are sent in addition to the client's default headers.
	Headers map[string]string

	// Body is sent as application/json when non-nil.
	Body []byte

	// Timeout bounds the whole call. Zero uses the client default (10s).
	Timeout time.Duration
}

// Response holds the result of a call made by [Client].
//
// The body is limited to 1MB. Error is set only for transport failures
// (unreachable host, timeout, truncated body); an HTTP error status is
// reported through StatusCode with a nil Error.
type Response struct {
	Body       []byte
	StatusCode int
	Latency    time.Duration
	Error      error
}

// OK reports whether the call completed with a 2xx status.
func (r Response) OK() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Client is an HTTP client wrapper for backend calls.
//
// Timeouts are applied per request via context rather than on the
// http.Client, so health probes and device commands can use different limits.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
}

// NewClient creates a [Client] that adds headers to every request.
func NewClient(headers map[string]string) *Client {
	cp := make(map[string]string, len(headers))
	for k, v := range headers {
		cp[k] = v
	}

	return &Client{
		httpClient: &http.Client{
			// no default timeout - per-request timeouts via context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
		headers: cp,
	}
}

// Fetch performs req and returns a structured [Response].
//
// Fetch always returns a Response; errors are captured in the Error field
// rather than returned separately, so callers turn every outcome into state.
func (c *Client) Fetch(ctx context.Context, req Request) Response {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("failed to create request: %w", err),
		}
	}

	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for key, value := range c.headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{
			Latency: time.Since(start),
			Error:   fmt.Errorf("request failed: %w", err),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Response{
			StatusCode: resp.StatusCode,
			Latency:    time.Since(start),
			Error:      fmt.Errorf("failed to read response body: %w", err),
		}
	}

	return Response{
		Body:       data,
		StatusCode: resp.StatusCode,
		Latency:    time.Since(start),
	}
}

// Close closes all idle connections in the client's pool. Safe to call
// multiple times; the client stays usable afterwards.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}
