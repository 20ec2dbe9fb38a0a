// Package httpc provides the HTTP client infrastructure shared by the
// video registry façade and the resumable upload protocol: connection
// pooling, per-host rate limiting, and typed error handling.
package httpc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps an HTTP client with rate limiting and default headers.
// Retry policy is deliberately left to callers: the upload protocol runs
// its own staged retry budgets.
type Client struct {
	base    *http.Client
	config  *Config
	limiter *HostLimiter
}

// Config holds HTTP client configuration.
type Config struct {
	// Timeout for individual HTTP requests. Zero means no client-side
	// timeout; chunk transfers rely on the transport's failure detection.
	Timeout time.Duration

	// UserAgent for HTTP requests.
	UserAgent string

	// RateLimit configures the per-host request limiter.
	RateLimit RateLimitConfig

	// Transport configures the connection pool.
	Transport TransportConfig
}

// TransportConfig configures the HTTP transport (connection pooling).
type TransportConfig struct {
	// MaxIdleConns is the maximum number of idle connections across all hosts.
	MaxIdleConns int

	// MaxIdleConnsPerHost is the maximum idle connections per host.
	MaxIdleConnsPerHost int

	// MaxConnsPerHost is the maximum concurrent connections per host.
	MaxConnsPerHost int

	// IdleConnTimeout is the maximum time an idle connection stays open.
	IdleConnTimeout time.Duration

	// ForceAttemptHTTP2 forces HTTP/2 where the server supports it.
	ForceAttemptHTTP2 bool
}

// DefaultConfig returns sensible defaults for HTTP client configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:   60 * time.Second,
		UserAgent: "streamup/1.0",
		RateLimit: DefaultRateLimitConfig(),
		Transport: DefaultTransportConfig(),
	}
}

// DefaultTransportConfig returns sensible defaults for the transport.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}

// New creates a new HTTP client with the given configuration.
func New(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.Transport.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.Transport.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Transport.IdleConnTimeout,
		ForceAttemptHTTP2:   cfg.Transport.ForceAttemptHTTP2,
	}

	return &Client{
		base: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config:  cfg,
		limiter: NewHostLimiter(cfg.RateLimit),
	}
}

// Response represents a completed HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Success reports whether the status code is in the 2xx range.
func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Error converts a non-2xx response into an *HTTPError, or nil for 2xx.
func (r *Response) Error() error {
	if r.Success() {
		return nil
	}
	return &HTTPError{StatusCode: r.StatusCode, Body: r.Body}
}

// Do performs an HTTP request and returns the response regardless of
// status code. Errors are returned only for transport-level failures;
// callers inspect Response.StatusCode or use Response.Error().
func (c *Client) Do(ctx context.Context, method, urlStr string, body io.Reader, headers map[string]string) (*Response, error) {
	if err := c.limiter.Wait(ctx, urlStr); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, urlStr, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// DoOK performs an HTTP request and treats any non-2xx status as an
// *HTTPError. Convenience for REST calls where only success bodies matter.
func (c *Client) DoOK(ctx context.Context, method, urlStr string, body io.Reader, headers map[string]string) (*Response, error) {
	resp, err := c.Do(ctx, method, urlStr, body, headers)
	if err != nil {
		return nil, err
	}
	if err := resp.Error(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Close releases idle connections held by the client.
func (c *Client) Close() error {
	if c.base != nil {
		c.base.CloseIdleConnections()
	}
	return nil
}
