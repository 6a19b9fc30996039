// Package http provides the HTTP transport shared by dubber's remote
// collaborators (translation endpoint, YouTube timedtext) with per-host rate
// limiting, a circuit breaker and optional transport-level retries.
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"dubber/internal/retry"
)

// Client wraps an HTTP client with rate limiting, a circuit breaker and retries.
type Client struct {
	base           *http.Client
	config         *Config
	rateLimiter    *RateLimiter
	circuitBreaker *CircuitBreaker
}

// Config holds HTTP client configuration.
type Config struct {
	// Timeout bounds a single request end to end (0 = rely on the context).
	Timeout time.Duration

	// Retry configures transport-level retries. MaxRetries 0 disables them,
	// which is what callers owning their own retry policy should use.
	Retry retry.Config

	// UserAgent is sent when the request does not set one.
	UserAgent string

	RateLimiter    RateLimiterConfig
	CircuitBreaker CircuitBreakerConfig
	Transport      TransportConfig
}

// TransportConfig configures connection pooling.
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	MaxConnsPerHost     int
	IdleConnTimeout     time.Duration
	ForceAttemptHTTP2   bool
	DisableKeepAlives   bool
}

// DefaultConfig returns sensible defaults for HTTP client configuration.
func DefaultConfig() *Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = 0
	return &Config{
		Timeout:        30 * time.Second,
		Retry:          rc,
		UserAgent:      "dubber/1.0",
		RateLimiter:    DefaultRateLimiterConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Transport:      DefaultTransportConfig(),
	}
}

// DefaultTransportConfig returns sensible defaults for HTTP transport configuration.
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
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Transport.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Transport.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.Transport.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Transport.IdleConnTimeout,
		ForceAttemptHTTP2:   cfg.Transport.ForceAttemptHTTP2,
		DisableKeepAlives:   cfg.Transport.DisableKeepAlives,
	}

	return &Client{
		base: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		config:         cfg,
		rateLimiter:    NewRateLimiter(cfg.RateLimiter),
		circuitBreaker: NewCircuitBreaker(cfg.CircuitBreaker),
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	return c.Do(ctx, http.MethodGet, url, nil, nil)
}

// PostJSON encodes payload as JSON and POSTs it to url.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return c.Do(ctx, http.MethodPost, url, body, map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
	})
}

// Do performs an HTTP request. Non-2xx responses are returned as *HTTPError
// or *RateLimitError. Requests to a host whose circuit is open fail with
// ErrCircuitOpen without touching the network.
func (c *Client) Do(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) (*Response, error) {
	host := hostOf(urlStr)

	if err := c.circuitBreaker.Allow(host); err != nil {
		return nil, err
	}

	var out *Response
	err := retry.Do(ctx, c.config.Retry, c.isRetryable, func(ctx context.Context) error {
		if err := c.rateLimiter.Wait(ctx, urlStr); err != nil {
			return err
		}
		resp, err := c.once(ctx, method, urlStr, body, headers)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})

	if err != nil {
		// A caller abort says nothing about the host.
		if !errors.Is(err, context.Canceled) {
			c.circuitBreaker.RecordFailure(host, err)
		}
		return nil, err
	}

	c.rateLimiter.RecordSuccess(urlStr)
	c.circuitBreaker.RecordSuccess(host)
	return out, nil
}

func (c *Client) once(ctx context.Context, method, urlStr string, body []byte, headers map[string]string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", errors.Join(retry.ErrPermanent, err))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: read response body: %w", ErrRequestFailed, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		retryAfter := parseRetryAfter(resp.Header)
		if backoff := c.rateLimiter.RecordThrottle(urlStr, retryAfter); backoff > retryAfter {
			retryAfter = backoff
		}
		return nil, &RateLimitError{StatusCode: resp.StatusCode, RetryAfter: retryAfter}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: respBody}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

func (c *Client) isRetryable(err error) bool {
	if !retry.IsRetryable(err) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	return true
}

// CircuitState reports the breaker state for urlStr's host.
func (c *Client) CircuitState(urlStr string) CircuitState {
	return c.circuitBreaker.State(hostOf(urlStr))
}

// parseRetryAfter reads Retry-After as seconds or an HTTP date.
func parseRetryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// Close releases idle connections.
func (c *Client) Close() error {
	if c.base != nil {
		c.base.CloseIdleConnections()
	}
	return nil
}
