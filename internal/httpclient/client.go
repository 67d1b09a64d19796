package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// browserUserAgent is sent on page fetches so sources treat us like a
// regular browser session.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// StatusError reports a non-2xx response so callers can branch on the
// status code (403/429 trigger the browser fallback).
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// Client is a retrying HTTP client for page fetches. Requests to the
// same host are paced with a token bucket so a burst of article fetches
// does not hammer one site.
type Client struct {
	http        *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxBodySize int64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.http.Timeout = timeout }
}

// WithRetries sets the retry count and the base delay. Delays grow
// linearly: delay, 2*delay, 3*delay.
func WithRetries(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = retries
		c.retryDelay = delay
	}
}

// WithMaxBodySize caps how many bytes of a response body are read.
func WithMaxBodySize(size int64) Option {
	return func(c *Client) { c.maxBodySize = size }
}

// New creates a page-fetch client with sane defaults.
func New(opts ...Option) *Client {
	c := &Client{
		http:        NewDefaultHTTPClient(30 * time.Second),
		maxRetries:  3,
		retryDelay:  2 * time.Second,
		maxBodySize: 10 * 1024 * 1024, // 10MB
		limiters:    make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// limiterFor returns the rate limiter for a host, creating it on first
// use. One request per second with a small burst keeps us polite.
func (c *Client) limiterFor(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	limiter, ok := c.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(time.Second), 2)
		c.limiters[host] = limiter
	}
	return limiter
}

// Get fetches a URL and returns the response body. Transient failures
// and 5xx responses are retried with linear backoff; non-2xx results
// after all retries surface as *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %s: %w", rawURL, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * c.retryDelay):
			}
		}

		if err := c.limiterFor(parsed.Host).Wait(ctx); err != nil {
			return nil, err
		}

		body, err := c.get(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// Client errors other than 429 will not improve with retries
		if statusErr, ok := err.(*StatusError); ok {
			if statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 && statusErr.StatusCode != http.StatusTooManyRequests {
				return nil, err
			}
		}
	}

	return nil, lastErr
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return body, nil
}

// PostJSON sends a JSON payload and returns the response body. Used by
// API integrations (Telegram, Ollama) that do not need retry pacing.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	return body, nil
}
