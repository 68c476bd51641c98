// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jeranaias/sawmon/internal/session"
)

const (
	// DefaultBaseURL is where the backend listens in a default install.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultTimeout bounds a single HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of attempts for idempotent requests.
	DefaultMaxRetries = 3

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// MaxResponseSize caps how much of a response body is read.
	MaxResponseSize = 10 * 1024 * 1024

	// RequestIDHeader carries the per-call correlation id.
	RequestIDHeader = "X-Request-ID"
)

// Client talks to the backend. Configure it with the With* methods before
// first use; it is safe for concurrent use afterwards.
type Client struct {
	baseURL    string
	httpClient *http.Client
	transport  *session.Transport
	maxRetries int
	limiter    *rate.Limiter
	logger     *slog.Logger
	userAgent  string
	baseDelay  time.Duration
}

// NewClient creates a client for baseURL. Requests carry only tokens bound
// to their context until WithTokenSource is called.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	tr := session.NewTransport(nil, nil)
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout, Transport: tr},
		transport:  tr,
		maxRetries: DefaultMaxRetries,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		userAgent:  "sawmon",
		baseDelay:  retryBaseDelay,
	}
}

// WithTokenSource makes every request without a context token use the
// token src currently holds.
func (c *Client) WithTokenSource(src session.TokenSource) *Client {
	c.transport.Source = src
	return c
}

// WithBaseTransport replaces the RoundTripper below the auth transport.
func (c *Client) WithBaseTransport(rt http.RoundTripper) *Client {
	c.transport.Base = rt
	return c
}

// WithTimeout sets the per-attempt timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithMaxRetries sets the number of attempts for idempotent requests.
// Values below 1 mean a single attempt.
func (c *Client) WithMaxRetries(n int) *Client {
	if n < 1 {
		n = 1
	}
	c.maxRetries = n
	return c
}

// WithRateLimit caps outgoing requests. rps <= 0 disables the limit.
func (c *Client) WithRateLimit(rps float64, burst int) *Client {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return c
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	return c
}

// WithLogger sets the logger. Headers and bodies are never logged.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithUserAgent sets the User-Agent header.
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// do sends one logical call and decodes a JSON response into out (which
// may be nil). Idempotent methods are retried on 5xx, 429 and transport
// failures with exponential backoff; POST is sent once.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	attempts := 1
	if method != http.MethodPost {
		attempts = c.maxRetries
	}
	requestID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.calculateBackoff(attempt)):
			}
		}

		body, err := c.send(ctx, method, path, requestID, payload)
		if err == nil {
			if out == nil || len(bytes.TrimSpace(body)) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("failed to parse response from %s: %w", path, err)
			}
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
	}
	if attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// send performs a single attempt and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, method, path, requestID string, payload []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", requestID,
	)

	body, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			Status:    resp.StatusCode,
			Method:    method,
			Path:      path,
			Message:   parseDetail(body),
			RequestID: requestID,
		}
	}
	return body, nil
}

// readResponse reads at most MaxResponseSize bytes of the body.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, MaxResponseSize)
	}
	return body, nil
}

// calculateBackoff returns the delay before retry number attempt.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := c.baseDelay * time.Duration(1<<uint(attempt-1))
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	return delay
}

// getRaw fetches path and returns the JSON body undecoded.
func (c *Client) getRaw(ctx context.Context, path string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
