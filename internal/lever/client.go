// Package lever is a small client for the Lever ATS REST API.
package lever

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is Lever's production API
	DefaultBaseURL = "https://api.lever.co/v1"
	// requestsPerSecond is Lever's documented steady-state limit
	requestsPerSecond = 10
	maxRetries        = 3
	requestTimeout    = 30 * time.Second
	maxErrorBody      = 4 << 10
)

// ErrNoOpportunity is returned when no opportunity matches a candidate
var ErrNoOpportunity = errors.New("no lever opportunity found")

// APIError is a non-2xx response from Lever
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lever API error %d: %s", e.StatusCode, e.Message)
}

// retryable reports whether the request may succeed if repeated
func (e *APIError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client calls the Lever API with basic auth, pacing and retries
type Client struct {
	baseURL        string
	apiKey         string
	httpClient     *http.Client
	limiter        *rate.Limiter
	initialBackoff time.Duration
}

// NewClient creates a Lever client; an empty baseURL uses DefaultBaseURL
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		apiKey:         apiKey,
		httpClient:     &http.Client{Timeout: requestTimeout},
		limiter:        rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond),
		initialBackoff: time.Second,
	}
}

// envelope is Lever's standard response wrapper
type envelope struct {
	Data    json.RawMessage `json:"data"`
	HasNext bool            `json:"hasNext"`
	Next    string          `json:"next"`
}

// requestOptions describes one API call
type requestOptions struct {
	Method string
	Path   string
	Query  url.Values
	Body   interface{}
}

// doRequest sends a request, retrying 429 and 5xx responses with backoff
func (c *Client) doRequest(ctx context.Context, opts requestOptions) (*envelope, error) {
	var payload []byte
	if opts.Body != nil {
		b, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		payload = b
	}

	reqURL := c.baseURL + opts.Path
	if len(opts.Query) > 0 {
		reqURL += "?" + opts.Query.Encode()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialBackoff
	b.MaxElapsedTime = 0

	var result envelope
	attempt := 0
	operation := func() error {
		attempt++
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, opts.Method, reqURL, body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.SetBasicAuth(c.apiKey, "")
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			slog.Warn("Lever request failed", "path", opts.Path, "attempt", attempt, "error", err)
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
			if !apiErr.retryable() {
				return backoff.Permanent(apiErr)
			}
			slog.Warn("Lever request will be retried", "path", opts.Path, "status", resp.StatusCode, "attempt", attempt)
			return apiErr
		}

		result = envelope{}
		if resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && !errors.Is(err, io.EOF) {
			return backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)); err != nil {
		return nil, err
	}
	return &result, nil
}
