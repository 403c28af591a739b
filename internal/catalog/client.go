package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultUserAgent identifies the service to catalog APIs.
const DefaultUserAgent = "albumrank/1.0"

// maxBody caps how much of a response body is read.
const maxBody = 4 << 20

// retryDelays is the backoff between attempts on a rate-limited response.
var retryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// client is the JSON-over-HTTP transport shared by the REST catalogs.
type client struct {
	httpClient *http.Client
	userAgent  string
	delays     []time.Duration
}

func newClient(userAgent string) *client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		userAgent: userAgent,
		delays:    retryDelays,
	}
}

// getJSON performs a GET request and decodes the body into v.
// Retries with exponential backoff while the provider answers 429 or 503.
func (c *client) getJSON(ctx context.Context, reqURL string, v any) error {
	var lastErr error

	for attempt := 0; attempt <= len(c.delays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.delays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, http.MethodGet, reqURL)
		if err == nil {
			if err := json.Unmarshal(body, v); err != nil {
				return fmt.Errorf("parsing response: %w", err)
			}
			return nil
		}

		if errors.Is(err, ErrRateLimited) {
			lastErr = err
			continue
		}

		return err
	}

	return lastErr
}

// exists reports whether a HEAD request for reqURL succeeds.
func (c *client) exists(ctx context.Context, reqURL string) bool {
	_, err := c.doSingleRequest(ctx, http.MethodHead, reqURL)
	return err == nil
}

// doSingleRequest performs a single HTTP request.
func (c *client) doSingleRequest(ctx context.Context, method, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusServiceUnavailable:
		return nil, ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
