package platform

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient performs GET requests with bounded retries and exponential backoff.
type HTTPClient struct {
	Client  *http.Client
	Retries int
	Backoff time.Duration
	Logger  zerolog.Logger
}

func NewHTTPClient(retries int, timeout time.Duration, logger zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		Client: &http.Client{
			Timeout: timeout,
		},
		Retries: retries,
		Backoff: 200 * time.Millisecond,
		Logger:  logger,
	}
}

// StatusError is returned when the final attempt got a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// GetBytes fetches url and returns the full body. 5xx and transport errors are
// retried; 4xx responses fail immediately.
func (c *HTTPClient) GetBytes(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for i := 0; i <= c.Retries; i++ {
		body, retry, err := c.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || i == c.Retries {
			break
		}

		wait := time.Duration(1<<i) * c.Backoff
		c.Logger.Warn().Err(err).Str("url", url).Int("attempt", i+1).Dur("backoff", wait).Msg("HTTP request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.Retries, lastErr)
}

func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
			&StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	return body, false, nil
}
