// ABOUTME: HTTP client for provider streaming calls with retry on 429/5xx
// ABOUTME: Non-2xx responses become *APIError carrying a bounded copy of the body

package httputil

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	pilog "github.com/mauromedda/gpt-go/internal/log"
	"github.com/mauromedda/gpt-go/pkg/ai/internal/sse"
)

const (
	defaultRetries = 3
	defaultBackoff = 500 * time.Millisecond
	maxBackoff     = 10 * time.Second
	errorBodyLimit = 4096
)

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider string
	Status   int
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, strings.TrimSpace(e.Body))
}

// Client posts requests to one provider base URL.
type Client struct {
	httpClient *http.Client
	provider   string
	baseURL    string
	headers    map[string]string

	// Retries is the number of retries after the first attempt.
	Retries int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

// NewClient creates a client for provider at baseURL with default headers.
// Proxies come from HTTP_PROXY/HTTPS_PROXY.
func NewClient(provider, baseURL string, headers map[string]string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		provider: provider,
		baseURL:  NormalizeBaseURL(baseURL),
		headers:  headers,
		Retries:  defaultRetries,
		Backoff:  defaultBackoff,
	}
}

// Post sends body to path, retrying on 429 and 5xx. A non-2xx final
// response is returned as *APIError with the response already closed.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("building request for %s: %w", path, err)
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		pilog.Debug("http: POST %s%s (attempt %d)", c.baseURL, path, attempt+1)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%s request failed: %w", c.provider, err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		apiErr := readAPIError(c.provider, resp)
		if !retryable(resp.StatusCode) || attempt >= c.Retries {
			return nil, apiErr
		}
		wait := c.delay(attempt, resp.Header.Get("Retry-After"))
		pilog.Debug("http: %s status %d, retrying in %s", c.provider, resp.StatusCode, wait)
		if err := sleep(ctx, wait); err != nil {
			return nil, errors.Join(apiErr, err)
		}
	}
}

// Stream posts body and returns an SSE reader over the response. The
// caller closes the response body.
func (c *Client) Stream(ctx context.Context, path string, body []byte) (*sse.Reader, *http.Response, error) {
	resp, err := c.Post(ctx, path, body)
	if err != nil {
		return nil, nil, err
	}
	return sse.NewReader(resp.Body), resp, nil
}

func readAPIError(provider string, resp *http.Response) *APIError {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	return &APIError{Provider: provider, Status: resp.StatusCode, Body: string(data)}
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// delay honors a Retry-After in seconds, else backs off exponentially.
func (c *Client) delay(attempt int, retryAfter string) time.Duration {
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		return min(time.Duration(secs)*time.Second, maxBackoff)
	}
	return min(c.Backoff<<attempt, maxBackoff)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NormalizeBaseURL trims trailing slashes and a sole "/v1" path, since
// providers append their own versioned paths.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimRight(raw, "/")
	u, err := url.Parse(raw)
	if err != nil || u.Path != "/v1" {
		return raw
	}
	u.Path = ""
	return u.String()
}
