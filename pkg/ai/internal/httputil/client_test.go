// ABOUTME: Tests for the provider HTTP client: headers, retries, API errors, and SSE streams
// ABOUTME: Uses httptest servers with zero backoff so retries run instantly

package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string, headers map[string]string) *Client {
	c := NewClient("test", url, headers)
	c.Backoff = 0
	return c
}

func TestClientPost_SendsHeadersAndBody(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if got := r.Header.Get("X-Custom"); got != "v" {
			t.Errorf("X-Custom = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	resp, err := newTestClient(srv.URL, map[string]string{"X-Custom": "v"}).Post(context.Background(), "/echo", []byte("hello"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	got, _ := io.ReadAll(resp.Body)
	if string(got) != "hello" {
		t.Errorf("body = %q", got)
	}
}

func TestClientPost_RetriesWithSameBody(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if body, _ := io.ReadAll(r.Body); string(body) != `{"p":1}` {
			t.Errorf("attempt %d body = %q", n, body)
		}
		switch n {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))
	t.Cleanup(srv.Close)

	resp, err := newTestClient(srv.URL, nil).Post(context.Background(), "/", []byte(`{"p":1}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClientPost_APIError(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"bad key"}` + "\n"))
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(srv.URL, nil).Post(context.Background(), "/", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Body != "{\"error\":\"bad key\"}\n" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if got := err.Error(); got != `test API error (status 401): {"error":"bad key"}` {
		t.Errorf("Error() = %q", got)
	}
	if attempts.Load() != 1 {
		t.Errorf("4xx should not be retried, got %d attempts", attempts.Load())
	}
}

func TestClientPost_ExhaustsRetries(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	c := newTestClient(srv.URL, nil)
	c.Retries = 2
	_, err := c.Post(context.Background(), "/", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}
}

func TestClientPost_CanceledContext(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newTestClient(srv.URL, nil).Post(ctx, "/", nil); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestClientStream(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("event: message\ndata: hello\n\ndata: world\n\n"))
	}))
	t.Cleanup(srv.Close)

	reader, resp, err := newTestClient(srv.URL, nil).Stream(context.Background(), "/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	for _, want := range []string{"hello", "world"} {
		ev, err := reader.Next()
		if err != nil {
			t.Fatal(err)
		}
		if ev.Data != want {
			t.Errorf("data = %q, want %q", ev.Data, want)
		}
	}
	if _, err := reader.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("err = %v, want EOF", err)
	}
}

func TestDelay(t *testing.T) {
	t.Parallel()
	c := NewClient("test", "http://x", nil)
	tests := []struct {
		attempt    int
		retryAfter string
		want       time.Duration
	}{
		{0, "", 500 * time.Millisecond},
		{2, "", 2 * time.Second},
		{8, "", maxBackoff},
		{0, "3", 3 * time.Second},
		{0, "600", maxBackoff},
		{1, "soon", time.Second},
	}
	for _, tt := range tests {
		if got := c.delay(tt.attempt, tt.retryAfter); got != tt.want {
			t.Errorf("delay(%d, %q) = %s, want %s", tt.attempt, tt.retryAfter, got, tt.want)
		}
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"http://host:8000/v1":     "http://host:8000",
		"http://host:8000/v1/":    "http://host:8000",
		"http://host:8000":        "http://host:8000",
		"https://api.openai.com/": "https://api.openai.com",
		"http://host/api/v1":      "http://host/api/v1",
		"":                        "",
	}
	for in, want := range tests {
		if got := NormalizeBaseURL(in); got != want {
			t.Errorf("NormalizeBaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}
