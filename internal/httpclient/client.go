package httpclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/PauloHFS/llm-bootcamp/internal/logging"
)

type Client struct {
	*http.Client
	name string
}

type Config struct {
	Name    string
	Timeout time.Duration
}

// New returns an http.Client whose transport logs one wide event per request.
// Timeout is left at zero for streaming clients; callers bound those with a context.
func New(cfg Config) *Client {
	transport := &loggingTransport{
		RoundTripper: http.DefaultTransport,
		name:         cfg.Name,
	}

	return &Client{
		Client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		name: cfg.Name,
	}
}

func Default() *Client {
	return New(Config{
		Name:    "default",
		Timeout: 30 * time.Second,
	})
}

func (c *Client) Name() string {
	return c.name
}

// Download streams the body of a GET request into w.
func (c *Client) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download failed: unexpected status %d", resp.StatusCode)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download interrupted: %w", err)
	}
	return n, nil
}

type loggingTransport struct {
	http.RoundTripper
	name string
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	ctx, event := logging.NewEventContext(r.Context())
	event.Add(
		slog.String("http_client", t.name),
		slog.String("method", r.Method),
		slog.String("url", r.URL.Redacted()),
	)

	resp, err := t.RoundTripper.RoundTrip(r.WithContext(ctx))

	duration := time.Since(start)

	if err != nil {
		event.Add(
			slog.String("outcome", "error"),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		logging.Get().Log(ctx, slog.LevelError, "http request failed", event.Attrs()...)
		return nil, err
	}

	event.Add(
		slog.Int("status", resp.StatusCode),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	if id := resp.Header.Get("X-Request-Id"); id != "" {
		event.Add(slog.String("upstream_request_id", id))
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}

	logging.Get().Log(ctx, level, "http request completed", event.Attrs()...)
	return resp, nil
}

func WithAuth(authFunc func(*http.Request)) func(*Client) {
	return func(c *Client) {
		transport := &authTransport{
			RoundTripper: c.Transport,
			authFunc:     authFunc,
		}
		c.Transport = transport
	}
}

type authTransport struct {
	http.RoundTripper
	authFunc func(*http.Request)
}

func (t *authTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	t.authFunc(r)
	return t.RoundTripper.RoundTrip(r)
}
