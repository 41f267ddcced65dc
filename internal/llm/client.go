package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PauloHFS/llm-bootcamp/internal/logging"
)

type LLMClient interface {
	Generate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
	Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}

type Client struct {
	baseURL         string
	apiKey          string
	model           string
	httpClient      *http.Client
	defaultHeaders  map[string]string
	timeout         time.Duration
	maxRetries      int
	retryWaitMin    time.Duration
	retryWaitMax    time.Duration
	streamingFormat StreamingFormat
	organization    string
	betaHeader      string
	limiter         *EndpointLimiter
}

var _ LLMClient = (*Client)(nil)

func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		baseURL:         URLOpenAI,
		httpClient:      http.DefaultClient,
		timeout:         60 * time.Second,
		maxRetries:      3,
		retryWaitMin:    500 * time.Millisecond,
		retryWaitMax:    30 * time.Second,
		streamingFormat: StreamingFormatSSE,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	return c, nil
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) Limiter() *EndpointLimiter {
	return c.limiter
}

// payload is a request body that can be replayed across retries.
type payload struct {
	data        []byte
	contentType string
	accept      string
}

func jsonPayload(v any) (*payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return &payload{data: data, contentType: "application/json", accept: "application/json"}, nil
}

func (c *Client) buildURL(path string) string {
	base := strings.TrimRight(c.baseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func (c *Client) newRequest(ctx context.Context, method, path string, body *payload) (*http.Request, error) {
	url := c.buildURL(path)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
		if body.accept != "" {
			req.Header.Set("Accept", body.accept)
		}
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}

	if c.betaHeader != "" {
		req.Header.Set("OpenAI-Beta", c.betaHeader)
	}

	for key, value := range c.defaultHeaders {
		req.Header.Set(key, value)
	}

	return req, nil
}

// withTimeout bounds a non-streaming call. The returned cancel must run after
// the response body has been consumed.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) doRequest(ctx context.Context, endpoint string, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, endpoint); err != nil {
			return nil, err
		}
		defer c.limiter.Release(endpoint)
	}

	return c.httpClient.Do(req)
}

// doRequestWithRetry sends the request until it succeeds, fails with a
// non-retryable error, or runs out of attempts. Only 2xx responses are
// returned; everything else is converted into a typed error.
func (c *Client) doRequestWithRetry(ctx context.Context, endpoint, method, path string, body *payload) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.calculateRetryAfter(attempt-1, lastErr)
			logging.Get().DebugContext(ctx, "retrying llm request",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := c.newRequest(ctx, method, path, body)
		if err != nil {
			return nil, err
		}

		resp, err := c.doRequest(ctx, endpoint, req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read error response: %w", readErr)
		}

		apiErr := parseAPIError(resp.StatusCode, respBody, resp.Header)
		if !retryableStatus(resp.StatusCode) {
			return nil, apiErr
		}
		lastErr = apiErr
	}

	if lastErr == nil {
		return nil, ErrMaxRetries
	}
	return nil, fmt.Errorf("%w: %w", ErrMaxRetries, lastErr)
}

// postJSON marshals body once, sends it with retries and decodes a JSON reply into out.
func (c *Client) postJSON(ctx context.Context, endpoint, path string, body, out any) error {
	p, err := jsonPayload(body)
	if err != nil {
		return err
	}
	return c.send(ctx, endpoint, http.MethodPost, path, p, out)
}

func (c *Client) send(ctx context.Context, endpoint, method, path string, p *payload, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.doRequestWithRetry(ctx, endpoint, method, path, p)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) calculateRetryAfter(attempt int, lastErr error) time.Duration {
	wait := FullJitter(attempt, BackoffConfig{BaseDelay: c.retryWaitMin, MaxDelay: c.retryWaitMax})
	if hint := RetryAfter(lastErr); hint > wait {
		wait = min(hint, c.retryWaitMax)
	}
	return wait
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func requireModel(model, fallback string) (string, error) {
	if model == "" {
		model = fallback
	}
	if model == "" {
		return "", &InvalidRequestError{APIError: APIError{Message: "model is required"}}
	}
	return model, nil
}

var errNoInput = errors.New("input is required")
