package llm

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

type StreamingFormat string

const (
	StreamingFormatSSE    StreamingFormat = "sse"
	StreamingFormatNDJSON StreamingFormat = "ndjson"
)

const (
	URLOpenAI     = "https://api.openai.com"
	URLOpenRouter = "https://openrouter.ai/api"
	URLOllama     = "http://localhost:11434"
)

// Preset bundles what differs between OpenAI-compatible servers.
type Preset struct {
	BaseURL         string
	StreamingFormat StreamingFormat
	Headers         map[string]string
}

var (
	PresetOpenAI     = Preset{BaseURL: URLOpenAI, StreamingFormat: StreamingFormatSSE}
	PresetOpenRouter = Preset{
		BaseURL:         URLOpenRouter,
		StreamingFormat: StreamingFormatSSE,
		Headers:         map[string]string{"X-Title": "llm-bootcamp"},
	}
	PresetOllama = Preset{BaseURL: URLOllama, StreamingFormat: StreamingFormatNDJSON}
)

type ClientOption func(*Client) error

// WithBaseURL sets the server root. Request paths carry their own /v1 prefix,
// so a trailing /v1 copied from provider docs is dropped.
func WithBaseURL(raw string) ClientOption {
	return func(c *Client) error {
		base, err := normalizeBaseURL(raw)
		if err != nil {
			return err
		}
		c.baseURL = base
		return nil
	}
}

func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: %q needs an http or https scheme", ErrInvalidBaseURL, raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidBaseURL, raw)
	}
	u.RawQuery, u.Fragment = "", ""
	u.Path = strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/v1")
	u.RawPath = ""
	return strings.TrimRight(u.String(), "/"), nil
}

// WithPreset applies a server preset. A non-empty baseURL overrides the
// preset's, and preset headers never replace ones already set.
func WithPreset(p Preset, baseURL string) ClientOption {
	return func(c *Client) error {
		if baseURL == "" {
			baseURL = p.BaseURL
		}
		if err := WithBaseURL(baseURL)(c); err != nil {
			return err
		}
		if p.StreamingFormat != "" {
			if err := WithStreamingFormat(p.StreamingFormat)(c); err != nil {
				return err
			}
		}
		if len(p.Headers) == 0 {
			return nil
		}
		headers := make(map[string]string, len(p.Headers)+len(c.defaultHeaders))
		for k, v := range p.Headers {
			headers[k] = v
		}
		for k, v := range c.defaultHeaders {
			headers[k] = v
		}
		c.defaultHeaders = headers
		return nil
	}
}

func WithAPIKey(key string) ClientOption {
	return func(c *Client) error {
		if key == "" {
			return ErrNoAPIKey
		}
		c.apiKey = key
		return nil
	}
}

func WithModel(model string) ClientOption {
	return func(c *Client) error {
		c.model = model
		return nil
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) error {
		if client == nil {
			c.httpClient = http.DefaultClient
			return nil
		}
		c.httpClient = client
		return nil
	}
}

func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) error {
		c.defaultHeaders = headers
		return nil
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) error {
		c.timeout = timeout
		return nil
	}
}

func WithMaxRetries(retries int) ClientOption {
	return func(c *Client) error {
		if retries < 0 {
			retries = 0
		}
		c.maxRetries = retries
		return nil
	}
}

func WithRetryWaitRange(min, max time.Duration) ClientOption {
	return func(c *Client) error {
		if min <= 0 {
			min = 500 * time.Millisecond
		}
		if max <= 0 {
			max = 30 * time.Second
		}
		if min > max {
			min, max = max, min
		}
		c.retryWaitMin = min
		c.retryWaitMax = max
		return nil
	}
}

func WithStreamingFormat(format StreamingFormat) ClientOption {
	return func(c *Client) error {
		switch format {
		case StreamingFormatSSE, StreamingFormatNDJSON:
			c.streamingFormat = format
			return nil
		default:
			return fmt.Errorf("%w: %q", ErrStreamingFormat, format)
		}
	}
}

func WithOrganization(org string) ClientOption {
	return func(c *Client) error {
		c.organization = org
		return nil
	}
}

func WithBetaHeader(version string) ClientOption {
	return func(c *Client) error {
		c.betaHeader = version
		return nil
	}
}

// WithRateLimit throttles every endpoint group to rps requests per second.
// Image and audio endpoints keep their tighter defaults.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) error {
		if rps <= 0 {
			c.limiter = nil
			return nil
		}
		c.limiter = NewEndpointLimiter(EndpointLimit{Rate: rate.Limit(rps), Burst: burst}, DefaultEndpointLimits)
		return nil
	}
}

func WithEndpointLimiter(limiter *EndpointLimiter) ClientOption {
	return func(c *Client) error {
		c.limiter = limiter
		return nil
	}
}
