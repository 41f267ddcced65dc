package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrNoAPIKey        = errors.New("API key is required")
	ErrInvalidBaseURL  = errors.New("invalid base URL")
	ErrNilContext      = errors.New("context cannot be nil")
	ErrRequestFailed   = errors.New("request failed")
	ErrStreamClosed    = errors.New("stream closed")
	ErrMaxRetries      = errors.New("max retries exceeded")
	ErrStreamingFormat = errors.New("invalid streaming format")
	ErrUnsupported     = errors.New("operation not supported by provider")
	ErrEmptyResponse   = errors.New("empty response")
)

type APIErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Param      string `json:"param"`
	Code       any    `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrRequestFailed
}

type RateLimitError struct {
	APIError
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited (status %d): %s", e.StatusCode, e.Message)
}

func (e *RateLimitError) Unwrap() error { return &e.APIError }

type AuthenticationError struct {
	APIError
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %s", e.StatusCode, e.Message)
}

func (e *AuthenticationError) Unwrap() error { return &e.APIError }

type TimeoutError struct {
	APIError
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timeout: %s", e.Message)
}

func (e *TimeoutError) Unwrap() error { return &e.APIError }

type InvalidRequestError struct {
	APIError
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request (status %d): %s", e.StatusCode, e.Message)
}

func (e *InvalidRequestError) Unwrap() error { return &e.APIError }

type NotFoundError struct {
	APIError
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found (status %d): %s", e.StatusCode, e.Message)
}

func (e *NotFoundError) Unwrap() error { return &e.APIError }

func parseAPIError(statusCode int, body []byte, header http.Header) error {
	apiErr := &APIError{StatusCode: statusCode}

	var resp APIErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Error.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(statusCode)
		}
	} else {
		apiErr.Message = resp.Error.Message
		apiErr.Type = resp.Error.Type
		apiErr.Param = resp.Error.Param
		apiErr.Code = resp.Error.Code
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthenticationError{APIError: *apiErr}
	case http.StatusTooManyRequests:
		retryAfter := parseRetryAfterHeader(header)
		if retryAfter == 0 {
			retryAfter = parseRetryAfter(string(body))
		}
		return &RateLimitError{
			APIError:   *apiErr,
			RetryAfter: retryAfter,
		}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &InvalidRequestError{APIError: *apiErr}
	case http.StatusNotFound:
		return &NotFoundError{APIError: *apiErr}
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		return &TimeoutError{APIError: *apiErr}
	default:
		return apiErr
	}
}

func parseRetryAfterHeader(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	if ms := header.Get("Retry-After-Ms"); ms != "" {
		if n, err := strconv.ParseFloat(ms, 64); err == nil && n > 0 {
			return time.Duration(n * float64(time.Millisecond))
		}
	}
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

func parseRetryAfter(body string) time.Duration {
	lowerBody := strings.ToLower(body)
	idx := strings.Index(lowerBody, "retry-after")
	if idx == -1 {
		return 0
	}

	rest := strings.TrimSpace(body[idx+len("retry-after"):])
	rest = strings.TrimLeft(rest, ":= ")
	parts := strings.Fields(rest)
	if len(parts) == 0 {
		return 0
	}

	token := strings.TrimRight(parts[0], ",.;}\"")

	if ts, err := strconv.ParseInt(token, 10, 64); err == nil {
		// Large values are Unix timestamps, small ones are seconds.
		if ts > 1_000_000_000 {
			if d := time.Until(time.Unix(ts, 0)); d > 0 {
				return d
			}
			return 0
		}
		return time.Duration(ts) * time.Second
	}

	if d, err := time.ParseDuration(token); err == nil {
		return d
	}

	return 0
}

func IsRateLimitError(err error) bool {
	var rateLimitErr *RateLimitError
	return errors.As(err, &rateLimitErr)
}

func IsAuthError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

func IsTimeoutError(err error) bool {
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func IsNotFoundError(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimitError(err) {
		return true
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 && apiErr.StatusCode < 600
	}

	return false
}

// RetryAfter extracts the server-suggested wait from a rate limit error.
func RetryAfter(err error) time.Duration {
	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return rateLimitErr.RetryAfter
	}
	return 0
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		code >= 500
}

// ErrorFromStatus maps a status code reported by an SDK-backed provider onto
// the same typed errors the native client returns.
func ErrorFromStatus(statusCode int, message string, header http.Header) error {
	return parseAPIError(statusCode, []byte(message), header)
}
