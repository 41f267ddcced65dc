package llm

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	llmRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_request_duration_seconds",
		Help:    "LLM request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"method", "model", "status"})

	llmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_requests_total",
		Help: "Total number of LLM requests",
	}, []string{"method", "model"})

	llmErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_errors_total",
		Help: "Total number of LLM errors",
	}, []string{"method", "model", "error_type"})

	llmTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Total number of tokens used",
	}, []string{"method", "model", "token_type"})
)

var tracer = otel.Tracer("github.com/PauloHFS/llm-bootcamp/internal/llm")

func recordRequest(method, model, status string, duration time.Duration) {
	llmRequestDuration.WithLabelValues(method, model, status).Observe(duration.Seconds())
	llmRequestsTotal.WithLabelValues(method, model).Inc()
}

func recordError(method, model, errorType string) {
	llmErrorsTotal.WithLabelValues(method, model, errorType).Inc()
}

func recordTokens(method, model string, usage Usage) {
	if usage.PromptTokens > 0 {
		llmTokensTotal.WithLabelValues(method, model, "prompt").Add(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		llmTokensTotal.WithLabelValues(method, model, "completion").Add(float64(usage.CompletionTokens))
	}
	if usage.TotalTokens > 0 {
		llmTokensTotal.WithLabelValues(method, model, "total").Add(float64(usage.TotalTokens))
	}
}

// observe is deferred by endpoints that are not covered by MetricsMiddleware.
func observe(method, model string, start time.Time, errp *error) {
	status := "success"
	if errp != nil && *errp != nil {
		status = "error"
		recordError(method, model, classifyError(*errp))
	}
	recordRequest(method, model, status, time.Since(start))
}

func classifyError(err error) string {
	if err == nil {
		return "none"
	}

	if IsAuthError(err) {
		return "auth"
	}
	if IsRateLimitError(err) {
		return "rate_limit"
	}
	if IsTimeoutError(err) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, ErrUnsupported) {
		return "unsupported"
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return "client_error"
		}
		if apiErr.StatusCode >= 500 {
			return "server_error"
		}
	}

	return "unknown"
}

// MetricsMiddleware decorates any LLMClient with prometheus metrics and an
// OpenTelemetry span per call.
type MetricsMiddleware struct {
	client   LLMClient
	provider string
}

var _ LLMClient = (*MetricsMiddleware)(nil)

func NewMetricsMiddleware(client LLMClient, provider string) *MetricsMiddleware {
	return &MetricsMiddleware{client: client, provider: provider}
}

func (m *MetricsMiddleware) startSpan(ctx context.Context, name, model string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("llm.provider", m.provider),
		attribute.String("llm.model", model),
	))
}

func endSpan(span trace.Span, usage Usage, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			attribute.Int("llm.usage.prompt_tokens", usage.PromptTokens),
			attribute.Int("llm.usage.completion_tokens", usage.CompletionTokens),
		)
	}
	span.End()
}

func (m *MetricsMiddleware) Generate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	model := req.Model
	status := "success"

	ctx, span := m.startSpan(ctx, "llm.generate", model)
	span.SetAttributes(attribute.Int("llm.messages", len(req.Messages)), attribute.Int("llm.tools", len(req.Tools)))

	resp, err := m.client.Generate(ctx, req)

	duration := time.Since(start)
	if err != nil {
		status = "error"
	}

	recordRequest("generate", model, status, duration)

	var usage Usage
	if err != nil {
		recordError("generate", model, classifyError(err))
	} else if resp != nil {
		usage = resp.Usage
		recordTokens("generate", model, usage)
	}
	endSpan(span, usage, err)

	return resp, err
}

func (m *MetricsMiddleware) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	start := time.Now()
	model := req.Model

	ctx, span := m.startSpan(ctx, "llm.stream", model)

	ch, err := m.client.Stream(ctx, req)
	if err != nil {
		recordRequest("stream", model, "error", time.Since(start))
		recordError("stream", model, classifyError(err))
		endSpan(span, Usage{}, err)
		return nil, err
	}

	wrapped := make(chan StreamChunk)

	go func() {
		defer close(wrapped)
		var (
			usage     Usage
			streamErr error
			first     = true
		)

		for chunk := range ch {
			if first {
				span.AddEvent("first_token")
				first = false
			}
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
			if chunk.Err != nil {
				streamErr = chunk.Err
			}
			select {
			case wrapped <- chunk:
			case <-ctx.Done():
				// keep draining so the producer can exit
			}
		}

		status := "success"
		if streamErr != nil {
			status = "error"
			recordError("stream", model, classifyError(streamErr))
		}
		recordRequest("stream", model, status, time.Since(start))
		recordTokens("stream", model, usage)
		endSpan(span, usage, streamErr)
	}()

	return wrapped, nil
}

func (m *MetricsMiddleware) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	start := time.Now()
	model := req.Model
	status := "success"

	ctx, span := m.startSpan(ctx, "llm.embed", model)

	resp, err := m.client.Embed(ctx, req)

	duration := time.Since(start)
	if err != nil {
		status = "error"
	}

	recordRequest("embed", model, status, duration)

	var usage Usage
	if err != nil {
		recordError("embed", model, classifyError(err))
	} else if resp != nil {
		usage = resp.Usage
		recordTokens("embed", model, usage)
	}
	endSpan(span, usage, err)

	return resp, err
}
