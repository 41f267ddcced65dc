package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PauloHFS/llm-bootcamp/internal/logging"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"path", "method", "status"})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tool_calls_total",
		Help: "Total number of tool executions requested by a model",
	}, []string{"tool", "outcome"})

	ToolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "tool_call_duration_seconds",
		Help: "Time taken to execute a tool call",
	}, []string{"tool"})

	SQLGenerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sql_generations_total",
		Help: "Text-to-SQL conversions by outcome (valid, repaired, invalid, error)",
	}, []string{"outcome"})

	ModerationFlagsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_flags_total",
		Help: "Moderation category hits",
	}, []string{"category"})

	AgentIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "agent_iterations",
		Help:    "Model round trips per agent run",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 8},
	})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve runs a standalone /metrics listener until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Get().Info("metrics listener started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
