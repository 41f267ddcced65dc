// Package server exposes chat, text-to-SQL, sentiment, moderation and
// document search over HTTP.
package server

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"

	"github.com/PauloHFS/llm-bootcamp/internal/conversation"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/metrics"
	"github.com/PauloHFS/llm-bootcamp/internal/middleware"
	"github.com/PauloHFS/llm-bootcamp/internal/moderation"
	"github.com/PauloHFS/llm-bootcamp/internal/sentiment"
	"github.com/PauloHFS/llm-bootcamp/internal/sqlgen"
	"github.com/PauloHFS/llm-bootcamp/internal/vector"
)

const (
	Health      = "/health"
	Metrics     = "/metrics"
	Chat        = "/v1/chat"
	SQL         = "/v1/sql"
	Sentiment   = "/v1/sentiment"
	Moderations = "/v1/moderations"
	Search      = "/v1/search"
)

const maxBodyBytes = 1 << 20

// Deps are the services behind the routes. Nil services answer 503.
type Deps struct {
	Client    llm.LLMClient
	ChatModel string
	System    string

	Store   *conversation.Store
	StateDB *sql.DB

	SQL    *sqlgen.Generator
	DemoDB *sql.DB

	Sentiment  *sentiment.Analyzer
	Moderation *moderation.Service
	Index      *vector.Index
}

type Server struct {
	deps Deps
}

func New(deps Deps) *Server {
	return &Server{deps: deps}
}

// Routes returns the bare mux without middleware.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+Health, s.health)
	mux.Handle("GET "+Metrics, metrics.Handler())
	mux.HandleFunc("POST "+Chat, s.chat)
	mux.HandleFunc("POST "+SQL, s.sql)
	mux.HandleFunc("POST "+Sentiment, s.sentiment)
	mux.HandleFunc("POST "+Moderations, s.moderate)
	mux.HandleFunc("POST "+Search, s.search)
	return mux
}

// Handler wraps the routes as RateLimit, then Logger, then Recovery, so a
// recovered panic is still logged as a 500 on the request's event.
func (s *Server) Handler(limiter *middleware.RateLimiter) http.Handler {
	var h http.Handler = middleware.Logger(middleware.Recovery(s.Routes()))
	if limiter != nil {
		h = limiter.Middleware(h)
	}
	return h
}

// Run serves handler on addr until ctx is done, then drains connections.
func Run(ctx context.Context, addr string, handler http.Handler) error {
	logger := logging.Get()

	srv := &http.Server{
		Addr:              addr,
		Handler:           gzhttp.GzipHandler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr)
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
	logger.Info("server stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server exited properly")
	return nil
}
