package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/PauloHFS/llm-bootcamp/internal/config"
	"github.com/PauloHFS/llm-bootcamp/internal/conversation"
	"github.com/PauloHFS/llm-bootcamp/internal/db"
	"github.com/PauloHFS/llm-bootcamp/internal/httpclient"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/llm/anthropic"
	"github.com/PauloHFS/llm-bootcamp/internal/llm/openaisdk"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/vector"
)

// app holds what the commands share: config, API clients and database
// handles. Clients and databases are opened on first use.
type app struct {
	opts   options
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer

	native  *llm.Client
	chat    llm.LLMClient
	state   *sql.DB
	demo    *db.DualPool
	closers []func()
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close runs the cleanups in reverse order. It is safe to call twice.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) httpClient(name string) *httpclient.Client {
	// Per-request deadlines come from the llm client so streams are not cut off.
	return httpclient.New(httpclient.Config{Name: name})
}

// openAI returns the native client for the endpoints only OpenAI serves:
// completions, images, audio, moderation, models and responses.
func (a *app) openAI() (*llm.Client, error) {
	if a.native != nil {
		return a.native, nil
	}
	if err := a.cfg.RequireOpenAIKey(); err != nil {
		return nil, err
	}
	c, err := llm.NewClient(
		llm.WithBaseURL(a.cfg.OpenAIBaseURL),
		llm.WithAPIKey(a.cfg.OpenAIAPIKey),
		llm.WithOrganization(a.cfg.OpenAIOrganization),
		llm.WithModel(a.cfg.Models.Chat),
		llm.WithTimeout(a.cfg.Timeout),
		llm.WithMaxRetries(a.cfg.MaxRetries),
		llm.WithRateLimit(a.cfg.RateLimit, a.cfg.RateBurst),
		llm.WithHTTPClient(a.httpClient("openai").Client),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
	}
	a.native = c
	return c, nil
}

// baseURL returns a configured base URL, or "" to keep the preset's.
func (a *app) baseURL() string {
	if a.cfg.OpenAIBaseURL == llm.URLOpenAI {
		return ""
	}
	return a.cfg.OpenAIBaseURL
}

// chatClient returns the chat client for the configured provider, instrumented with
// metrics and tracing.
func (a *app) chatClient() (llm.LLMClient, error) {
	if a.chat != nil {
		return a.chat, nil
	}
	if err := a.cfg.RequireAPIKey(); err != nil {
		return nil, err
	}

	var (
		client llm.LLMClient
		err    error
	)
	switch a.cfg.Provider {
	case config.ProviderOpenAI:
		client, err = a.openAI()
	case config.ProviderOpenRouter:
		client, err = llm.NewClient(
			llm.WithPreset(llm.PresetOpenRouter, a.baseURL()),
			llm.WithAPIKey(a.cfg.OpenAIAPIKey),
			llm.WithModel(a.cfg.Models.Chat),
			llm.WithTimeout(a.cfg.Timeout),
			llm.WithMaxRetries(a.cfg.MaxRetries),
			llm.WithRateLimit(a.cfg.RateLimit, a.cfg.RateBurst),
			llm.WithHTTPClient(a.httpClient("openrouter").Client),
		)
	case config.ProviderOllama:
		client, err = llm.NewClient(
			llm.WithPreset(llm.PresetOllama, a.baseURL()),
			llm.WithModel(a.cfg.Models.Chat),
			llm.WithTimeout(a.cfg.Timeout),
			llm.WithMaxRetries(a.cfg.MaxRetries),
			llm.WithHTTPClient(a.httpClient("ollama").Client),
		)
	case config.ProviderOpenAISDK:
		client, err = openaisdk.New(openaisdk.Config{
			APIKey:       a.cfg.OpenAIAPIKey,
			BaseURL:      a.cfg.OpenAIBaseURL,
			Organization: a.cfg.OpenAIOrganization,
			Model:        a.cfg.Models.Chat,
			MaxRetries:   a.cfg.MaxRetries,
			Timeout:      a.cfg.Timeout,
			HTTPClient:   a.httpClient("openai-sdk").Client,
		})
	case config.ProviderAnthropic:
		client, err = anthropic.New(anthropic.Config{
			APIKey:     a.cfg.AnthropicAPIKey,
			Model:      a.chatModel(),
			MaxRetries: a.cfg.MaxRetries,
			HTTPClient: a.httpClient("anthropic").Client,
		})
	default:
		err = fmt.Errorf("unknown provider %q", a.cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", a.cfg.Provider, err)
	}

	a.chat = llm.NewMetricsMiddleware(client, a.cfg.Provider)
	logging.Get().Debug("llm client ready", "provider", a.cfg.Provider, "model", a.chatModel())
	return a.chat, nil
}

// chatModel is the model sent with chat requests. Anthropic ignores the
// OpenAI default and falls back to its own unless one was chosen explicitly.
func (a *app) chatModel() string {
	if a.cfg.Provider == config.ProviderAnthropic && a.opts.model == "" &&
		a.cfg.Models.Chat == config.Defaults().Models.Chat {
		return ""
	}
	return a.cfg.Models.Chat
}

// embedder picks the embedding backend. Anthropic has no embeddings
// endpoint, so that provider embeds through OpenAI.
func (a *app) embedder() (*vector.Embedder, error) {
	var (
		client llm.LLMClient
		err    error
	)
	if a.cfg.Provider == config.ProviderAnthropic {
		client, err = a.openAI()
	} else {
		client, err = a.chatClient()
	}
	if err != nil {
		return nil, err
	}
	return vector.NewEmbedder(client, a.cfg.Models.Embedding, vector.DefaultCacheSize)
}

// stateDB opens the conversation and document store and migrates it.
func (a *app) stateDB(ctx context.Context) (*sql.DB, error) {
	if a.state != nil {
		return a.state, nil
	}
	conn, err := db.Open(a.cfg.StateDatabaseURL, false)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, conn, db.SetState); err != nil {
		conn.Close()
		return nil, err
	}
	a.state = conn
	a.onClose(func() { conn.Close() })
	return conn, nil
}

func (a *app) store(ctx context.Context) (*conversation.Store, error) {
	conn, err := a.stateDB(ctx)
	if err != nil {
		return nil, err
	}
	return conversation.NewStore(conn), nil
}

func (a *app) index(ctx context.Context) (*vector.Index, error) {
	conn, err := a.stateDB(ctx)
	if err != nil {
		return nil, err
	}
	e, err := a.embedder()
	if err != nil {
		return nil, err
	}
	return vector.NewIndex(conn, e), nil
}

// demoDB opens the employees database, creating and seeding it when needed.
func (a *app) demoDB(ctx context.Context) (*db.DualPool, error) {
	if a.demo != nil {
		return a.demo, nil
	}
	pool, err := db.NewDualPool(a.cfg.DemoDatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool.Write, db.SetDemo); err != nil {
		pool.Close()
		return nil, err
	}
	if err := db.Seed(ctx, pool.Write); err != nil {
		pool.Close()
		return nil, err
	}
	a.demo = pool
	a.onClose(func() { pool.Close() })
	return pool, nil
}
