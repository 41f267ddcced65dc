package cmd

import (
	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/chat"
	"github.com/PauloHFS/llm-bootcamp/internal/conversation"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/middleware"
	"github.com/PauloHFS/llm-bootcamp/internal/moderation"
	"github.com/PauloHFS/llm-bootcamp/internal/sentiment"
	"github.com/PauloHFS/llm-bootcamp/internal/server"
	"github.com/PauloHFS/llm-bootcamp/internal/sqlgen"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr      string
		system    string
		rps       float64
		burst     int
		stateless bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve chat, text-to-SQL, sentiment, moderation and search over HTTP",
		Long: `Serve the JSON API:

  GET  /health
  GET  /metrics
  POST /v1/chat         {"session_id", "message", "stream"}
  POST /v1/sql          {"question", "execute"}
  POST /v1/sentiment    {"texts"}
  POST /v1/moderations  {"input"}
  POST /v1/search       {"query", "limit"}

Streaming chat answers with server-sent events named token, done and error.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.Get()

			client, err := a.chatClient()
			if err != nil {
				return err
			}
			deps := server.Deps{
				Client:    client,
				ChatModel: a.chatModel(),
				System:    system,
				Sentiment: sentiment.NewAnalyzer(client, a.chatModel()),
			}

			state, err := a.stateDB(ctx)
			if err != nil {
				return err
			}
			deps.StateDB = state
			if !stateless {
				deps.Store = conversation.NewStore(state)
			}

			pool, err := a.demoDB(ctx)
			if err != nil {
				return err
			}
			deps.DemoDB = pool.Read
			deps.SQL = sqlgen.NewGenerator(client, sqlgen.DBSchema(pool.Read), a.chatModel())

			// Moderation and search need OpenAI endpoints; without a key the
			// routes answer 503.
			if native, err := a.openAI(); err == nil {
				deps.Moderation = moderation.NewService(native, a.cfg.Models.Moderation)
			} else {
				logger.Warn("moderation disabled", "error", err)
			}
			if idx, err := a.index(ctx); err == nil {
				deps.Index = idx
			} else {
				logger.Warn("document search disabled", "error", err)
			}

			limiter := middleware.NewRateLimiter(rps, burst)
			go limiter.Cleanup(ctx)

			if addr == "" {
				addr = a.cfg.ServerAddr
			}
			return server.Run(ctx, addr, server.New(deps).Handler(limiter))
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "listen address (default from config)")
	f.StringVar(&system, "system", chat.DefaultSystemPrompt, "system prompt for new chat sessions")
	f.Float64Var(&rps, "rps", 10, "requests per second allowed per client IP")
	f.IntVar(&burst, "burst", 20, "burst size per client IP")
	f.BoolVar(&stateless, "stateless", false, "do not persist chat sessions")
	return cmd
}
