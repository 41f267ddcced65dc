// Package cmd implements the bootcamp command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PauloHFS/llm-bootcamp/internal/config"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/metrics"
)

// Version is set at build time with -ldflags "-X .../internal/cmd.Version=...".
var Version = "dev"

type options struct {
	verbose    bool
	quiet      bool
	noColor    bool
	configPath string
	provider   string
	model      string
}

// NewRootCmd builds the full command tree. Each call returns an independent
// tree so tests can run commands side by side.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "bootcamp",
		Short: "Hands-on tour of the OpenAI APIs",
		Long: `bootcamp walks through the OpenAI platform one API at a time: models,
completions, chat, embeddings, images, audio, moderation, the Responses API,
and a handful of small applications built on top of them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.BoolVarP(&a.opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVarP(&a.opts.quiet, "quiet", "q", false, "only log errors")
	flags.BoolVar(&a.opts.noColor, "no-color", false, "disable colored output")
	flags.StringVar(&a.opts.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&a.opts.provider, "provider", "", "LLM provider: openai, openai-sdk, anthropic, ollama or openrouter")
	flags.StringVar(&a.opts.model, "model", "", "override the chat model")
	root.MarkFlagsMutuallyExclusive("verbose", "quiet")

	root.AddCommand(
		newVersionCmd(),
		newModelsCmd(a),
		newCompleteCmd(a),
		newSummarizeCmd(a),
		newTranslateCmd(a),
		newChatCmd(a),
		newHistoryCmd(a),
		newEmbedCmd(a),
		newImageCmd(a),
		newAudioCmd(a),
		newSpeakCmd(a),
		newModerateCmd(a),
		newAssistantCmd(a),
		newLatencyCmd(a),
		newSentimentCmd(a),
		newSQLCmd(a),
		newDBCmd(a),
		newAgentCmd(a),
		newServeCmd(a),
	)
	return root, a
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signalContext(context.Background())
	defer stop()

	root, a := newRoot()
	defer a.close()

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return 130
		}
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()

	if a.opts.noColor {
		color.NoColor = true
	}
	if a.opts.configPath != "" {
		if err := os.Setenv("CONFIG_PATH", a.opts.configPath); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.opts.provider != "" {
		cfg.Provider = a.opts.provider
	}
	if a.opts.model != "" {
		cfg.Models.Chat = a.opts.model
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Log.Level
	switch {
	case a.opts.verbose:
		level = "debug"
	case a.opts.quiet:
		level = "error"
	}
	a.onClose(logging.Init(logging.Options{
		Level:      level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}))

	ctx := cmd.Context()
	shutdown, err := metrics.InitTracing(ctx, metrics.TracingOptions{
		Exporter: cfg.TraceExporter,
		Endpoint: cfg.TraceEndpoint,
		Output:   a.errOut,
	})
	if err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	a.onClose(func() {
		if err := shutdown(context.Background()); err != nil {
			logging.Get().Warn("failed to flush traces", "error", err)
		}
	})

	if cfg.MetricsAddr != "" && cmd.Name() != "serve" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logging.Get().Error("metrics server failed", "error", err)
			}
		}()
	}

	logging.Get().Debug("config loaded",
		"command", cmd.CommandPath(),
		"provider", cfg.Provider,
		"chat_model", cfg.Models.Chat,
	)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the bootcamp version",
		Args:  cobra.NoArgs,
		// version needs no config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bootcamp %s\n", Version)
		},
	}
}
