// Package anthropic serves chat completions from the Anthropic Messages API
// behind llm.LLMClient. Tool calling, structured output and embeddings are
// not mapped and report llm.ErrUnsupported.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

const (
	DefaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 1024
)

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxRetries int
	HTTPClient *http.Client
}

type Provider struct {
	client anthropic.Client
	model  string
}

var _ llm.LLMClient = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrNoAPIKey
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Provider{client: anthropic.NewClient(opts...), model: model}, nil
}

func (p *Provider) Model() string {
	return p.model
}

func (p *Provider) Generate(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, err
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text.WriteString(variant.Text)
		}
	}

	u := llm.Usage{
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens

	return &llm.CompletionResponse{
		ID:     msg.ID,
		Object: "chat.completion",
		Model:  string(msg.Model),
		Choices: []llm.Choice{{
			Message:      &llm.Message{Role: llm.RoleAssistant, Content: text.String()},
			FinishReason: finishReason(string(msg.StopReason)),
		}},
		Usage: u,
	}, nil
}

func (p *Provider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	params, err := p.params(req)
	if err != nil {
		return nil, err
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	ch := make(chan llm.StreamChunk)

	go func() {
		defer close(ch)
		defer stream.Close()

		emit := func(chunk llm.StreamChunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var (
			model string
			usage llm.Usage
		)
		for stream.Next() {
			switch ev := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				model = string(ev.Message.Model)
				usage.PromptTokens = int(ev.Message.Usage.InputTokens)
			case anthropic.ContentBlockDeltaEvent:
				if delta, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok {
					if !emit(textChunk(model, delta.Text, "")) {
						return
					}
				}
			case anthropic.MessageDeltaEvent:
				usage.CompletionTokens = int(ev.Usage.OutputTokens)
				usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
				chunk := textChunk(model, "", finishReason(string(ev.Delta.StopReason)))
				final := usage
				chunk.Usage = &final
				if !emit(chunk) {
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			emit(llm.StreamChunk{Err: mapError(err)})
		}
	}()

	return ch, nil
}

func (p *Provider) Embed(context.Context, llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	return nil, fmt.Errorf("anthropic embeddings: %w", llm.ErrUnsupported)
}

func (p *Provider) params(req llm.CompletionRequest) (anthropic.MessageNewParams, error) {
	if len(req.Tools) > 0 || req.ToolChoice != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic tools: %w", llm.ErrUnsupported)
	}
	if req.ResponseFormat != nil {
		return anthropic.MessageNewParams{}, fmt.Errorf("anthropic response_format: %w", llm.ErrUnsupported)
	}

	model := req.Model
	if model == "" {
		model = p.model
	}
	maxTokens := int64(defaultMaxTokens)
	if req.MaxTokens > 0 {
		maxTokens = int64(req.MaxTokens)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
	}

	var system []string
	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleUser:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case llm.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return params, fmt.Errorf("anthropic %s messages: %w", m.Role, llm.ErrUnsupported)
		}
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}

	// Claude models reject temperature and top_p together. Temperature wins,
	// and a top_p of 1 is the default anyway.
	switch {
	case req.Temperature > 0:
		params.Temperature = anthropic.Float(req.Temperature)
	case req.TopP > 0 && req.TopP < 1:
		params.TopP = anthropic.Float(req.TopP)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}

	return params, nil
}

func textChunk(model, text, finish string) llm.StreamChunk {
	return llm.StreamChunk{
		Object: "chat.completion.chunk",
		Model:  model,
		Choices: []llm.StreamChoice{{
			Delta:        llm.Message{Role: llm.RoleAssistant, Content: text},
			FinishReason: finish,
		}},
	}
}

func finishReason(stop string) string {
	switch stop {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	case "tool_use":
		return "tool_calls"
	default:
		return stop
	}
}

func mapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return llm.ErrorFromStatus(apiErr.StatusCode, apiErr.Error(), header)
	}
	return err
}
