// Package openaisdk adapts the official openai-go client to llm.LLMClient so
// the rest of the code base can switch between it and the native client.
package openaisdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

type Config struct {
	APIKey       string
	BaseURL      string
	Organization string
	Model        string
	MaxRetries   int
	Timeout      time.Duration
	HTTPClient   *http.Client
}

type Provider struct {
	client  openai.Client
	model   string
	timeout time.Duration
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
		opts = append(opts, option.WithBaseURL(baseURL(cfg.BaseURL)))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Provider{
		client:  openai.NewClient(opts...),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// baseURL turns "https://api.openai.com" into the "/v1/" root the SDK expects.
func baseURL(raw string) string {
	u := strings.TrimRight(raw, "/")
	if !strings.HasSuffix(u, "/v1") {
		u += "/v1"
	}
	return u + "/"
}

func (p *Provider) Model() string {
	return p.model
}

func (p *Provider) Generate(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.chatParams(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, llm.ErrEmptyResponse
	}

	out := &llm.CompletionResponse{
		ID:                resp.ID,
		Object:            "chat.completion",
		Created:           resp.Created,
		Model:             resp.Model,
		SystemFingerprint: resp.SystemFingerprint,
		Usage:             usage(resp.Usage),
	}
	for _, c := range resp.Choices {
		msg := &llm.Message{
			Role:    llm.RoleAssistant,
			Content: c.Message.Content,
		}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: llm.Function{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out.Choices = append(out.Choices, llm.Choice{
			Index:        int(c.Index),
			Message:      msg,
			FinishReason: string(c.FinishReason),
		})
	}
	return out, nil
}

// withTimeout bounds one non-streaming call, matching the native client.
func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

// Stream is bounded only by ctx. Timeout is not applied: a long reply can
// legitimately outlast it while tokens keep arriving, and the native client
// streams the same way.
func (p *Provider) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	params, err := p.chatParams(req)
	if err != nil {
		return nil, err
	}
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{IncludeUsage: openai.Bool(true)}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
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

		for stream.Next() {
			cur := stream.Current()
			chunk := llm.StreamChunk{
				ID:      cur.ID,
				Object:  "chat.completion.chunk",
				Created: cur.Created,
				Model:   cur.Model,
			}
			for _, c := range cur.Choices {
				chunk.Choices = append(chunk.Choices, llm.StreamChoice{
					Index:        int(c.Index),
					Delta:        llm.Message{Role: llm.Role(c.Delta.Role), Content: c.Delta.Content},
					FinishReason: string(c.FinishReason),
				})
			}
			if cur.Usage.TotalTokens > 0 {
				u := usage(cur.Usage)
				chunk.Usage = &u
			}
			if !emit(chunk) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			emit(llm.StreamChunk{Err: mapError(err)})
		}
	}()

	return ch, nil
}

func (p *Provider) Embed(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	var inputs []string
	switch v := req.Input.(type) {
	case string:
		inputs = []string{v}
	case []string:
		inputs = v
	default:
		return nil, &llm.InvalidRequestError{APIError: llm.APIError{Message: fmt.Sprintf("unsupported embedding input %T", req.Input)}}
	}
	if len(inputs) == 0 {
		return nil, &llm.InvalidRequestError{APIError: llm.APIError{Message: "input is required"}}
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(req.Model),
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
	}
	if req.Dimensions != nil {
		params.Dimensions = openai.Int(int64(*req.Dimensions))
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, mapError(err)
	}

	out := &llm.EmbeddingResponse{
		Object: "list",
		Model:  resp.Model,
		Usage: llm.Usage{
			PromptTokens: int(resp.Usage.PromptTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
	for _, d := range resp.Data {
		out.Data = append(out.Data, llm.Embedding{
			Object:    "embedding",
			Embedding: d.Embedding,
			Index:     int(d.Index),
		})
	}
	return out, nil
}

func (p *Provider) chatParams(req llm.CompletionRequest) (openai.ChatCompletionNewParams, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	if model == "" {
		return openai.ChatCompletionNewParams{}, &llm.InvalidRequestError{APIError: llm.APIError{Message: "model is required"}}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages(req.Messages),
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.PresencePenalty != 0 {
		params.PresencePenalty = openai.Float(req.PresencePenalty)
	}
	if req.FrequencyPenalty != 0 {
		params.FrequencyPenalty = openai.Float(req.FrequencyPenalty)
	}
	if req.User != "" {
		params.User = openai.String(req.User)
	}

	for _, t := range req.Tools {
		fn := shared.FunctionDefinitionParam{
			Name:       t.Function.Name,
			Parameters: shared.FunctionParameters(t.Function.Parameters),
		}
		if t.Function.Description != "" {
			fn.Description = openai.String(t.Function.Description)
		}
		if t.Function.Strict {
			fn.Strict = openai.Bool(true)
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{Function: fn})
	}

	if tc := req.ToolChoice; tc != nil {
		if tc.Function != nil {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
				OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
					Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: tc.Function.Name},
				},
			}
		} else {
			params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openai.String(tc.Type)}
		}
	}

	if rf := req.ResponseFormat; rf != nil {
		switch rf.Type {
		case "json_schema":
			if rf.JSONSchema == nil {
				return params, &llm.InvalidRequestError{APIError: llm.APIError{Message: "json_schema response format needs a schema"}}
			}
			schema := shared.ResponseFormatJSONSchemaJSONSchemaParam{
				Name:   rf.JSONSchema.Name,
				Schema: rf.JSONSchema.Schema,
				Strict: openai.Bool(rf.JSONSchema.Strict),
			}
			if rf.JSONSchema.Description != "" {
				schema.Description = openai.String(rf.JSONSchema.Description)
			}
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{JSONSchema: schema},
			}
		case "json_object":
			val := shared.NewResponseFormatJSONObjectParam()
			params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{OfJSONObject: &val}
		}
	}

	return params, nil
}

func messages(in []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(in))
	for _, m := range in {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case llm.RoleAssistant:
			if len(m.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(m.Content))
				continue
			}
			msg := &openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				msg.Content.OfString = openai.String(m.Content)
			}
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Function.Name,
						Arguments: tc.Function.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: msg})
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func usage(u openai.CompletionUsage) llm.Usage {
	return llm.Usage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
	}
}

func mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		msg := apiErr.Message
		if msg == "" {
			msg = apiErr.Error()
		}
		return llm.ErrorFromStatus(apiErr.StatusCode, msg, header)
	}
	return err
}
