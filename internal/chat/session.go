// Package chat implements the interview-assistant chatbot: a session that
// keeps history, optionally streams, and optionally persists turns.
package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/PauloHFS/llm-bootcamp/internal/conversation"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
)

const (
	DefaultSystemPrompt = "you are a helpful data scientist interview assistant."
	DefaultTemperature  = 0.5
	DefaultMaxTokens    = 1024
	DefaultTopP         = 1.0

	// DefaultTokenBudget bounds the history sent with each request.
	DefaultTokenBudget = 6000
)

type Reply struct {
	Content string
	Usage   llm.Usage
}

type Session struct {
	Client      llm.LLMClient
	Model       string
	History     *conversation.History
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stream      bool
	TokenBudget int

	// Store and ID enable persistence; both must be set.
	Store *conversation.Store
	ID    string
}

func NewSession(client llm.LLMClient, model, system string) *Session {
	return &Session{
		Client:      client,
		Model:       model,
		History:     conversation.NewHistory(system),
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		TopP:        DefaultTopP,
		Stream:      true,
		TokenBudget: DefaultTokenBudget,
	}
}

// Resume loads a persisted conversation into a new session.
func Resume(ctx context.Context, client llm.LLMClient, model string, store *conversation.Store, id string) (*Session, error) {
	h, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s := NewSession(client, model, h.System)
	s.History = h
	s.Store = store
	s.ID = id
	return s, nil
}

// Persist creates a stored conversation for the session and writes the
// turns recorded so far.
func (s *Session) Persist(ctx context.Context, store *conversation.Store, title string) error {
	id, err := store.Create(ctx, title, s.History.System)
	if err != nil {
		return err
	}
	if turns := s.History.Turns(); len(turns) > 0 {
		if err := store.Append(ctx, id, turns...); err != nil {
			return err
		}
	}
	s.Store = store
	s.ID = id
	return nil
}

func (s *Session) request() llm.CompletionRequest {
	return llm.CompletionRequest{
		Model:       s.Model,
		Messages:    s.History.Window(s.TokenBudget),
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		TopP:        s.TopP,
	}
}

// Send records input as a user turn, asks the model and records the reply.
// When streaming, onDelta receives every content fragment as it arrives.
// On failure the user turn is rolled back so the history stays paired.
func (s *Session) Send(ctx context.Context, input string, onDelta func(string)) (*Reply, error) {
	mark := s.History.Len()
	user := llm.UserMessage(input)
	s.History.Append(user)

	reply, err := s.complete(ctx, onDelta)
	if err != nil {
		s.History.Truncate(mark)
		return nil, err
	}

	assistant := llm.AssistantMessage(reply.Content)
	s.History.Append(assistant)

	if s.Store != nil && s.ID != "" {
		if err := s.Store.Append(ctx, s.ID, user, assistant); err != nil {
			logging.Get().WarnContext(ctx, "failed to persist chat turn",
				slog.String("conversation_id", s.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	return reply, nil
}

func (s *Session) complete(ctx context.Context, onDelta func(string)) (*Reply, error) {
	req := s.request()

	if !s.Stream {
		resp, err := s.Client.Generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("chat completion failed: %w", err)
		}
		if resp.FirstMessage() == nil {
			return nil, llm.ErrEmptyResponse
		}
		return &Reply{Content: resp.Text(), Usage: resp.Usage}, nil
	}

	req.Stream = true
	req.StreamOptions = &llm.StreamOptions{IncludeUsage: true}
	ch, err := s.Client.Stream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat stream failed: %w", err)
	}

	text, usage, err := llm.Collect(ch, onDelta)
	if err == nil {
		// A cancelled stream can close without an error chunk.
		err = ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("chat stream interrupted: %w", err)
	}

	reply := &Reply{Content: text}
	if usage != nil {
		reply.Usage = *usage
	}
	return reply, nil
}

// Reset clears the in-memory turns. Stored messages are kept.
func (s *Session) Reset() {
	s.History.Reset()
}
