package chat

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PauloHFS/llm-bootcamp/internal/conversation"
	"github.com/PauloHFS/llm-bootcamp/internal/db"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

func TestSendStreaming(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "Gradient descent minimizes loss."})
	s := NewSession(client, "gpt-4o-mini", DefaultSystemPrompt)

	var deltas []string
	reply, err := s.Send(context.Background(), "What is gradient descent?", func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)

	assert.Equal(t, "Gradient descent minimizes loss.", reply.Content)
	assert.Equal(t, reply.Content, strings.Join(deltas, ""))
	assert.Greater(t, len(deltas), 1)
	assert.Positive(t, reply.Usage.TotalTokens)

	req := client.Calls()[0]
	assert.True(t, req.Stream)
	assert.InDelta(t, 0.5, req.Temperature, 1e-9)
	assert.Equal(t, 1024, req.MaxTokens)
	assert.InDelta(t, 1.0, req.TopP, 1e-9)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, DefaultSystemPrompt, req.Messages[0].Content)

	turns := s.History.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, llm.RoleAssistant, turns[1].Role)
	assert.Equal(t, reply.Content, turns[1].Content)
}

func TestSendNonStreamingKeepsHistory(t *testing.T) {
	client := llm.NewMockClient(
		llm.MockResponse{Content: "first"},
		llm.MockResponse{Content: "second"},
	)
	s := NewSession(client, "m", DefaultSystemPrompt)
	s.Stream = false
	ctx := context.Background()

	_, err := s.Send(ctx, "one", nil)
	require.NoError(t, err)
	reply, err := s.Send(ctx, "two", nil)
	require.NoError(t, err)
	assert.Equal(t, "second", reply.Content)

	req := client.Calls()[1]
	assert.False(t, req.Stream)
	require.Len(t, req.Messages, 4)
	assert.Equal(t, "first", req.Messages[2].Content)
	assert.Equal(t, "two", req.Messages[3].Content)
}

func TestSendRollsBackOnError(t *testing.T) {
	boom := errors.New("boom")
	for _, stream := range []bool{true, false} {
		s := NewSession(llm.NewMockClient(llm.MockResponse{Err: boom}), "m", "")
		s.Stream = stream
		_, err := s.Send(context.Background(), "hi", nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 0, s.History.Len())
	}
}

// cancelledStream sends one fragment, cancels the caller's context and
// closes the channel without an error chunk, the way a transport does when
// the context ends mid-stream.
type cancelledStream struct {
	llm.MockClient
	cancel context.CancelFunc
}

func (c *cancelledStream) Stream(ctx context.Context, req llm.CompletionRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Choices: []llm.StreamChoice{{Delta: llm.Message{Role: llm.RoleAssistant, Content: "Overfitting is when"}}}}
	c.cancel()
	close(ch)
	return ch, nil
}

func TestSendDropsCancelledStream(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "state.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn, db.SetState))
	store := conversation.NewStore(conn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewSession(&cancelledStream{cancel: cancel}, "m", DefaultSystemPrompt)
	require.NoError(t, s.Persist(context.Background(), store, "cut off"))

	var got strings.Builder
	_, err = s.Send(ctx, "what is overfitting?", func(d string) { got.WriteString(d) })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "Overfitting is when", got.String())
	assert.Equal(t, 0, s.History.Len())

	stored, err := store.Load(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Len())
}

func TestSessionPersists(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "state.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, conn, db.SetState))
	store := conversation.NewStore(conn)

	client := llm.NewMockClient(llm.MockResponse{Content: "answer"})
	s := NewSession(client, "m", DefaultSystemPrompt)
	_, err = s.Send(ctx, "before persist", nil)
	require.NoError(t, err)
	require.NoError(t, s.Persist(ctx, store, "interview prep"))
	_, err = s.Send(ctx, "after persist", nil)
	require.NoError(t, err)

	resumed, err := Resume(ctx, client, "m", store, s.ID)
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, resumed.History.System)
	assert.Equal(t, 4, resumed.History.Len())
	assert.Equal(t, "after persist", resumed.History.Turns()[2].Content)
}

func TestREPL(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "Hello there."})
	s := NewSession(client, "m", DefaultSystemPrompt)

	in := strings.NewReader("\nhelp\nhi\nhistory\nreset\nhistory\nexit\nnever read\n")
	var out bytes.Buffer
	require.NoError(t, REPL(context.Background(), s, in, &out))

	text := out.String()
	assert.Contains(t, text, banner)
	assert.Contains(t, text, "Please enter a message or use 'help' for commands.")
	assert.Contains(t, text, "'exit' - Quit the application")
	assert.Contains(t, text, "Hello there.")
	assert.Contains(t, text, "user: hi")
	assert.Contains(t, text, "No messages yet.")
	assert.Contains(t, text, goodbye)
	assert.Len(t, client.Calls(), 1)
}

func TestREPLContinuesAfterError(t *testing.T) {
	client := llm.NewMockClient(
		llm.MockResponse{Err: errors.New("rate limited")},
		llm.MockResponse{Content: "ok"},
	)
	s := NewSession(client, "m", "")

	var out bytes.Buffer
	require.NoError(t, REPL(context.Background(), s, strings.NewReader("a\nb\n"), &out))
	assert.Contains(t, out.String(), "Error: chat stream interrupted: rate limited")
	assert.Contains(t, out.String(), "ok")
	assert.Equal(t, 2, s.History.Len())
}

func TestRunDemo(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "done"})
	s := NewSession(client, "m", DefaultSystemPrompt)

	var out bytes.Buffer
	require.NoError(t, RunDemo(context.Background(), s, &out))

	calls := client.Calls()
	require.Len(t, calls, 3)
	for i, d := range DemoPrompts {
		assert.InDelta(t, d.Temperature, calls[i].Temperature, 1e-9)
		require.Len(t, calls[i].Messages, 1)
		assert.Equal(t, d.Prompt, calls[i].Messages[0].Content)
	}
	assert.Equal(t, 0, s.History.Len())
	assert.Contains(t, out.String(), "Example 3: Math Problem")
}
