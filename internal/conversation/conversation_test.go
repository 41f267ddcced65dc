package conversation

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PauloHFS/llm-bootcamp/internal/db"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

func TestHistoryMessages(t *testing.T) {
	h := NewHistory("be helpful")
	h.Append(llm.UserMessage("hi"), llm.AssistantMessage("hello"))

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hello", msgs[2].Content)
	assert.Equal(t, 2, h.Len())

	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.Len(t, h.Messages(), 1)

	assert.Len(t, NewHistory("").Messages(), 0)
}

func TestWindowKeepsWholeGroups(t *testing.T) {
	h := NewHistory("sys")
	long := strings.Repeat("x", 400) // 100 tokens + overhead
	h.Append(
		llm.UserMessage(long),
		llm.AssistantMessage(long),
		llm.UserMessage("weather?"),
		llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Function: llm.Function{Name: "get_weather", Arguments: "{}"}}}},
		llm.ToolResultMessage("c1", "sunny"),
		llm.AssistantMessage("It is sunny."),
	)

	win := h.Window(50)
	require.Len(t, win, 5)
	assert.Equal(t, llm.RoleSystem, win[0].Role)
	assert.Equal(t, "weather?", win[1].Content)
	assert.Equal(t, "It is sunny.", win[4].Content)

	assert.Len(t, h.Window(0), 7)
	assert.Len(t, h.Window(10_000), 7)
}

func TestWindowAlwaysKeepsNewestGroup(t *testing.T) {
	h := NewHistory("")
	h.Append(llm.UserMessage("old"), llm.UserMessage(strings.Repeat("y", 1000)))

	win := h.Window(5)
	require.Len(t, win, 1)
	assert.Equal(t, 1000, len(win[0].Content))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, messageOverhead, EstimateTokens(llm.UserMessage("")))
	assert.Equal(t, 1+messageOverhead, EstimateTokens(llm.UserMessage("hé")))
	assert.Equal(t, 2+messageOverhead, EstimateTokens(llm.UserMessage("12345678")))
}

func newStore(t *testing.T) *Store {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "state.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn, db.SetState))
	return NewStore(conn)
}

func TestStoreRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Create(ctx, "interview prep", "you are a helpful data scientist interview assistant.")
	require.NoError(t, err)

	call := llm.ToolCall{ID: "call_1", Type: "function", Function: llm.Function{Name: "calculate", Arguments: `{"expression":"2+2"}`}}
	require.NoError(t, s.Append(ctx, id,
		llm.UserMessage("what is 2+2?"),
		llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}},
		llm.ToolResultMessage("call_1", "4"),
		llm.AssistantMessage("4"),
	))

	h, err := s.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "you are a helpful data scientist interview assistant.", h.System)
	turns := h.Turns()
	require.Len(t, turns, 4)
	assert.Equal(t, []llm.ToolCall{call}, turns[1].ToolCalls)
	assert.Equal(t, "call_1", turns[2].ToolCallID)
	assert.Equal(t, llm.RoleTool, turns[2].Role)
}

func TestStoreListAndDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		id, err := s.Create(ctx, title, "")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.NoError(t, s.Append(ctx, ids[0], llm.UserMessage("hi")))

	page, err := s.List(ctx, db.PagingParams{Page: 1, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalItems)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasNext())

	require.NoError(t, s.Delete(ctx, ids[0]))
	assert.ErrorIs(t, s.Delete(ctx, ids[0]), ErrNotFound)

	_, err = s.Load(ctx, ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Append(ctx, ids[0], llm.UserMessage("x")), ErrNotFound)
}
