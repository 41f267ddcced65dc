package latency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

// tickClock advances one second every time it is read.
type tickClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *tickClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fakeResponder struct {
	got llm.ResponseRequest
	err error
}

func (f *fakeResponder) CreateResponse(_ context.Context, req llm.ResponseRequest) (*llm.Response, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Output: []llm.ResponseOutputItem{{
		Type:    "message",
		Role:    "assistant",
		Content: []llm.ResponseContent{{Type: "output_text", Text: "4"}},
	}}}, nil
}

func TestRun(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "2 + 2 is 4"})
	responder := &fakeResponder{}
	clock := &tickClock{}

	b := New(client, responder, "gpt-4o")
	b.now = clock.now

	ms, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, ms, 3)

	assert.Equal(t, []string{Regular, Streaming, Responses}, []string{ms[0].Name, ms[1].Name, ms[2].Name})
	for _, m := range ms {
		assert.NoError(t, m.Err)
		assert.Greater(t, m.Total, time.Duration(0))
	}
	assert.Equal(t, "2 + 2 is 4", ms[0].Output)
	assert.Equal(t, "2 + 2 is 4", ms[1].Output)
	assert.Equal(t, "4", ms[2].Output)

	assert.Greater(t, ms[1].FirstToken, time.Duration(0))
	assert.Less(t, ms[1].FirstToken, ms[1].Total)
	assert.Zero(t, ms[0].FirstToken)

	calls := client.Calls()
	require.Len(t, calls, 2)
	assert.False(t, calls[0].Stream)
	assert.True(t, calls[1].Stream)
	assert.Equal(t, DefaultMaxTokens, calls[0].MaxTokens)
	assert.Equal(t, DefaultPrompt, calls[0].Messages[0].Content)
	assert.Equal(t, DefaultPrompt, responder.got.Input)
}

func TestRunRecordsFailures(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Err: errors.New("overloaded")})
	b := New(client, &fakeResponder{err: errors.New("not found")}, "m")

	ms, err := b.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.EqualError(t, ms[0].Err, "overloaded")
	assert.Error(t, ms[1].Err)
	assert.EqualError(t, ms[2].Err, "not found")
}

func TestRunWithoutResponses(t *testing.T) {
	b := New(llm.NewMockClient(llm.MockResponse{Content: "4"}), nil, "m")
	ms, err := b.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, ms, 2)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(llm.NewMockClient(), nil, "m").Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompare(t *testing.T) {
	assert.InDelta(t, -25.0, Compare(4*time.Second, 3*time.Second), 1e-9)
	assert.InDelta(t, 50.0, Compare(2*time.Second, 3*time.Second), 1e-9)
	assert.Zero(t, Compare(0, time.Second))

	assert.Equal(t, "Streaming API is 25.0% faster", Summary(Streaming, 4*time.Second, 3*time.Second))
	assert.Equal(t, "Responses API is 50.0% slower", Summary(Responses, 2*time.Second, 3*time.Second))
}
