package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseHandler(t *testing.T, events ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, e := range events {
			fmt.Fprintf(w, "%s\n\n", e)
			flusher.Flush()
		}
	}
}

func TestStreamSSE(t *testing.T) {
	c := newTestClient(t, sseHandler(t,
		": keep-alive",
		`data: {"id":"1","choices":[{"index":0,"delta":{"role":"assistant","content":"Hello"}}]}`,
		`data: {"id":"1","choices":[{"index":0,"delta":{"content":" world"},"finish_reason":"stop"}]}`,
		`data: {"id":"1","choices":[],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
		"data: [DONE]",
	))

	ch, err := c.Stream(context.Background(), CompletionRequest{Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)

	var deltas []string
	text, usage, err := Collect(ch, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
	assert.Equal(t, []string{"Hello", " world"}, deltas)
	require.NotNil(t, usage)
	assert.Equal(t, 5, usage.TotalTokens)
}

func TestStreamErrorEvent(t *testing.T) {
	c := newTestClient(t, sseHandler(t,
		`data: {"choices":[{"delta":{"content":"partial"}}]}`,
		`data: {"error":{"message":"server exploded","type":"server_error"}}`,
	))

	ch, err := c.Stream(context.Background(), CompletionRequest{Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)

	text, _, err := Collect(ch, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server exploded")
	assert.Equal(t, "partial", text)
}

func TestStreamHTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	_, err := c.Stream(context.Background(), CompletionRequest{Messages: []Message{UserMessage("hi")}})
	assert.True(t, IsAuthError(err))
}

func TestStreamNDJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintln(w, `{"model":"llama3.2","message":{"role":"assistant","content":"Hel"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3.2","message":{"role":"assistant","content":"lo"},"done":false}`)
		fmt.Fprintln(w, `{"model":"llama3.2","message":{"role":"assistant","content":""},"done":true,"prompt_eval_count":4,"eval_count":2}`)
	}, WithStreamingFormat(StreamingFormatNDJSON))

	ch, err := c.Stream(context.Background(), CompletionRequest{Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)

	var last StreamChunk
	var text string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		text += chunk.Content()
		last = chunk
	}
	assert.Equal(t, "Hello", text)
	assert.Equal(t, "stop", last.FinishReason())
	require.NotNil(t, last.Usage)
	assert.Equal(t, 6, last.Usage.TotalTokens)
}

func TestMetricsMiddlewareStreamPassesChunks(t *testing.T) {
	c := newTestClient(t, sseHandler(t,
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		`data: {"choices":[{"delta":{"content":"b"},"finish_reason":"stop"}]}`,
		"data: [DONE]",
	))

	m := NewMetricsMiddleware(c, "test")
	ch, err := m.Stream(context.Background(), CompletionRequest{Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)

	text, _, err := Collect(ch, nil)
	require.NoError(t, err)
	assert.Equal(t, "ab", text)
}
