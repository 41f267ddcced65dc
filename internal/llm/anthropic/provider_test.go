package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

func TestGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(300), body["max_tokens"])
		system := body["system"].([]any)
		assert.Equal(t, "be brief", system[0].(map[string]any)["text"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"Hello"},{"type":"text","text":" there"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":2}}`)
	}))
	defer srv.Close()

	p, err := New(Config{APIKey: "test", BaseURL: srv.URL, Model: "claude-test"})
	require.NoError(t, err)

	resp, err := p.Generate(context.Background(), llm.CompletionRequest{
		Messages:  []llm.Message{llm.SystemMessage("be brief"), llm.UserMessage("hi")},
		MaxTokens: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", resp.Text())
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	assert.Equal(t, 5, resp.Usage.TotalTokens)
}

func TestUnsupportedFeatures(t *testing.T) {
	p, err := New(Config{APIKey: "test"})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.Generate(ctx, llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage("hi")},
		Tools:    []llm.Tool{{Type: "function", Function: llm.FunctionDefinition{Name: "x"}}},
	})
	assert.ErrorIs(t, err, llm.ErrUnsupported)

	_, err = p.Generate(ctx, llm.CompletionRequest{
		Messages:       []llm.Message{llm.UserMessage("hi")},
		ResponseFormat: &llm.ResponseFormat{Type: "json_object"},
	})
	assert.ErrorIs(t, err, llm.ErrUnsupported)

	_, err = p.Embed(ctx, llm.EmbeddingRequest{Input: "x"})
	assert.ErrorIs(t, err, llm.ErrUnsupported)
}

func TestDefaults(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, llm.ErrNoAPIKey)

	p, err := New(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, p.Model())
}

func TestFinishReason(t *testing.T) {
	assert.Equal(t, "stop", finishReason("end_turn"))
	assert.Equal(t, "length", finishReason("max_tokens"))
	assert.Equal(t, "tool_calls", finishReason("tool_use"))
	assert.Equal(t, "refusal", finishReason("refusal"))
}

func TestSamplingSendsOneOfTemperatureOrTopP(t *testing.T) {
	var last map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		last = nil
		require.NoError(t, json.NewDecoder(r.Body).Decode(&last))
		_, hasTemp := last["temperature"]
		_, hasTopP := last["top_p"]
		w.Header().Set("Content-Type", "application/json")
		if hasTemp && hasTopP {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"type":"error","error":{"type":"invalid_request_error","message":"temperature and top_p cannot both be specified for this model"}}`)
			return
		}
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`)
	}))
	defer srv.Close()

	p, err := New(Config{APIKey: "test", BaseURL: srv.URL})
	require.NoError(t, err)
	ctx := context.Background()
	msgs := []llm.Message{llm.UserMessage("hi")}

	tests := []struct {
		name        string
		temperature float64
		topP        float64
		wantTemp    bool
		wantTopP    bool
	}{
		{"chat defaults", 0.5, 1, true, false},
		{"temperature wins", 0.2, 0.9, true, false},
		{"top_p alone", 0, 0.9, false, true},
		{"neutral top_p", 0, 1, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Generate(ctx, llm.CompletionRequest{Messages: msgs, Temperature: tt.temperature, TopP: tt.topP})
			require.NoError(t, err)
			_, hasTemp := last["temperature"]
			_, hasTopP := last["top_p"]
			assert.Equal(t, tt.wantTemp, hasTemp)
			assert.Equal(t, tt.wantTopP, hasTopP)
		})
	}
}
