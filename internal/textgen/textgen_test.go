package textgen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

func completionServer(t *testing.T, text string, got *llm.TextCompletionRequest) *llm.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(llm.TextCompletionResponse{
			Model:   got.Model,
			Choices: []llm.TextChoice{{Text: text, FinishReason: "stop"}},
			Usage:   llm.Usage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 7},
		})
	}))
	t.Cleanup(srv.Close)

	c, err := llm.NewClient(llm.WithBaseURL(srv.URL), llm.WithAPIKey("sk-test"), llm.WithMaxRetries(0))
	require.NoError(t, err)
	return c
}

func TestCompletePresets(t *testing.T) {
	var got llm.TextCompletionRequest
	c := completionServer(t, "\n    return fibonacci(n-1)", &got)

	text, usage, err := Complete(context.Background(), c, "gpt-3.5-turbo-instruct", "code", Examples["code"])
	require.NoError(t, err)
	assert.Equal(t, "\n    return fibonacci(n-1)", text)
	assert.Equal(t, 7, usage.TotalTokens)
	assert.Equal(t, 150, got.MaxTokens)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	assert.Equal(t, []string{"\n\n", "```"}, got.Stop)

	_, _, err = Complete(context.Background(), c, "m", "creative", Examples["creative"])
	require.NoError(t, err)
	assert.Equal(t, 200, got.MaxTokens)
	assert.InDelta(t, 0.9, got.TopP, 1e-9)
	assert.InDelta(t, 0.1, got.FrequencyPenalty, 1e-9)
	assert.InDelta(t, 0.1, got.PresencePenalty, 1e-9)

	_, _, err = Complete(context.Background(), c, "m", "structured", Examples["structured"])
	require.NoError(t, err)
	assert.Contains(t, got.Prompt, Examples["structured"])
	assert.Contains(t, got.Prompt, "- Key Points: [list of key points]")

	_, _, err = Complete(context.Background(), c, "m", "poetry", "x")
	assert.ErrorContains(t, err, "available: basic, code, creative, structured")
}

func TestSummarize(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "  AI models generate text.  "})
	out, err := NewWriter(client, "gpt-4o-mini").Summarize(context.Background(), ExampleArticle)
	require.NoError(t, err)
	assert.Equal(t, "AI models generate text.", out)

	req := client.Calls()[0]
	assert.Equal(t, 150, req.MaxTokens)
	assert.InDelta(t, 0.5, req.Temperature, 1e-9)
	assert.Equal(t, SummaryPrompt(ExampleArticle), req.Messages[0].Content)

	_, err = NewWriter(client, "m").Summarize(context.Background(), "  ")
	assert.Error(t, err)
}

func TestTranslate(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "OpenAI fournit des outils."})
	out, err := NewWriter(client, "gpt-4o-mini").Translate(context.Background(), ExampleTranslation, "French")
	require.NoError(t, err)
	assert.Equal(t, "OpenAI fournit des outils.", out)

	req := client.Calls()[0]
	assert.Equal(t, 1024, req.MaxTokens)
	assert.InDelta(t, 0.1, req.Temperature, 1e-9)
	assert.Equal(t,
		"Translate the following text into French:\n\n"+ExampleTranslation+"\n\nTranslation in French:",
		req.Messages[0].Content)

	_, err = NewWriter(client, "m").Translate(context.Background(), "hi", "")
	assert.Error(t, err)
}
