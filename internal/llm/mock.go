package llm

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
)

// MockResponse defines a canned reply for MockClient.
type MockResponse struct {
	Content   string
	ToolCalls []ToolCall
	Err       error
}

// MockClient is a test double that returns pre-configured responses in
// sequence. After all responses are exhausted it keeps returning the last
// one. Every request is recorded for later assertion.
type MockClient struct {
	mu        sync.Mutex
	responses []MockResponse
	calls     []CompletionRequest
	embeds    []EmbeddingRequest
	idx       int

	// EmbedFunc overrides the default hash-based embedding.
	EmbedFunc func(text string) []float64
}

var _ LLMClient = (*MockClient)(nil)

func NewMockClient(responses ...MockResponse) *MockClient {
	return &MockClient{responses: responses}
}

// ToolCallResponse is a shortcut for a reply that calls one function.
func ToolCallResponse(id, name, arguments string) MockResponse {
	return MockResponse{ToolCalls: []ToolCall{{
		ID:       id,
		Type:     "function",
		Function: Function{Name: name, Arguments: arguments},
	}}}
}

func (m *MockClient) next(req CompletionRequest) MockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if len(m.responses) == 0 {
		return MockResponse{}
	}
	r := m.responses[m.idx]
	if m.idx < len(m.responses)-1 {
		m.idx++
	}
	return r
}

func (m *MockClient) Generate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := m.next(req)
	if r.Err != nil {
		return nil, r.Err
	}

	finish := "stop"
	if len(r.ToolCalls) > 0 {
		finish = "tool_calls"
	}
	return &CompletionResponse{
		ID:    "mock",
		Model: "mock",
		Choices: []Choice{{
			Message:      &Message{Role: RoleAssistant, Content: r.Content, ToolCalls: r.ToolCalls},
			FinishReason: finish,
		}},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// Stream emits the canned content one word at a time.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r := m.next(req)
	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		if r.Err != nil {
			ch <- StreamChunk{Err: r.Err}
			return
		}
		words := strings.SplitAfter(r.Content, " ")
		for i, w := range words {
			chunk := StreamChunk{Model: "mock", Choices: []StreamChoice{{Delta: Message{Content: w}}}}
			if i == len(words)-1 {
				chunk.Choices[0].FinishReason = "stop"
				chunk.Usage = &Usage{PromptTokens: 10, CompletionTokens: len(words), TotalTokens: 10 + len(words)}
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (m *MockClient) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.embeds = append(m.embeds, req)
	embed := m.EmbedFunc
	m.mu.Unlock()

	if embed == nil {
		embed = hashEmbedding
	}

	var inputs []string
	switch v := req.Input.(type) {
	case string:
		inputs = []string{v}
	case []string:
		inputs = v
	}

	resp := &EmbeddingResponse{Object: "list", Model: req.Model}
	for i, text := range inputs {
		resp.Data = append(resp.Data, Embedding{Object: "embedding", Index: i, Embedding: embed(text)})
	}
	return resp, nil
}

// hashEmbedding buckets lowercase words into an 8-dimension vector so texts
// sharing words come out similar.
func hashEmbedding(text string) []float64 {
	vec := make([]float64, 8)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(strings.Trim(w, ".,!?")))
		vec[h.Sum32()%8]++
	}
	return vec
}

// Calls returns a copy of all completion requests received.
func (m *MockClient) Calls() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]CompletionRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockClient) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.embeds)
}
