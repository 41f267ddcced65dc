package vector

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

const DefaultCacheSize = 1024

// Embedder turns text into vectors through an LLMClient. Results are kept in
// an LRU keyed by model and text, so repeated demo runs only pay once.
type Embedder struct {
	client llm.LLMClient
	model  string
	cache  *lru.Cache[string, []float64]

	mu    sync.Mutex
	usage llm.Usage
}

func NewEmbedder(client llm.LLMClient, model string, cacheSize int) (*Embedder, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, err := lru.New[string, []float64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &Embedder{client: client, model: model, cache: cache}, nil
}

func (e *Embedder) Model() string {
	return e.model
}

// Usage is the token usage accumulated by uncached requests.
func (e *Embedder) Usage() llm.Usage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.usage
}

func (e *Embedder) addUsage(u llm.Usage) {
	e.mu.Lock()
	e.usage = e.usage.Add(u)
	e.mu.Unlock()
}

func (e *Embedder) key(text string) string {
	return e.model + "\x00" + text
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := e.cache.Get(e.key(text)); ok {
		return v, nil
	}

	resp, err := e.client.Embed(ctx, llm.EmbeddingRequest{
		Model: e.model,
		Input: text,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbedding
	}

	e.addUsage(resp.Usage)
	e.cache.Add(e.key(text), resp.Data[0].Embedding)
	return resp.Data[0].Embedding, nil
}

// EmbedBatch sends only the texts missing from the cache, in one request,
// and returns vectors in input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	embeddings := make([][]float64, len(texts))

	var missing []string
	var slots []int
	for i, t := range texts {
		if v, ok := e.cache.Get(e.key(t)); ok {
			embeddings[i] = v
			continue
		}
		missing = append(missing, t)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return embeddings, nil
	}

	resp, err := e.client.Embed(ctx, llm.EmbeddingRequest{
		Model: e.model,
		Input: missing,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(missing) {
		return nil, &EmbeddingError{Message: fmt.Sprintf("expected %d embeddings, got %d", len(missing), len(resp.Data))}
	}

	e.addUsage(resp.Usage)
	for _, r := range resp.Data {
		if r.Index < 0 || r.Index >= len(missing) {
			return nil, &EmbeddingError{Message: fmt.Sprintf("embedding index %d out of range", r.Index)}
		}
		embeddings[slots[r.Index]] = r.Embedding
		e.cache.Add(e.key(missing[r.Index]), r.Embedding)
	}

	return embeddings, nil
}

var ErrNoEmbedding = &EmbeddingError{Message: "no embedding returned"}

type EmbeddingError struct {
	Message string
}

func (e *EmbeddingError) Error() string {
	return e.Message
}
