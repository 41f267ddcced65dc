package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/PauloHFS/llm-bootcamp/internal/vector"
)

const (
	SearchName = "search_documents"

	defaultSearchLimit = 3
)

type SearchInput struct {
	Query string `json:"query" jsonschema_description:"The search query"`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of documents to return (default 3)"`
}

type searchHit struct {
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

func DocumentSearch(index *vector.Index) Definition {
	return Definition{
		Name:        SearchName,
		Description: "Search the indexed documents for passages relevant to a query",
		Parameters:  GenerateSchema[SearchInput](),
		Handler: func(ctx context.Context, args json.RawMessage) (string, error) {
			in, err := decode[SearchInput](args)
			if err != nil {
				return "", err
			}
			if in.Query == "" {
				return "", fmt.Errorf("query is required")
			}
			limit := in.Limit
			if limit <= 0 {
				limit = defaultSearchLimit
			}

			results, err := index.Search(ctx, in.Query, limit)
			if err != nil {
				return "", err
			}

			hits := make([]searchHit, len(results))
			for i, r := range results {
				hits[i] = searchHit{Content: r.Content, Similarity: r.Similarity}
			}
			b, err := json.Marshal(hits)
			if err != nil {
				return "", err
			}
			return string(b), nil
		},
	}
}
