package vector

import "time"

// Document is one row of the documents table.
type Document struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Model     string    `json:"model"`
	Vector    []float64 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

type SearchResult struct {
	Document
	Similarity float64 `json:"similarity"`
}

// Scored pairs a text with its similarity to a query.
type Scored struct {
	Index      int     `json:"index"`
	Text       string  `json:"text"`
	Similarity float64 `json:"similarity"`
}
