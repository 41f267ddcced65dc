package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/PauloHFS/llm-bootcamp/internal/logging"
)

// Index stores document embeddings in the documents table of the state
// database. Vectors are kept as JSON arrays and ranked in process, which is
// fine for the few hundred rows a tutorial corpus holds.
type Index struct {
	db       *sql.DB
	embedder *Embedder
}

func NewIndex(conn *sql.DB, embedder *Embedder) *Index {
	return &Index{db: conn, embedder: embedder}
}

// Add embeds texts in one batch and inserts them. It returns the new ids.
func (x *Index) Add(ctx context.Context, texts ...string) ([]int64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := x.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed documents: %w", err)
	}

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin insert: %w", err)
	}
	defer tx.Rollback()

	ids := make([]int64, 0, len(texts))
	for i, text := range texts {
		vectorJSON, err := json.Marshal(vectors[i])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal vector: %w", err)
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO documents (content, model, embedding) VALUES (?, ?, ?)`,
			text, x.embedder.Model(), string(vectorJSON),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert document: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit documents: %w", err)
	}

	logging.Get().DebugContext(ctx, "documents indexed",
		slog.Int("count", len(ids)),
		slog.String("model", x.embedder.Model()),
	)
	return ids, nil
}

// Search ranks every document embedded with the current model against
// query. A limit of zero or less returns all of them.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	qv, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	docs, err := x.documents(ctx)
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(docs))
	vectors := make([][]float64, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
		vectors[i] = d.Vector
	}

	ranked := Rank(qv, texts, vectors)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	results := make([]SearchResult, len(ranked))
	for i, r := range ranked {
		results[i] = SearchResult{Document: docs[r.Index], Similarity: r.Similarity}
	}
	return results, nil
}

func (x *Index) documents(ctx context.Context) ([]Document, error) {
	rows, err := x.db.QueryContext(ctx,
		`SELECT id, content, model, embedding, created_at FROM documents WHERE model = ? ORDER BY id`,
		x.embedder.Model(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var vectorJSON string
		var created time.Time
		if err := rows.Scan(&d.ID, &d.Content, &d.Model, &vectorJSON, &created); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if err := json.Unmarshal([]byte(vectorJSON), &d.Vector); err != nil {
			return nil, fmt.Errorf("failed to decode vector for document %d: %w", d.ID, err)
		}
		d.CreatedAt = created
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (x *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE model = ?`, x.embedder.Model()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

func (x *Index) Delete(ctx context.Context, id int64) error {
	_, err := x.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Reset removes every document.
func (x *Index) Reset(ctx context.Context) error {
	_, err := x.db.ExecContext(ctx, `DELETE FROM documents`)
	if err != nil {
		return fmt.Errorf("failed to reset documents: %w", err)
	}
	return nil
}
