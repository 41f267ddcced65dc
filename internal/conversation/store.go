package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PauloHFS/llm-bootcamp/internal/db"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

var ErrNotFound = errors.New("conversation not found")

type Summary struct {
	ID        string
	Title     string
	Messages  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store persists conversations in the state database. It expects the
// "state" migration set to be applied.
type Store struct {
	db *sql.DB
}

func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// Create stores an empty conversation and returns its new id.
func (s *Store) Create(ctx context.Context, title, system string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, title, system_prompt) VALUES (?, ?, ?)`,
		id, title, system,
	)
	if err != nil {
		return "", fmt.Errorf("failed to create conversation: %w", err)
	}
	return id, nil
}

// Append adds msgs to conversation id in one transaction and bumps its
// updated_at. It returns ErrNotFound for an unknown id.
func (s *Store) Append(ctx context.Context, id string, msgs ...llm.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	for _, m := range msgs {
		var toolCalls string
		if len(m.ToolCalls) > 0 {
			b, err := json.Marshal(m.ToolCalls)
			if err != nil {
				return fmt.Errorf("failed to encode tool calls: %w", err)
			}
			toolCalls = string(b)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, role, content, tool_call_id, tool_calls) VALUES (?, ?, ?, ?, ?)`,
			id, string(m.Role), m.Content, m.ToolCallID, toolCalls,
		)
		if err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}

	return tx.Commit()
}

// Load rebuilds the conversation's History, messages in insertion order.
func (s *Store) Load(ctx context.Context, id string) (*History, error) {
	var system string
	err := s.db.QueryRowContext(ctx, `SELECT system_prompt FROM conversations WHERE id = ?`, id).Scan(&system)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, tool_call_id, tool_calls FROM messages WHERE conversation_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	h := NewHistory(system)
	for rows.Next() {
		var (
			m         llm.Message
			role      string
			toolCalls string
		)
		if err := rows.Scan(&role, &m.Content, &m.ToolCallID, &toolCalls); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Role = llm.Role(role)
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("failed to decode tool calls: %w", err)
			}
		}
		h.Append(m)
	}
	return h, rows.Err()
}

// List returns conversations, most recently updated first.
func (s *Store) List(ctx context.Context, p db.PagingParams) (db.PagedResult[Summary], error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations`).Scan(&total); err != nil {
		return db.PagedResult[Summary]{}, fmt.Errorf("failed to count conversations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.title, c.created_at, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
		FROM conversations c
		ORDER BY c.updated_at DESC, c.rowid DESC
		LIMIT ? OFFSET ?`, p.Limit(), p.Offset())
	if err != nil {
		return db.PagedResult[Summary]{}, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var items []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.CreatedAt, &sum.UpdatedAt, &sum.Messages); err != nil {
			return db.PagedResult[Summary]{}, fmt.Errorf("failed to scan conversation: %w", err)
		}
		items = append(items, sum)
	}
	if err := rows.Err(); err != nil {
		return db.PagedResult[Summary]{}, err
	}

	return db.NewPagedResult(items, total, p), nil
}

// Delete removes the conversation and, by cascade, its messages.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
