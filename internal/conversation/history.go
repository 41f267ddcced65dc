// Package conversation keeps chat turns in memory and, optionally, in the
// SQLite state database.
package conversation

import (
	"unicode/utf8"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
)

// Fixed per-message overhead for role and formatting.
const messageOverhead = 4

// History is a system prompt followed by ordered turns. It is not safe for
// concurrent use.
type History struct {
	System string
	turns  []llm.Message
}

func NewHistory(system string) *History {
	return &History{System: system}
}

func (h *History) Append(msgs ...llm.Message) {
	h.turns = append(h.turns, msgs...)
}

func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a copy of the recorded turns without the system prompt.
func (h *History) Turns() []llm.Message {
	out := make([]llm.Message, len(h.turns))
	copy(out, h.turns)
	return out
}

// Truncate keeps only the first n turns.
func (h *History) Truncate(n int) {
	if n >= 0 && n < len(h.turns) {
		h.turns = h.turns[:n]
	}
}

// Reset drops every turn and keeps the system prompt.
func (h *History) Reset() {
	h.turns = nil
}

// Messages returns the system prompt (when set) and every turn.
func (h *History) Messages() []llm.Message {
	out := make([]llm.Message, 0, len(h.turns)+1)
	if h.System != "" {
		out = append(out, llm.SystemMessage(h.System))
	}
	return append(out, h.turns...)
}

// EstimateTokens approximates the token cost of a message at four runes per
// token.
func EstimateTokens(m llm.Message) int {
	runes := utf8.RuneCountInString(m.Content)
	for _, tc := range m.ToolCalls {
		runes += utf8.RuneCountInString(tc.Function.Name) + utf8.RuneCountInString(tc.Function.Arguments)
	}
	return (runes+3)/4 + messageOverhead
}

type group struct {
	start, end int
}

// groups splits turns into spans that each start at a user message, so a
// question always travels with its replies and tool results.
func (h *History) groups() []group {
	var out []group
	start := 0
	for i := 1; i <= len(h.turns); i++ {
		if i == len(h.turns) || h.turns[i].Role == llm.RoleUser {
			out = append(out, group{start: start, end: i})
			start = i
		}
	}
	return out
}

// Window returns the system prompt plus the newest whole turn groups whose
// estimated cost fits budget. The system prompt is free and always included.
// The newest group is kept even when it alone is over budget. A budget <= 0
// disables trimming.
func (h *History) Window(budget int) []llm.Message {
	if budget <= 0 || len(h.turns) == 0 {
		return h.Messages()
	}

	groups := h.groups()
	first := len(h.turns)
	total := 0
	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		cost := 0
		for _, m := range h.turns[g.start:g.end] {
			cost += EstimateTokens(m)
		}
		if total+cost > budget && i < len(groups)-1 {
			break
		}
		total += cost
		first = g.start
	}

	out := make([]llm.Message, 0, len(h.turns)-first+1)
	if h.System != "" {
		out = append(out, llm.SystemMessage(h.System))
	}
	return append(out, h.turns[first:]...)
}
