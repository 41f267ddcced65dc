// Package tools holds the functions a model may call and the registry that
// advertises and dispatches them.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/metrics"
)

var (
	ErrUnknownTool   = errors.New("unknown tool")
	ErrDuplicateTool = errors.New("tool already registered")
)

// Handler runs a tool with the raw JSON arguments produced by the model.
type Handler func(ctx context.Context, args json.RawMessage) (string, error)

type Definition struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// GenerateSchema derives the parameters schema for a tool input struct.
func GenerateSchema[T any]() map[string]any {
	return llm.MustSchemaFor[T]()
}

// decode unmarshals tool arguments, treating empty input as {}.
func decode[T any](args json.RawMessage) (T, error) {
	var in T
	if len(args) == 0 {
		return in, nil
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return in, fmt.Errorf("invalid arguments: %w", err)
	}
	return in, nil
}

// Registry keeps definitions in registration order.
type Registry struct {
	defs   []Definition
	byName map[string]int
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{byName: make(map[string]int)}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(d Definition) error {
	if _, ok := r.byName[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, d.Name)
	}
	r.byName[d.Name] = len(r.defs)
	r.defs = append(r.defs, d)
	return nil
}

func (r *Registry) Get(name string) (Definition, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Definition{}, false
	}
	return r.defs[i], true
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names
}

func (r *Registry) Len() int {
	return len(r.defs)
}

// Subset returns a registry with only the named tools, in the given order.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	out := &Registry{byName: make(map[string]int)}
	for _, n := range names {
		d, ok := r.Get(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, n)
		}
		if err := out.Register(d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Execute dispatches a call and records its outcome. Handler errors are
// returned as is so callers can feed them back to the model.
func (r *Registry) Execute(ctx context.Context, name, args string) (string, error) {
	d, ok := r.Get(name)
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues(name, "unknown").Inc()
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	out, err := d.Handler(ctx, json.RawMessage(args))
	metrics.ToolDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.ToolCallsTotal.WithLabelValues(name, outcome).Inc()

	logging.Get().DebugContext(ctx, "tool executed",
		slog.String("tool", name),
		slog.String("outcome", outcome),
		slog.Int("input_size", len(args)),
		slog.Int("output_size", len(out)),
		slog.Duration("duration", time.Since(start)),
	)
	return out, err
}

// ChatTools renders the registry in chat completions format.
func (r *Registry) ChatTools() []llm.Tool {
	out := make([]llm.Tool, len(r.defs))
	for i, d := range r.defs {
		out[i] = llm.FunctionTool(d.Name, d.Description, d.Parameters)
	}
	return out
}

// ResponseTools renders the registry in the flat Responses API format.
func (r *Registry) ResponseTools() []llm.ResponseTool {
	out := make([]llm.ResponseTool, len(r.defs))
	for i, d := range r.defs {
		out[i] = llm.ResponseTool{
			Type:        "function",
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		}
	}
	return out
}
