// Package latency times the same prompt across the chat, streaming and
// Responses APIs. Calls run one after another so they never compete.
package latency

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
)

const (
	DefaultPrompt    = "What is 2 + 2?"
	DefaultMaxTokens = 50
)

const (
	Regular   = "Regular"
	Streaming = "Streaming"
	Responses = "Responses"
)

// Responder is the Responses API surface of llm.Client.
type Responder interface {
	CreateResponse(ctx context.Context, req llm.ResponseRequest) (*llm.Response, error)
}

type Measurement struct {
	Name string
	// FirstToken is only set for streaming.
	FirstToken time.Duration
	Total      time.Duration
	Output     string
	Err        error
}

type Benchmark struct {
	Client    llm.LLMClient
	Responses Responder
	Model     string
	Prompt    string
	MaxTokens int

	now func() time.Time
}

func New(client llm.LLMClient, responses Responder, model string) *Benchmark {
	return &Benchmark{
		Client:    client,
		Responses: responses,
		Model:     model,
		Prompt:    DefaultPrompt,
		MaxTokens: DefaultMaxTokens,
		now:       time.Now,
	}
}

func (b *Benchmark) since(start time.Time) time.Duration {
	return b.now().Sub(start)
}

// Run measures each API in turn. A failing call is recorded in its
// Measurement and does not stop the others; only a cancelled context does.
func (b *Benchmark) Run(ctx context.Context) ([]Measurement, error) {
	steps := []func(context.Context) Measurement{b.regular, b.streaming}
	if b.Responses != nil {
		steps = append(steps, b.responses)
	}

	out := make([]Measurement, 0, len(steps))
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		m := step(ctx)
		logging.Get().DebugContext(ctx, "latency measured",
			slog.String("api", m.Name),
			slog.Duration("total", m.Total),
			slog.Duration("first_token", m.FirstToken),
			slog.Any("error", m.Err),
		)
		out = append(out, m)
	}
	return out, nil
}

func (b *Benchmark) request(stream bool) llm.CompletionRequest {
	return llm.CompletionRequest{
		Model:     b.Model,
		Messages:  []llm.Message{llm.UserMessage(b.Prompt)},
		MaxTokens: b.MaxTokens,
		Stream:    stream,
	}
}

func (b *Benchmark) regular(ctx context.Context) Measurement {
	m := Measurement{Name: Regular}
	start := b.now()
	resp, err := b.Client.Generate(ctx, b.request(false))
	m.Total = b.since(start)
	if err != nil {
		m.Err = err
		return m
	}
	m.Output = resp.Text()
	return m
}

func (b *Benchmark) streaming(ctx context.Context) Measurement {
	m := Measurement{Name: Streaming}
	start := b.now()
	ch, err := b.Client.Stream(ctx, b.request(true))
	if err != nil {
		m.Total = b.since(start)
		m.Err = err
		return m
	}
	text, _, err := llm.Collect(ch, func(string) {
		if m.FirstToken == 0 {
			m.FirstToken = b.since(start)
		}
	})
	if err == nil {
		err = ctx.Err()
	}
	m.Total = b.since(start)
	m.Output = text
	m.Err = err
	return m
}

func (b *Benchmark) responses(ctx context.Context) Measurement {
	m := Measurement{Name: Responses}
	start := b.now()
	resp, err := b.Responses.CreateResponse(ctx, llm.ResponseRequest{
		Model:           b.Model,
		Input:           b.Prompt,
		MaxOutputTokens: b.MaxTokens,
	})
	m.Total = b.since(start)
	if err != nil {
		m.Err = err
		return m
	}
	m.Output = resp.OutputText()
	return m
}

// Compare returns how much longer other took than base, in percent of base.
// Negative values mean other was faster.
func Compare(base, other time.Duration) float64 {
	if base <= 0 {
		return 0
	}
	return float64(other-base) / float64(base) * 100
}

// Summary renders the comparison line, e.g. "Streaming API is 12.5% faster".
func Summary(name string, base, other time.Duration) string {
	pct := Compare(base, other)
	word := "slower"
	if pct < 0 {
		word = "faster"
	}
	return fmt.Sprintf("%s API is %.1f%% %s", name, math.Abs(pct), word)
}
