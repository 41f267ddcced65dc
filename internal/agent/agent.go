// Package agent runs a local tool-calling loop: the model is called with the
// registry's tools, every requested call is executed and its result fed
// back, until the model answers in plain text.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/metrics"
	"github.com/PauloHFS/llm-bootcamp/internal/tools"
)

const (
	DefaultMaxIterations = 8
	DefaultInstructions  = "You are a helpful assistant"
)

var ErrMaxIterations = errors.New("agent: iteration limit reached without a final answer")

type Step struct {
	Iteration int           `json:"iteration"`
	CallID    string        `json:"call_id"`
	Tool      string        `json:"tool"`
	Arguments string        `json:"arguments"`
	Output    string        `json:"output"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

type Result struct {
	Output     string        `json:"output"`
	Steps      []Step        `json:"steps"`
	Usage      llm.Usage     `json:"usage"`
	Iterations int           `json:"iterations"`
	Messages   []llm.Message `json:"-"`
}

type Runner struct {
	Client        llm.LLMClient
	Registry      *tools.Registry
	Model         string
	MaxIterations int
	MaxTokens     int
	Temperature   float64

	// OnStep, when set, is called after each tool execution.
	OnStep func(Step)
}

func New(client llm.LLMClient, registry *tools.Registry, model string) *Runner {
	return &Runner{
		Client:        client,
		Registry:      registry,
		Model:         model,
		MaxIterations: DefaultMaxIterations,
		MaxTokens:     1024,
		Temperature:   0.2,
	}
}

// Run starts a fresh conversation from instructions and input.
func (r *Runner) Run(ctx context.Context, instructions, input string) (*Result, error) {
	if instructions == "" {
		instructions = DefaultInstructions
	}
	return r.RunMessages(ctx, []llm.Message{
		llm.SystemMessage(instructions),
		llm.UserMessage(input),
	})
}

// RunMessages continues an existing conversation. The returned Result holds
// the full transcript including tool results.
func (r *Runner) RunMessages(ctx context.Context, msgs []llm.Message) (*Result, error) {
	maxIter := r.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	var chatTools []llm.Tool
	if r.Registry != nil && r.Registry.Len() > 0 {
		chatTools = r.Registry.ChatTools()
	}

	res := &Result{Messages: append([]llm.Message(nil), msgs...)}
	log := logging.Get()

	for i := 1; i <= maxIter; i++ {
		res.Iterations = i

		req := llm.CompletionRequest{
			Model:       r.Model,
			Messages:    res.Messages,
			Tools:       chatTools,
			MaxTokens:   r.MaxTokens,
			Temperature: r.Temperature,
		}
		if len(chatTools) > 0 {
			req.ToolChoice = llm.ToolChoiceMode("auto")
		}

		resp, err := r.Client.Generate(ctx, req)
		if err != nil {
			metrics.AgentIterations.Observe(float64(i))
			return res, fmt.Errorf("agent iteration %d: %w", i, err)
		}
		res.Usage = res.Usage.Add(resp.Usage)

		msg := resp.FirstMessage()
		if msg == nil {
			metrics.AgentIterations.Observe(float64(i))
			return res, llm.ErrEmptyResponse
		}
		res.Messages = append(res.Messages, *msg)

		if len(msg.ToolCalls) == 0 {
			res.Output = msg.Content
			metrics.AgentIterations.Observe(float64(i))
			log.DebugContext(ctx, "agent finished",
				slog.Int("iterations", i),
				slog.Int("steps", len(res.Steps)),
				slog.Int("total_tokens", res.Usage.TotalTokens),
			)
			return res, nil
		}

		for _, call := range msg.ToolCalls {
			step := r.execute(ctx, i, call)
			res.Steps = append(res.Steps, step)

			content := step.Output
			if step.Error != "" {
				content = "error: " + step.Error
			}
			res.Messages = append(res.Messages, llm.ToolResultMessage(call.ID, content))

			if r.OnStep != nil {
				r.OnStep(step)
			}
		}
	}

	metrics.AgentIterations.Observe(float64(maxIter))
	return res, ErrMaxIterations
}

func (r *Runner) execute(ctx context.Context, iteration int, call llm.ToolCall) Step {
	step := Step{
		Iteration: iteration,
		CallID:    call.ID,
		Tool:      call.Function.Name,
		Arguments: call.Function.Arguments,
	}

	start := time.Now()
	var out string
	var err error
	if r.Registry == nil {
		err = fmt.Errorf("%w: %s", tools.ErrUnknownTool, call.Function.Name)
	} else {
		out, err = r.Registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
	}
	step.Duration = time.Since(start)

	if err != nil {
		step.Error = err.Error()
		logging.Get().WarnContext(ctx, "tool call failed",
			slog.String("tool", step.Tool),
			slog.String("error", step.Error),
		)
		return step
	}
	step.Output = out
	return step
}
