package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/tools"
)

// Responder is the Responses API surface of llm.Client.
type Responder interface {
	CreateResponse(ctx context.Context, req llm.ResponseRequest) (*llm.Response, error)
}

// functionOutput is the input item that answers a function_call.
type functionOutput struct {
	Type   string `json:"type"`
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// Assistant runs the tool loop against the Responses API. The server keeps
// the conversation, so each turn only sends the new input plus the id of the
// previous response.
type Assistant struct {
	Client        Responder
	Registry      *tools.Registry
	Model         string
	Instructions  string
	MaxIterations int

	// LastResponseID chains the next Ask onto the conversation so far.
	LastResponseID string
	OnStep         func(Step)
}

func NewAssistant(client Responder, registry *tools.Registry, model string) *Assistant {
	return &Assistant{
		Client:        client,
		Registry:      registry,
		Model:         model,
		MaxIterations: DefaultMaxIterations,
	}
}

type Reply struct {
	Output     string            `json:"output"`
	ResponseID string            `json:"response_id"`
	Steps      []Step            `json:"steps"`
	Usage      llm.ResponseUsage `json:"usage"`
}

// Ask sends input and keeps answering function calls until the model
// replies with text.
func (a *Assistant) Ask(ctx context.Context, input string) (*Reply, error) {
	maxIter := a.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	var respTools []llm.ResponseTool
	if a.Registry != nil && a.Registry.Len() > 0 {
		respTools = a.Registry.ResponseTools()
	}

	reply := &Reply{}
	req := llm.ResponseRequest{
		Model:              a.Model,
		Input:              input,
		Instructions:       a.Instructions,
		Tools:              respTools,
		PreviousResponseID: a.LastResponseID,
	}

	for i := 1; i <= maxIter; i++ {
		resp, err := a.Client.CreateResponse(ctx, req)
		if err != nil {
			return reply, fmt.Errorf("assistant iteration %d: %w", i, err)
		}
		reply.ResponseID = resp.ID
		reply.Usage.InputTokens += resp.Usage.InputTokens
		reply.Usage.OutputTokens += resp.Usage.OutputTokens
		reply.Usage.TotalTokens += resp.Usage.TotalTokens
		a.LastResponseID = resp.ID

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			reply.Output = resp.OutputText()
			logging.Get().DebugContext(ctx, "assistant finished",
				slog.Int("iterations", i),
				slog.String("response_id", resp.ID),
			)
			return reply, nil
		}

		outputs := make([]functionOutput, 0, len(calls))
		for _, call := range calls {
			step := a.call(ctx, i, call)
			reply.Steps = append(reply.Steps, step)
			out := step.Output
			if step.Error != "" {
				out = "error: " + step.Error
			}
			outputs = append(outputs, functionOutput{Type: "function_call_output", CallID: call.CallID, Output: out})
			if a.OnStep != nil {
				a.OnStep(step)
			}
		}

		req = llm.ResponseRequest{
			Model:              a.Model,
			Input:              outputs,
			Instructions:       a.Instructions,
			Tools:              respTools,
			PreviousResponseID: resp.ID,
		}
	}
	return reply, ErrMaxIterations
}

func (a *Assistant) call(ctx context.Context, iteration int, item llm.ResponseOutputItem) Step {
	step := Step{
		Iteration: iteration,
		CallID:    item.CallID,
		Tool:      item.Name,
		Arguments: item.Arguments,
	}
	start := time.Now()
	var err error
	if a.Registry == nil {
		err = fmt.Errorf("%w: %s", tools.ErrUnknownTool, item.Name)
	} else {
		step.Output, err = a.Registry.Execute(ctx, item.Name, item.Arguments)
	}
	step.Duration = time.Since(start)
	if err != nil {
		step.Error = err.Error()
		step.Output = ""
	}
	return step
}
