package llm

import (
	"context"
	"strings"
	"time"
)

// ResponseRequest targets the Responses API. Input is either a string or a
// slice of ResponseInputMessage.
type ResponseRequest struct {
	Model              string         `json:"model"`
	Input              any            `json:"input"`
	Instructions       string         `json:"instructions,omitempty"`
	Tools              []ResponseTool `json:"tools,omitempty"`
	Temperature        *float64       `json:"temperature,omitempty"`
	MaxOutputTokens    int            `json:"max_output_tokens,omitempty"`
	PreviousResponseID string         `json:"previous_response_id,omitempty"`
}

type ResponseInputMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ResponseTool uses the flat function layout of the Responses API.
type ResponseTool struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Strict      bool           `json:"strict"`
}

type Response struct {
	ID        string               `json:"id"`
	Object    string               `json:"object"`
	CreatedAt int64                `json:"created_at"`
	Model     string               `json:"model"`
	Status    string               `json:"status"`
	Output    []ResponseOutputItem `json:"output"`
	Usage     ResponseUsage        `json:"usage"`
}

type ResponseOutputItem struct {
	Type      string            `json:"type"`
	ID        string            `json:"id,omitempty"`
	Role      string            `json:"role,omitempty"`
	Status    string            `json:"status,omitempty"`
	Content   []ResponseContent `json:"content,omitempty"`
	CallID    string            `json:"call_id,omitempty"`
	Name      string            `json:"name,omitempty"`
	Arguments string            `json:"arguments,omitempty"`
}

type ResponseContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type ResponseUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

func (r *Response) OutputText() string {
	var b strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, c := range item.Content {
			if c.Type == "output_text" {
				b.WriteString(c.Text)
			}
		}
	}
	return b.String()
}

func (r *Response) FunctionCalls() []ResponseOutputItem {
	var calls []ResponseOutputItem
	for _, item := range r.Output {
		if item.Type == "function_call" {
			calls = append(calls, item)
		}
	}
	return calls
}

func (c *Client) CreateResponse(ctx context.Context, req ResponseRequest) (resp *Response, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	model, err := requireModel(req.Model, c.model)
	if err != nil {
		return nil, err
	}
	req.Model = model
	if req.Input == nil {
		return nil, &InvalidRequestError{APIError: APIError{Message: errNoInput.Error()}}
	}
	defer observe("response", model, time.Now(), &err)

	var out Response
	if err := c.postJSON(ctx, EndpointResponses, "/v1/responses", req, &out); err != nil {
		return nil, err
	}
	recordTokens("response", model, Usage{
		PromptTokens:     out.Usage.InputTokens,
		CompletionTokens: out.Usage.OutputTokens,
		TotalTokens:      out.Usage.TotalTokens,
	})
	return &out, nil
}
