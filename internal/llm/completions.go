package llm

import (
	"context"
	"strings"
	"time"
)

// TextCompletionRequest targets the legacy /v1/completions endpoint used by
// instruct models.
type TextCompletionRequest struct {
	Model            string   `json:"model"`
	Prompt           string   `json:"prompt"`
	MaxTokens        int      `json:"max_tokens,omitempty"`
	Temperature      float64  `json:"temperature,omitempty"`
	TopP             float64  `json:"top_p,omitempty"`
	FrequencyPenalty float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  float64  `json:"presence_penalty,omitempty"`
	Stop             []string `json:"stop,omitempty"`
	N                int      `json:"n,omitempty"`
}

type TextCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []TextChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

type TextChoice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
}

func (r *TextCompletionResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Text)
}

func (c *Client) Complete(ctx context.Context, req TextCompletionRequest) (resp *TextCompletionResponse, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	model, err := requireModel(req.Model, c.model)
	if err != nil {
		return nil, err
	}
	req.Model = model
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, &InvalidRequestError{APIError: APIError{Message: "prompt is required"}}
	}

	defer observe("complete", model, time.Now(), &err)

	var out TextCompletionResponse
	if err := c.postJSON(ctx, EndpointCompletions, "/v1/completions", req, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 {
		return nil, ErrEmptyResponse
	}
	recordTokens("complete", model, out.Usage)
	return &out, nil
}
