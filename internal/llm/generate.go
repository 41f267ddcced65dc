package llm

import (
	"context"
)

func (c *Client) Generate(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	model, err := requireModel(req.Model, c.model)
	if err != nil {
		return nil, err
	}
	req.Model = model
	req.Stream = false
	req.StreamOptions = nil

	var completion CompletionResponse
	if err := c.postJSON(ctx, EndpointChat, "/v1/chat/completions", req, &completion); err != nil {
		return nil, err
	}

	if len(completion.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	return &completion, nil
}
