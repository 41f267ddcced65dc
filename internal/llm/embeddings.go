package llm

import (
	"context"
)

func (c *Client) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
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

	if req.EncodingFormat == "" {
		req.EncodingFormat = "float"
	}

	var embeddingResp EmbeddingResponse
	if err := c.postJSON(ctx, EndpointEmbeddings, "/v1/embeddings", req, &embeddingResp); err != nil {
		return nil, err
	}

	return &embeddingResp, nil
}
