package llm

import (
	"context"
	"time"
)

type ModerationRequest struct {
	Model string `json:"model,omitempty"`
	Input any    `json:"input"`
}

type ModerationResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Results []ModerationResult `json:"results"`
}

// ModerationResult keys categories by the API names, e.g. "hate/threatening".
type ModerationResult struct {
	Flagged        bool               `json:"flagged"`
	Categories     map[string]bool    `json:"categories"`
	CategoryScores map[string]float64 `json:"category_scores"`
}

func (c *Client) Moderate(ctx context.Context, req ModerationRequest) (resp *ModerationResponse, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if req.Input == nil {
		return nil, &InvalidRequestError{APIError: APIError{Message: errNoInput.Error()}}
	}
	defer observe("moderate", req.Model, time.Now(), &err)

	var out ModerationResponse
	if err := c.postJSON(ctx, EndpointModerations, "/v1/moderations", req, &out); err != nil {
		return nil, err
	}
	if len(out.Results) == 0 {
		return nil, ErrEmptyResponse
	}
	return &out, nil
}
