package llm

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"time"
)

type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

func (m Model) CreatedAt() time.Time {
	return time.Unix(m.Created, 0)
}

type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ListModels returns the models visible to the API key, sorted by id.
func (c *Client) ListModels(ctx context.Context) (resp *ModelList, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	defer observe("list_models", "", time.Now(), &err)

	var out ModelList
	if err := c.send(ctx, EndpointModels, http.MethodGet, "/v1/models", nil, &out); err != nil {
		return nil, err
	}
	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].ID < out.Data[j].ID })
	return &out, nil
}

func (c *Client) GetModel(ctx context.Context, id string) (resp *Model, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, &InvalidRequestError{APIError: APIError{Message: "model id is required"}}
	}
	defer observe("get_model", id, time.Now(), &err)

	var out Model
	if err := c.send(ctx, EndpointModels, http.MethodGet, "/v1/models/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
