package llm

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"
)

type ImageRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
	User           string `json:"user,omitempty"`
}

type ImageVariationRequest struct {
	Model          string
	Image          io.Reader
	ImageName      string
	N              int
	Size           string
	ResponseFormat string
}

type ImageEditRequest struct {
	Model     string
	Image     io.Reader
	ImageName string
	Mask      io.Reader
	MaskName  string
	Prompt    string
	N         int
	Size      string
}

type ImageResponse struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}

type ImageData struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (resp *ImageResponse, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if req.Prompt == "" {
		return nil, &InvalidRequestError{APIError: APIError{Message: "prompt is required"}}
	}
	defer observe("image_generate", req.Model, time.Now(), &err)

	var out ImageResponse
	if err := c.postJSON(ctx, EndpointImages, "/v1/images/generations", req, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, ErrEmptyResponse
	}
	return &out, nil
}

func (c *Client) CreateImageVariation(ctx context.Context, req ImageVariationRequest) (resp *ImageResponse, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if req.Image == nil {
		return nil, &InvalidRequestError{APIError: APIError{Message: "image is required"}}
	}
	defer observe("image_variation", req.Model, time.Now(), &err)

	p, err := multipartPayload(map[string]string{
		"model":           req.Model,
		"n":               itoa(req.N),
		"size":            req.Size,
		"response_format": req.ResponseFormat,
	}, formFile{field: "image", filename: nameOr(req.ImageName, "image.png"), r: req.Image})
	if err != nil {
		return nil, err
	}

	var out ImageResponse
	if err := c.send(ctx, EndpointImages, http.MethodPost, "/v1/images/variations", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) EditImage(ctx context.Context, req ImageEditRequest) (resp *ImageResponse, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if req.Image == nil || req.Prompt == "" {
		return nil, &InvalidRequestError{APIError: APIError{Message: "image and prompt are required"}}
	}
	defer observe("image_edit", req.Model, time.Now(), &err)

	files := []formFile{{field: "image", filename: nameOr(req.ImageName, "image.png"), r: req.Image}}
	if req.Mask != nil {
		files = append(files, formFile{field: "mask", filename: nameOr(req.MaskName, "mask.png"), r: req.Mask})
	}

	p, err := multipartPayload(map[string]string{
		"model":  req.Model,
		"prompt": req.Prompt,
		"n":      itoa(req.N),
		"size":   req.Size,
	}, files...)
	if err != nil {
		return nil, err
	}

	var out ImageResponse
	if err := c.send(ctx, EndpointImages, http.MethodPost, "/v1/images/edits", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func itoa(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}
