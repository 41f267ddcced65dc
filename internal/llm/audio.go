package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	TranscriptionText        = "text"
	TranscriptionJSON        = "json"
	TranscriptionVerboseJSON = "verbose_json"
	TranscriptionSRT         = "srt"
	TranscriptionVTT         = "vtt"
)

type TranscriptionRequest struct {
	Model          string
	File           io.Reader
	FileName       string
	Prompt         string
	Language       string
	ResponseFormat string
	Temperature    float64
}

type TranscriptionResponse struct {
	Text     string                 `json:"text"`
	Language string                 `json:"language,omitempty"`
	Duration float64                `json:"duration,omitempty"`
	Segments []TranscriptionSegment `json:"segments,omitempty"`
}

type TranscriptionSegment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcribe uploads an audio file. Text-like formats (text, srt, vtt) are
// returned verbatim in Text.
func (c *Client) Transcribe(ctx context.Context, req TranscriptionRequest) (resp *TranscriptionResponse, err error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if req.File == nil {
		return nil, &InvalidRequestError{APIError: APIError{Message: "file is required"}}
	}
	model, err := requireModel(req.Model, "")
	if err != nil {
		return nil, err
	}
	format := req.ResponseFormat
	if format == "" {
		format = TranscriptionJSON
	}
	defer observe("transcribe", model, time.Now(), &err)

	fields := map[string]string{
		"model":           model,
		"prompt":          req.Prompt,
		"language":        req.Language,
		"response_format": format,
	}
	if req.Temperature > 0 {
		fields["temperature"] = strconv.FormatFloat(req.Temperature, 'f', -1, 64)
	}

	p, err := multipartPayload(fields, formFile{field: "file", filename: nameOr(req.FileName, "audio.mp3"), r: req.File})
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	httpResp, err := c.doRequestWithRetry(ctx, EndpointAudio, http.MethodPost, "/v1/audio/transcriptions", p)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcription: %w", err)
	}

	switch format {
	case TranscriptionJSON, TranscriptionVerboseJSON:
		var out TranscriptionResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("failed to decode transcription: %w", err)
		}
		return &out, nil
	default:
		return &TranscriptionResponse{Text: string(body)}, nil
	}
}

type SpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Instructions   string  `json:"instructions,omitempty"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// Speech synthesizes audio and streams the bytes into w.
func (c *Client) Speech(ctx context.Context, req SpeechRequest, w io.Writer) (n int64, err error) {
	if err := checkContext(ctx); err != nil {
		return 0, err
	}
	if req.Input == "" || req.Voice == "" {
		return 0, &InvalidRequestError{APIError: APIError{Message: "input and voice are required"}}
	}
	model, err := requireModel(req.Model, "")
	if err != nil {
		return 0, err
	}
	req.Model = model
	defer observe("speech", model, time.Now(), &err)

	p, err := jsonPayload(req)
	if err != nil {
		return 0, err
	}
	p.accept = "audio/*"

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.doRequestWithRetry(ctx, EndpointAudio, http.MethodPost, "/v1/audio/speech", p)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err = io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to write audio: %w", err)
	}
	return n, nil
}
