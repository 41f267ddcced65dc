package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Stream starts a streamed chat completion. The returned channel is closed
// when the server finishes, the context is cancelled, or reading fails; in the
// last case the final chunk carries Err.
func (c *Client) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	model, err := requireModel(req.Model, c.model)
	if err != nil {
		return nil, err
	}
	req.Model = model
	req.Stream = true

	path := "/v1/chat/completions"
	accept := "text/event-stream"
	if c.streamingFormat == StreamingFormatNDJSON {
		// Ollama's native chat endpoint streams newline-delimited JSON.
		path = "/api/chat"
		accept = "application/x-ndjson"
		req.StreamOptions = nil
	} else if req.StreamOptions == nil {
		req.StreamOptions = &StreamOptions{IncludeUsage: true}
	}

	body, err := jsonPayload(req)
	if err != nil {
		return nil, err
	}
	body.accept = accept

	resp, err := c.doRequestWithRetry(ctx, EndpointChat, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamChunk, 1)

	go c.streamReader(ctx, resp.Body, ch, c.streamingFormat)

	return ch, nil
}

func (c *Client) streamReader(ctx context.Context, body io.ReadCloser, ch chan<- StreamChunk, format StreamingFormat) {
	defer close(ch)
	defer body.Close()

	reader := bufio.NewReader(body)

	var err error
	if format == StreamingFormatNDJSON {
		err = c.readNDJSONStream(ctx, reader, ch)
	} else {
		err = c.readSSEStream(ctx, reader, ch)
	}

	if err != nil {
		select {
		case ch <- StreamChunk{Err: err}:
		case <-ctx.Done():
		}
	}
}

func (c *Client) readSSEStream(ctx context.Context, reader *bufio.Reader, ch chan<- StreamChunk) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrStreamClosed, err)
		}

		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))

		if data == "[DONE]" {
			return nil
		}

		if msg := gjson.Get(data, "error.message"); msg.Exists() {
			return &APIError{
				Message: msg.String(),
				Type:    gjson.Get(data, "error.type").String(),
			}
		}

		var chunk StreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}

		select {
		case ch <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) readNDJSONStream(ctx context.Context, reader *bufio.Reader, ch chan<- StreamChunk) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := reader.ReadBytes('\n')
		if err != nil && (err != io.EOF || len(line) == 0) {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrStreamClosed, err)
		}

		line = bytes.TrimRight(line, "\r\n")

		if len(line) == 0 || !utf8.Valid(line) {
			continue
		}

		if msg := gjson.GetBytes(line, "error"); msg.Exists() && msg.Type == gjson.String {
			return &APIError{Message: msg.String()}
		}

		var ollamaChunk OllamaStreamChunk
		if err := json.Unmarshal(line, &ollamaChunk); err != nil {
			continue
		}

		chunk := ollamaChunk.ToStreamChunk()

		select {
		case ch <- chunk:
		case <-ctx.Done():
			return ctx.Err()
		}

		if ollamaChunk.Done {
			return nil
		}
	}
}

// Collect drains a stream, calling onDelta for every content delta, and
// returns the accumulated text plus the last usage reported.
func Collect(ch <-chan StreamChunk, onDelta func(string)) (string, *Usage, error) {
	var (
		b     strings.Builder
		usage *Usage
	)
	for chunk := range ch {
		if chunk.Err != nil {
			return b.String(), usage, chunk.Err
		}
		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if delta := chunk.Content(); delta != "" {
			b.WriteString(delta)
			if onDelta != nil {
				onDelta(delta)
			}
		}
	}
	return b.String(), usage, nil
}
