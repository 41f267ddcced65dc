package llm

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"sort"
)

type formFile struct {
	field    string
	filename string
	r        io.Reader
}

// multipartPayload buffers a form so the body can be replayed on retry.
func multipartPayload(fields map[string]string, files ...formFile) (*payload, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := w.WriteField(k, fields[k]); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", k, err)
		}
	}

	for _, f := range files {
		if f.r == nil {
			continue
		}
		contentType := mime.TypeByExtension(filepath.Ext(f.filename))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.field, filepath.Base(f.filename)))
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("failed to create part %s: %w", f.field, err)
		}
		if _, err := io.Copy(part, f.r); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", f.filename, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return &payload{data: buf.Bytes(), contentType: w.FormDataContentType(), accept: "application/json"}, nil
}
