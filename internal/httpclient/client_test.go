package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "PNGDATA")
	}))
	defer srv.Close()

	var buf bytes.Buffer
	n, err := Default().Download(context.Background(), srv.URL+"/img.png", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "PNGDATA", buf.String())
}

func TestDownloadStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := Default().Download(context.Background(), srv.URL, io.Discard)
	assert.ErrorContains(t, err, "403")
}

func TestWithAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	c := New(Config{Name: "auth"})
	WithAuth(func(r *http.Request) { r.Header.Set("Authorization", "Bearer token") })(c)

	resp, err := c.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "auth", c.Name())
}
