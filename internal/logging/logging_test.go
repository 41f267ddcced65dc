package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("bogus"))
}

func TestInitWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	cleanup := Init(Options{Level: "info", Format: "json", Output: path, MaxSize: 1})

	Get().Info("hello", slog.String("k", "v"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, `"msg":"hello"`), line)
	assert.True(t, strings.Contains(line, `"service":"llm-bootcamp"`), line)
}

func TestEventContext(t *testing.T) {
	assert.Nil(t, EventFromContext(context.Background()))

	ctx, event := NewEventContext(context.Background())
	AddToEvent(ctx, slog.String("a", "1"))
	event.Add(slog.Int("b", 2))

	attrs := EventFromContext(ctx).Attrs()
	require.Len(t, attrs, 2)
	assert.Equal(t, "a", attrs[0].(slog.Attr).Key)

	// no-op without an event
	AddToEvent(context.Background(), slog.String("ignored", "x"))
}
