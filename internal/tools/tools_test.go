package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/PauloHFS/llm-bootcamp/internal/db"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/vector"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"15 * 23 + 7", 352},
		{"25 * 4", 100},
		{"42 * 17 + 89", 803},
		{"2 ^ 10", 1024},
		{"(1 + 2) / 4", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluateRejects(t *testing.T) {
	for _, expr := range []string{"", "1 > 2", "'abc'", "1 / 0", "x + 1", "2 +"} {
		_, err := Evaluate(expr)
		assert.Error(t, err, expr)
	}

	_, err := Evaluate("3 < 4")
	assert.ErrorIs(t, err, ErrNotNumeric)
}

func TestForecast(t *testing.T) {
	out, err := Forecast("San Francisco, CA", "")
	require.NoError(t, err)
	assert.Equal(t, "San Francisco", gjson.Get(out, "location").String())
	assert.Equal(t, Celsius, gjson.Get(out, "unit").String())
	c := gjson.Get(out, "temperature").Float()
	assert.GreaterOrEqual(t, c, -5.0)
	assert.Less(t, c, 30.0)

	again, err := Forecast("san francisco", Celsius)
	require.NoError(t, err)
	assert.Equal(t, out, again)

	f, err := Forecast("NYC", Fahrenheit)
	require.NoError(t, err)
	nyc, err := Forecast("New York City", Celsius)
	require.NoError(t, err)
	assert.InDelta(t, gjson.Get(nyc, "temperature").Float()*9/5+32, gjson.Get(f, "temperature").Float(), 0.05)

	_, err = Forecast("Atlantis", "")
	assert.ErrorIs(t, err, ErrUnknownLocation)

	_, err = Forecast("Tokyo", "kelvin")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry(Calculator(), Weather())
	require.NoError(t, err)
	assert.Equal(t, []string{CalculateName, WeatherName}, r.Names())

	err = r.Register(Calculator())
	assert.ErrorIs(t, err, ErrDuplicateTool)

	out, err := r.Execute(context.Background(), CalculateName, `{"expression":"15 * 23 + 7"}`)
	require.NoError(t, err)
	assert.Equal(t, "352", out)

	_, err = r.Execute(context.Background(), "search_web", `{}`)
	assert.ErrorIs(t, err, ErrUnknownTool)

	_, err = r.Execute(context.Background(), CalculateName, `not json`)
	assert.Error(t, err)

	chat := r.ChatTools()
	require.Len(t, chat, 2)
	assert.Equal(t, "function", chat[0].Type)
	assert.Equal(t, CalculateName, chat[0].Function.Name)
	assert.Equal(t, []any{"expression"}, toAny(chat[0].Function.Parameters["required"]))

	weatherProps, ok := chat[1].Function.Parameters["properties"].(map[string]any)
	require.True(t, ok)
	unit, ok := weatherProps["unit"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []any{"celsius", "fahrenheit"}, unit["enum"])

	resp := r.ResponseTools()
	require.Len(t, resp, 2)
	assert.Equal(t, WeatherName, resp[1].Name)

	sub, err := r.Subset(WeatherName)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.Len())
	_, err = r.Subset("nope")
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func toAny(v any) []any {
	switch x := v.(type) {
	case []any:
		return x
	case []string:
		out := make([]any, len(x))
		for i, s := range x {
			out[i] = s
		}
		return out
	}
	return nil
}

func TestDatabaseTool(t *testing.T) {
	pool, err := db.NewDualPool(filepath.Join(t.TempDir(), "example.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, pool.Write, db.SetDemo))
	require.NoError(t, db.Seed(ctx, pool.Write))

	def := Database(pool.Read)
	out, err := def.Handler(ctx, []byte(`{"query":"SELECT name FROM employees WHERE salary > 100000 ORDER BY salary DESC","table":"employees"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Alice Johnson")
	assert.Contains(t, out, "Eve Wilson")
	assert.NotContains(t, out, "Bob Smith")

	_, err = def.Handler(ctx, []byte(`{"query":"DELETE FROM employees"}`))
	assert.Error(t, err)
}

func TestDocumentSearchTool(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "state.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, conn, db.SetState))

	client := llm.NewMockClient()
	client.EmbedFunc = func(text string) []float64 {
		v := make([]float64, len(vector.SearchCorpus)+1)
		v[len(vector.SearchCorpus)] = 1
		for i, doc := range vector.SearchCorpus {
			if doc == text {
				v = make([]float64, len(vector.SearchCorpus)+1)
				v[i] = 1
			}
		}
		return v
	}
	e, err := vector.NewEmbedder(client, "m", 0)
	require.NoError(t, err)
	index := vector.NewIndex(conn, e)
	_, err = index.Add(ctx, vector.SearchCorpus...)
	require.NoError(t, err)

	def := DocumentSearch(index)
	out, err := def.Handler(ctx, []byte(`{"query":"Cooking requires patience and skill.","limit":1}`))
	require.NoError(t, err)
	hits := gjson.Parse(out).Array()
	require.Len(t, hits, 1)
	assert.Equal(t, "Cooking requires patience and skill.", hits[0].Get("content").String())

	_, err = def.Handler(ctx, []byte(`{}`))
	assert.Error(t, err)
}
