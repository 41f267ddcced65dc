package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PauloHFS/llm-bootcamp/internal/conversation"
	"github.com/PauloHFS/llm-bootcamp/internal/db"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/middleware"
	"github.com/PauloHFS/llm-bootcamp/internal/moderation"
	"github.com/PauloHFS/llm-bootcamp/internal/sentiment"
	"github.com/PauloHFS/llm-bootcamp/internal/sqlgen"
	"github.com/PauloHFS/llm-bootcamp/internal/vector"
)

func stateDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "state.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn, db.SetState))
	return conn
}

func demoDB(t *testing.T) *db.DualPool {
	t.Helper()
	pool, err := db.NewDualPool(filepath.Join(t.TempDir(), "example.db"))
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, pool.Write, db.SetDemo))
	require.NoError(t, db.Seed(ctx, pool.Write))
	return pool
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	h := New(Deps{StateDB: stateDB(t)}).Handler(nil)

	rec := do(t, h, http.MethodGet, Health, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestChatPersistsSession(t *testing.T) {
	client := llm.NewMockClient(
		llm.MockResponse{Content: "A p-value measures evidence."},
		llm.MockResponse{Content: "Use a t-test."},
	)
	conn := stateDB(t)
	h := New(Deps{Client: client, ChatModel: "gpt-4o-mini", System: "sys", Store: conversation.NewStore(conn)}).Handler(nil)

	rec := do(t, h, http.MethodPost, Chat, `{"message":"What is a p-value?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first chatResponse
	decodeBody(t, rec, &first)
	assert.Equal(t, "A p-value measures evidence.", first.Reply)
	assert.Equal(t, 15, first.Usage.TotalTokens)
	require.NotEmpty(t, first.SessionID)

	rec = do(t, h, http.MethodPost, Chat, `{"session_id":"`+first.SessionID+`","message":"Which test?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var second chatResponse
	decodeBody(t, rec, &second)
	assert.Equal(t, first.SessionID, second.SessionID)

	msgs := client.Calls()[1].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, "sys", msgs[0].Content)
	assert.Equal(t, "What is a p-value?", msgs[1].Content)
	assert.Equal(t, "A p-value measures evidence.", msgs[2].Content)
	assert.Equal(t, "Which test?", msgs[3].Content)

	rec = do(t, h, http.MethodPost, Chat, `{"session_id":"missing","message":"hi"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatStreams(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Content: "Hello there friend"})
	h := New(Deps{Client: client, ChatModel: "m"}).Handler(nil)

	rec := do(t, h, http.MethodPost, Chat, `{"message":"hi","stream":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, 3, strings.Count(body, "event: token\n"))
	assert.Contains(t, body, "data: Hello \n")
	assert.Contains(t, body, "event: done\n")
	assert.Contains(t, body, `"reply":"Hello there friend"`)
}

func TestChatStreamError(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Err: &llm.APIError{StatusCode: 500, Message: "down"}})
	h := New(Deps{Client: client, ChatModel: "m"}).Handler(nil)

	rec := do(t, h, http.MethodPost, Chat, `{"message":"hi","stream":true}`)
	assert.Contains(t, rec.Body.String(), "event: error\n")
	assert.NotContains(t, rec.Body.String(), "event: done")
}

func TestFailedChatStoresNoSession(t *testing.T) {
	upstream := &llm.APIError{StatusCode: 500, Message: "model overloaded: shard 7 at 10.0.3.12"}
	store := conversation.NewStore(stateDB(t))
	client := llm.NewMockClient(llm.MockResponse{Err: upstream}, llm.MockResponse{Err: upstream})
	h := New(Deps{Client: client, ChatModel: "m", Store: store}).Handler(nil)

	rec := do(t, h, http.MethodPost, Chat, `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Bad Gateway"}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, Chat, `{"message":"hi","stream":true}`)
	assert.Contains(t, rec.Body.String(), "event: error\n")
	assert.NotContains(t, rec.Body.String(), "10.0.3.12")

	page, err := store.List(context.Background(), db.PagingParams{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, page.TotalItems)
}

func TestChatRejectsBadInput(t *testing.T) {
	h := New(Deps{Client: llm.NewMockClient(), ChatModel: "m"}).Handler(nil)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, Chat, `{"message":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, Chat, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, Chat, `{"msg":"hi"}`).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, Chat, "").Code)
}

func TestSQLExecutes(t *testing.T) {
	pool := demoDB(t)
	client := llm.NewMockClient(llm.ToolCallResponse("call_1", sqlgen.ToolGenerate,
		`{"sql_query":"SELECT name, salary FROM employees WHERE salary > 100000 ORDER BY salary DESC","explanation":"high earners","confidence":0.9}`))
	gen := sqlgen.NewGenerator(client, sqlgen.DBSchema(pool.Read), "m")
	h := New(Deps{SQL: gen, DemoDB: pool.Read}).Handler(nil)

	rec := do(t, h, http.MethodPost, SQL, `{"question":"Who earns more than 100000?","execute":true}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		SQL     string           `json:"sql_query"`
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}
	decodeBody(t, rec, &out)
	assert.Contains(t, out.SQL, "salary > 100000")
	assert.Equal(t, []string{"name", "salary"}, out.Columns)
	require.Len(t, out.Rows, 2)
	assert.Equal(t, "Alice Johnson", out.Rows[0]["name"])
	assert.Equal(t, "Eve Wilson", out.Rows[1]["name"])
}

func TestSentiment(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{
		Content: `{"sentiment":"Negative","confidence":0.8,"explanation":"frustrated","keywords":["frustrated"],"intensity":"High"}`,
	})
	h := New(Deps{Sentiment: sentiment.NewAnalyzer(client, "m")}).Handler(nil)

	rec := do(t, h, http.MethodPost, Sentiment, `{"texts":["bad service","worse food"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Results []sentiment.Analysis `json:"results"`
	}
	decodeBody(t, rec, &out)
	require.Len(t, out.Results, 2)
	assert.Equal(t, sentiment.Negative, out.Results[1].Sentiment)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, Sentiment, `{"texts":[]}`).Code)
}

type staticModerator struct{}

func (staticModerator) Moderate(_ context.Context, req llm.ModerationRequest) (*llm.ModerationResponse, error) {
	texts := req.Input.([]string)
	out := &llm.ModerationResponse{}
	for _, text := range texts {
		flagged := strings.Contains(text, "hurt")
		out.Results = append(out.Results, llm.ModerationResult{
			Flagged:        flagged,
			Categories:     map[string]bool{"violence": flagged},
			CategoryScores: map[string]float64{"violence": 0.9},
		})
	}
	return out, nil
}

func TestModerations(t *testing.T) {
	h := New(Deps{Moderation: moderation.NewService(staticModerator{}, "m")}).Handler(nil)

	rec := do(t, h, http.MethodPost, Moderations, `{"input":"I will hurt you"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out struct {
		Results []moderation.Result `json:"results"`
	}
	decodeBody(t, rec, &out)
	require.Len(t, out.Results, 1)
	assert.True(t, out.Results[0].Flagged)
	assert.Equal(t, []string{"violence"}, out.Results[0].Flags)

	rec = do(t, h, http.MethodPost, Moderations, `{"input":["hello","have a nice day"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &out)
	assert.Len(t, out.Results, 2)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, Moderations, `{"input":42}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, Moderations, `{"input":[1]}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, Moderations, `{"input":""}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, Moderations, `{`).Code)
}

func TestSearch(t *testing.T) {
	client := llm.NewMockClient()
	client.EmbedFunc = func(text string) []float64 {
		if strings.Contains(strings.ToLower(text), "python") {
			return []float64{1, 0}
		}
		return []float64{0, 1}
	}
	embedder, err := vector.NewEmbedder(client, "text-embedding-ada-002", vector.DefaultCacheSize)
	require.NoError(t, err)
	index := vector.NewIndex(stateDB(t), embedder)
	_, err = index.Add(context.Background(), "Python is a programming language", "Football is a sport")
	require.NoError(t, err)

	h := New(Deps{Index: index}).Handler(nil)
	rec := do(t, h, http.MethodPost, Search, `{"query":"learn python","limit":1}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out struct {
		Results []vector.SearchResult `json:"results"`
	}
	decodeBody(t, rec, &out)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "Python is a programming language", out.Results[0].Content)
	assert.InDelta(t, 1.0, out.Results[0].Similarity, 1e-9)
}

func TestUnconfiguredServices(t *testing.T) {
	h := New(Deps{}).Handler(nil)
	for _, path := range []string{Chat, SQL, Sentiment, Moderations, Search} {
		rec := do(t, h, http.MethodPost, path, `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestHandlerRateLimits(t *testing.T) {
	h := New(Deps{}).Handler(middleware.NewRateLimiter(0.001, 1))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, Health, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, Health, "").Code)
}

func TestUpstreamRateLimitMapsTo429(t *testing.T) {
	client := llm.NewMockClient(llm.MockResponse{Err: &llm.RateLimitError{APIError: llm.APIError{StatusCode: 429, Message: "slow down"}}})
	h := New(Deps{Client: client, ChatModel: "m"}).Handler(nil)

	rec := do(t, h, http.MethodPost, Chat, `{"message":"hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "slow down")
}
