package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/PauloHFS/llm-bootcamp/internal/chat"
	"github.com/PauloHFS/llm-bootcamp/internal/conversation"
	"github.com/PauloHFS/llm-bootcamp/internal/llm"
	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/moderation"
	"github.com/PauloHFS/llm-bootcamp/internal/sentiment"
	"github.com/PauloHFS/llm-bootcamp/internal/sqlgen"
	"github.com/PauloHFS/llm-bootcamp/internal/sse"
	"github.com/PauloHFS/llm-bootcamp/internal/vector"
)

const maxSentimentTexts = 20

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(w, err)
	logging.AddToEvent(r.Context(), slog.String("error", err.Error()))
	writeJSON(w, status, map[string]string{"error": publicMessage(status, err)})
}

// publicMessage hides upstream and internal details behind the status text.
// Client errors and unconfigured services keep their message.
func publicMessage(status int, err error) string {
	if status >= http.StatusInternalServerError && !errors.Is(err, errUnavailable) {
		return http.StatusText(status)
	}
	return err.Error()
}

func errorStatus(w http.ResponseWriter, err error) int {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, sqlgen.ErrInvalidQuery), errors.Is(err, moderation.ErrNoInput):
		status = http.StatusBadRequest
	case errors.Is(err, conversation.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errUnavailable):
		status = http.StatusServiceUnavailable
	case llm.IsRateLimitError(err):
		status = http.StatusTooManyRequests
		if d := llm.RetryAfter(err); d > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(d.Seconds()+0.5)))
		}
	case llm.IsTimeoutError(err):
		status = http.StatusGatewayTimeout
	}
	return status
}

var errUnavailable = errors.New("service not configured")

func unavailable(name string) error {
	return fmt.Errorf("%w: %s", errUnavailable, name)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.StateDB != nil {
		if err := s.deps.StateDB.PingContext(r.Context()); err != nil {
			logging.Get().ErrorContext(r.Context(), "health check failed: state db unreachable", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Stream    bool   `json:"stream"`
}

type chatResponse struct {
	SessionID string    `json:"session_id,omitempty"`
	Reply     string    `json:"reply"`
	Usage     llm.Usage `json:"usage"`
}

func sessionTitle(message string) string {
	r := []rune(strings.TrimSpace(message))
	if len(r) > 50 {
		r = r[:50]
	}
	return string(r)
}

// session resumes the stored conversation or starts a new one. New
// conversations are stored by persist once the first reply succeeds.
func (s *Server) session(r *http.Request, req chatRequest) (*chat.Session, error) {
	if s.deps.Store != nil && req.SessionID != "" {
		return chat.Resume(r.Context(), s.deps.Client, s.deps.ChatModel, s.deps.Store, req.SessionID)
	}
	return chat.NewSession(s.deps.Client, s.deps.ChatModel, s.deps.System), nil
}

// persist stores a new conversation with the turns it already holds. Without
// a store every request is a fresh, unpersisted conversation. A failure is
// logged and the reply is still returned, without a session id.
func (s *Server) persist(r *http.Request, sess *chat.Session, message string) {
	if s.deps.Store == nil || sess.ID != "" {
		return
	}
	if err := sess.Persist(r.Context(), s.deps.Store, sessionTitle(message)); err != nil {
		logging.Get().WarnContext(r.Context(), "failed to store chat session", slog.String("error", err.Error()))
		return
	}
	logging.AddToEvent(r.Context(), slog.String("session_id", sess.ID))
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Client == nil {
		writeError(w, r, unavailable("chat"))
		return
	}
	var req chatRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, r, fmt.Errorf("%w: message is required", errBadRequest))
		return
	}

	sess, err := s.session(r, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	sess.Stream = req.Stream
	logging.AddToEvent(r.Context(), slog.String("session_id", sess.ID), slog.Bool("stream", req.Stream))

	if !req.Stream {
		reply, err := sess.Send(r.Context(), req.Message, nil)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.persist(r, sess, req.Message)
		writeJSON(w, http.StatusOK, chatResponse{SessionID: sess.ID, Reply: reply.Content, Usage: reply.Usage})
		return
	}

	stream, err := sse.NewWriter(w)
	if err != nil {
		writeError(w, r, err)
		return
	}
	reply, err := sess.Send(r.Context(), req.Message, func(delta string) {
		stream.Send("token", delta)
	})
	if err != nil {
		logging.AddToEvent(r.Context(), slog.String("error", err.Error()))
		stream.JSON("error", map[string]string{"error": publicMessage(errorStatus(w, err), err)})
		return
	}
	s.persist(r, sess, req.Message)
	stream.JSON("done", chatResponse{SessionID: sess.ID, Reply: reply.Content, Usage: reply.Usage})
}

type sqlRequest struct {
	Question string `json:"question"`
	Execute  bool   `json:"execute"`
}

type sqlResponse struct {
	*sqlgen.Result
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows,omitempty"`
}

func (s *Server) sql(w http.ResponseWriter, r *http.Request) {
	if s.deps.SQL == nil {
		writeError(w, r, unavailable("sql"))
		return
	}
	var req sqlRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, r, fmt.Errorf("%w: question is required", errBadRequest))
		return
	}

	res, err := s.deps.SQL.Convert(r.Context(), req.Question)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := sqlResponse{Result: res}

	if req.Execute && res.Validation.Valid && s.deps.DemoDB != nil {
		rs, err := sqlgen.Execute(r.Context(), s.deps.DemoDB, res.SQL)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		out.Columns = rs.Columns
		out.Rows = rs.Maps()
	}
	writeJSON(w, http.StatusOK, out)
}

type sentimentRequest struct {
	Texts []string `json:"texts"`
}

func (s *Server) sentiment(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sentiment == nil {
		writeError(w, r, unavailable("sentiment"))
		return
	}
	var req sentimentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Texts) == 0 || len(req.Texts) > maxSentimentTexts {
		writeError(w, r, fmt.Errorf("%w: texts must hold between 1 and %d items", errBadRequest, maxSentimentTexts))
		return
	}

	results, err := s.deps.Sentiment.AnalyzeBatch(r.Context(), req.Texts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]sentiment.Analysis{"results": results})
}

// moderate accepts {"input": "text"} or {"input": ["a", "b"]}.
func (s *Server) moderate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Moderation == nil {
		writeError(w, r, unavailable("moderation"))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	if !gjson.ValidBytes(body) {
		writeError(w, r, fmt.Errorf("%w: invalid JSON", errBadRequest))
		return
	}

	var texts []string
	input := gjson.GetBytes(body, "input")
	switch {
	case input.IsArray():
		for _, v := range input.Array() {
			if v.Type != gjson.String {
				writeError(w, r, fmt.Errorf("%w: input items must be strings", errBadRequest))
				return
			}
			texts = append(texts, v.String())
		}
	case input.Type == gjson.String:
		texts = []string{input.String()}
	default:
		writeError(w, r, fmt.Errorf("%w: input must be a string or an array of strings", errBadRequest))
		return
	}

	results, err := s.deps.Moderation.CheckBatch(r.Context(), texts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]moderation.Result{"results": results})
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	if s.deps.Index == nil {
		writeError(w, r, unavailable("search"))
		return
	}
	var req searchRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, r, fmt.Errorf("%w: query is required", errBadRequest))
		return
	}
	if req.Limit <= 0 {
		req.Limit = 5
	}

	results, err := s.deps.Index.Search(r.Context(), req.Query, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if results == nil {
		results = []vector.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string][]vector.SearchResult{"results": results})
}
