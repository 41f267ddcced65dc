package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/internal/sse"
)

const panicBody = `{"error":"internal server error"}`

// Recovery turns a handler panic into a 500. It sits inside Logger, so the
// panic lands on the request's wide event together with the request and
// session ids. A chat stream that already sent headers gets a final SSE
// error event instead of a JSON body.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			logging.AddToEvent(r.Context(), slog.String("panic", fmt.Sprint(rec)))
			logging.Get().ErrorContext(r.Context(), "panic recovered",
				slog.Any("error", rec),
				slog.String("request_id", w.Header().Get(RequestIDHeader)),
				slog.String("path", r.URL.Path),
				slog.String("stack", string(debug.Stack())),
			)

			if w.Header().Get("Content-Type") == "text/event-stream" {
				fmt.Fprint(w, sse.Format("error", panicBody))
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(panicBody))
		}()

		next.ServeHTTP(w, r)
	})
}
