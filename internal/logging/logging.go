package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger   *slog.Logger
	loggerMu sync.RWMutex
)

type contextKey string

const (
	eventKey contextKey = "event"
)

// Event accumulates attributes for a single "wide" log entry.
type Event struct {
	mu    sync.Mutex
	attrs []slog.Attr
}

func (e *Event) Add(attrs ...slog.Attr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs = append(e.attrs, attrs...)
}

func (e *Event) Attrs() []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	args := make([]any, len(e.attrs))
	for i, attr := range e.attrs {
		args[i] = attr
	}
	return args
}

type Options struct {
	Level      string
	Format     string // "text" or "json"
	Output     string // comma separated: stdout, stderr or file paths
	MaxSize    int    // MB per rotated file
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// Init configures the process logger and returns a cleanup that closes any
// rotating file writers.
func Init(opts Options) func() {
	writers, closers := buildWriters(opts)

	var w io.Writer = os.Stderr
	if len(writers) == 1 {
		w = writers[0]
	} else if len(writers) > 1 {
		w = io.MultiWriter(writers...)
	}

	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var handler slog.Handler
	if strings.ToLower(opts.Format) == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	version := os.Getenv("VERSION")
	if version == "" {
		version = "dev"
	}

	l := slog.New(handler).With(
		slog.String("version", version),
		slog.String("service", "llm-bootcamp"),
	)

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	slog.SetDefault(l)

	return func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
}

func buildWriters(opts Options) ([]io.Writer, []io.Closer) {
	var (
		writers []io.Writer
		closers []io.Closer
	)

	for _, out := range strings.Split(opts.Output, ",") {
		out = strings.TrimSpace(out)
		switch out {
		case "":
			continue
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			lj := &lumberjack.Logger{
				Filename:   out,
				MaxSize:    opts.MaxSize,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAge,
				Compress:   opts.Compress,
			}
			writers = append(writers, lj)
			closers = append(closers, lj)
		}
	}

	return writers, closers
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func Get() *slog.Logger {
	loggerMu.RLock()
	l := logger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}
	Init(Options{Level: "warn", Format: "text", Output: "stderr"})
	return Get()
}

func NewEventContext(ctx context.Context) (context.Context, *Event) {
	e := &Event{}
	return context.WithValue(ctx, eventKey, e), e
}

func EventFromContext(ctx context.Context) *Event {
	if e, ok := ctx.Value(eventKey).(*Event); ok {
		return e
	}
	return nil
}

// AddToEvent adds attributes to the event in the context, if it exists.
func AddToEvent(ctx context.Context, attrs ...slog.Attr) {
	if e := EventFromContext(ctx); e != nil {
		e.Add(attrs...)
	}
}
