package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/PauloHFS/llm-bootcamp/internal/logging"
	"github.com/PauloHFS/llm-bootcamp/migrations"
)

// Migration sets embedded in the migrations package. Demo versions start at 1
// and state versions at 101 so both can share one database file.
const (
	SetDemo  = "demo"
	SetState = "state"
)

// goose keeps its filesystem and dialect in package globals.
var gooseMu sync.Mutex

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	logging.Get().Debug(fmt.Sprintf(format, v...), slog.String("component", "goose"))
}

func (gooseLogger) Fatalf(format string, v ...any) {
	logging.Get().Error(fmt.Sprintf(format, v...), slog.String("component", "goose"))
}

// Migrate applies every pending migration of the named set.
func Migrate(ctx context.Context, db *sql.DB, set string) error {
	if set != SetDemo && set != SetState {
		return fmt.Errorf("unknown migration set %q", set)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, set); err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", set, err)
	}
	return nil
}
