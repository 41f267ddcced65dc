package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("DefaultValues", func(t *testing.T) {
		os.Clearenv()
		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Models.Chat != "gpt-4o-mini" {
			t.Errorf("expected chat model gpt-4o-mini, got %s", cfg.Models.Chat)
		}
		if cfg.DemoDatabaseURL != "./example.db" {
			t.Errorf("expected ./example.db, got %s", cfg.DemoDatabaseURL)
		}
		if cfg.Provider != ProviderOpenAI {
			t.Errorf("expected provider openai, got %s", cfg.Provider)
		}
	})

	t.Run("ProductionValidation", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("APP_ENV", "prod")
		_, err := Load()
		if err == nil {
			t.Error("expected error when OPENAI_API_KEY is missing in production")
		}
	})

	t.Run("CustomValues", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("CHAT_MODEL", "gpt-4o")
		os.Setenv("LLM_TIMEOUT", "5s")
		os.Setenv("LLM_MAX_RETRIES", "1")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Models.Chat != "gpt-4o" {
			t.Errorf("expected gpt-4o, got %s", cfg.Models.Chat)
		}
		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected 5s timeout, got %s", cfg.Timeout)
		}
		if cfg.MaxRetries != 1 {
			t.Errorf("expected 1 retry, got %d", cfg.MaxRetries)
		}
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("LLM_PROVIDER", "skynet")
		if _, err := Load(); err == nil {
			t.Error("expected error for unknown provider")
		}
	})

	t.Run("UnknownTraceExporter", func(t *testing.T) {
		os.Clearenv()
		os.Setenv("OTEL_TRACES_EXPORTER", "zipkin")
		if _, err := Load(); err == nil {
			t.Error("expected error for unknown trace exporter")
		}
	})

	t.Run("YAMLOverlay", func(t *testing.T) {
		os.Clearenv()
		path := filepath.Join(t.TempDir(), "bootcamp.yaml")
		content := "provider: ollama\nmodels:\n  chat: llama3.2\nlog:\n  format: json\n"
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		os.Setenv("CONFIG_PATH", path)
		os.Setenv("LOG_FORMAT", "text")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.Provider != ProviderOllama {
			t.Errorf("expected provider from file, got %s", cfg.Provider)
		}
		if cfg.Models.Chat != "llama3.2" {
			t.Errorf("expected chat model from file, got %s", cfg.Models.Chat)
		}
		if cfg.Models.Embedding != "text-embedding-ada-002" {
			t.Errorf("expected untouched default, got %s", cfg.Models.Embedding)
		}
		if cfg.Log.Format != "text" {
			t.Errorf("expected env to win over file, got %s", cfg.Log.Format)
		}
	})
}

func TestRequireAPIKey(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"openai missing", Config{Provider: ProviderOpenAI}, "OPENAI_API_KEY is not set in the environment variables"},
		{"openai present", Config{Provider: ProviderOpenAI, OpenAIAPIKey: "sk-test"}, ""},
		{"anthropic missing", Config{Provider: ProviderAnthropic, OpenAIAPIKey: "sk-test"}, "ANTHROPIC_API_KEY is not set in the environment variables"},
		{"ollama needs nothing", Config{Provider: ProviderOllama}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.RequireAPIKey()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSQLiteDSN(t *testing.T) {
	cfg := SQLiteConfig{WALMode: true, SyncLevel: "NORMAL", BusyTimeoutMS: 5000}

	tests := []struct {
		name     string
		path     string
		readOnly bool
		want     string
	}{
		{"write pool", "example.db", false, "file:example.db?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"},
		{"read pool", "example.db", true, "file:example.db?_busy_timeout=5000&mode=ro"},
		{"existing query", "file:data.db?cache=private", true, "file:data.db?cache=private&_busy_timeout=5000&mode=ro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cfg.DSN(tt.path, tt.readOnly); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}
