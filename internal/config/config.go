package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenAISDK  = "openai-sdk"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

type Models struct {
	Chat          string `yaml:"chat"`
	Completion    string `yaml:"completion"`
	Embedding     string `yaml:"embedding"`
	Image         string `yaml:"image"`
	Transcription string `yaml:"transcription"`
	Speech        string `yaml:"speech"`
	Moderation    string `yaml:"moderation"`
	Responses     string `yaml:"responses"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

type Config struct {
	Env                string        `yaml:"env"` // "dev" or "prod"
	Provider           string        `yaml:"provider"`
	OpenAIAPIKey       string        `yaml:"-"`
	OpenAIBaseURL      string        `yaml:"openai_base_url"`
	OpenAIOrganization string        `yaml:"openai_organization"`
	AnthropicAPIKey    string        `yaml:"-"`
	Models             Models        `yaml:"models"`
	Timeout            time.Duration `yaml:"timeout"`
	MaxRetries         int           `yaml:"max_retries"`
	RateLimit          float64       `yaml:"rate_limit"`
	RateBurst          int           `yaml:"rate_burst"`
	DemoDatabaseURL    string        `yaml:"database_url"`
	StateDatabaseURL   string        `yaml:"state_database_url"`
	SpeechDir          string        `yaml:"speech_dir"`
	Log                LogConfig     `yaml:"log"`
	MetricsAddr        string        `yaml:"metrics_addr"`
	TraceExporter      string        `yaml:"trace_exporter"` // "", "stdout", "otlp-http" or "otlp-grpc"
	TraceEndpoint      string        `yaml:"trace_endpoint"`
	ServerAddr         string        `yaml:"addr"`
}

// Defaults mirrors the models and settings used throughout the tutorials.
func Defaults() *Config {
	return &Config{
		Env:           "dev",
		Provider:      ProviderOpenAI,
		OpenAIBaseURL: "https://api.openai.com",
		Models: Models{
			Chat:          "gpt-4o-mini",
			Completion:    "gpt-3.5-turbo-instruct",
			Embedding:     "text-embedding-ada-002",
			Image:         "dall-e-3",
			Transcription: "whisper-1",
			Speech:        "gpt-4o-mini-tts",
			Moderation:    "omni-moderation-latest",
			Responses:     "gpt-4o",
		},
		Timeout:          60 * time.Second,
		MaxRetries:       3,
		RateLimit:        5,
		RateBurst:        10,
		DemoDatabaseURL:  "./example.db",
		StateDatabaseURL: "./bootcamp.db",
		SpeechDir:        "./speech",
		Log: LogConfig{
			Level:      "warn",
			Format:     "text",
			Output:     "stderr",
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     7,
		},
		ServerAddr: ":8080",
	}
}

// Load resolves configuration with precedence defaults < YAML file < .env < environment.
func Load() (*Config, error) {
	cfg := Defaults()

	path := getEnv("CONFIG_PATH", "bootcamp.yaml")
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	_ = godotenv.Load()

	cfg.Env = getEnv("APP_ENV", cfg.Env)
	cfg.Provider = getEnv("LLM_PROVIDER", cfg.Provider)
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.OpenAIOrganization = getEnv("OPENAI_ORGANIZATION", cfg.OpenAIOrganization)
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")

	cfg.Models.Chat = getEnv("CHAT_MODEL", cfg.Models.Chat)
	cfg.Models.Completion = getEnv("COMPLETION_MODEL", cfg.Models.Completion)
	cfg.Models.Embedding = getEnv("EMBEDDING_MODEL", cfg.Models.Embedding)
	cfg.Models.Image = getEnv("IMAGE_MODEL", cfg.Models.Image)
	cfg.Models.Transcription = getEnv("TRANSCRIPTION_MODEL", cfg.Models.Transcription)
	cfg.Models.Speech = getEnv("SPEECH_MODEL", cfg.Models.Speech)
	cfg.Models.Moderation = getEnv("MODERATION_MODEL", cfg.Models.Moderation)
	cfg.Models.Responses = getEnv("RESPONSES_MODEL", cfg.Models.Responses)

	cfg.Timeout = getEnvDuration("LLM_TIMEOUT", cfg.Timeout)
	cfg.MaxRetries = getEnvInt("LLM_MAX_RETRIES", cfg.MaxRetries)
	cfg.RateLimit = getEnvFloat("LLM_RATE_LIMIT", cfg.RateLimit)
	cfg.RateBurst = getEnvInt("LLM_RATE_BURST", cfg.RateBurst)

	cfg.DemoDatabaseURL = getEnv("DATABASE_URL", cfg.DemoDatabaseURL)
	cfg.StateDatabaseURL = getEnv("STATE_DATABASE_URL", cfg.StateDatabaseURL)
	cfg.SpeechDir = getEnv("SPEECH_DIR", cfg.SpeechDir)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Output = getEnv("LOG_OUTPUT", cfg.Log.Output)
	cfg.Log.MaxSize = getEnvInt("LOG_MAX_SIZE", cfg.Log.MaxSize)
	cfg.Log.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", cfg.Log.MaxBackups)
	cfg.Log.MaxAge = getEnvInt("LOG_MAX_AGE", cfg.Log.MaxAge)
	cfg.Log.Compress = getEnvBool("LOG_COMPRESS", cfg.Log.Compress)

	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)
	cfg.TraceExporter = getEnv("OTEL_TRACES_EXPORTER", cfg.TraceExporter)
	cfg.TraceEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.TraceEndpoint)
	cfg.ServerAddr = getEnv("ADDR", cfg.ServerAddr)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Production refuses to boot without a credential for the active provider.
	if cfg.Env == "prod" {
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, fmt.Errorf("prod: %w", err)
		}
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderOpenAISDK, ProviderAnthropic, ProviderOllama, ProviderOpenRouter:
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.Provider)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("LLM_MAX_RETRIES must not be negative")
	}
	if c.RateLimit <= 0 || c.RateBurst <= 0 {
		return fmt.Errorf("LLM_RATE_LIMIT and LLM_RATE_BURST must be positive")
	}
	switch c.TraceExporter {
	case "", "none", "stdout", "otlp-http", "otlp-grpc":
	default:
		return fmt.Errorf("OTEL_TRACES_EXPORTER must be stdout, otlp-http or otlp-grpc, got %q", c.TraceExporter)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// RequireAPIKey reports a missing credential for the selected provider.
func (c *Config) RequireAPIKey() error {
	switch c.Provider {
	case ProviderOllama:
		return nil
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY is not set in the environment variables")
		}
		return nil
	default:
		return c.RequireOpenAIKey()
	}
}

// RequireOpenAIKey guards commands that always talk to the OpenAI API (images, audio, moderation...).
func (c *Config) RequireOpenAIKey() error {
	if c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is not set in the environment variables")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
