package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Database    DatabaseConfig `toml:"database"`
	Logging     LoggingConfig  `toml:"logging"`
	Worker      WorkerConfig   `toml:"worker"`
	Digest      DigestConfig   `toml:"digest"`
	Telegram    TelegramConfig `toml:"telegram"`
	LLM         LLMConfig      `toml:"llm"`
}

type DatabaseConfig struct {
	Path         string `toml:"path" validate:"required"` // SQLite database file path
	CacheSize    int    `toml:"cache_size"`
	BusyTimeout  int    `toml:"busy_timeout_ms"`
	WALMode      bool   `toml:"wal_mode"`
	MaxOpenConns int    `toml:"max_open_conns"`
}

type LoggingConfig struct {
	Level  string   `toml:"level" validate:"oneof=trace debug info warn error"` // "debug", "info", "warn", "error"
	Format string   `toml:"format"`                                             // "json" or "text"
	Output []string `toml:"output"`                                             // "stdout", "file"
}

// WorkerConfig controls the fetch worker loop. Environment variables
// (WORKER_*) override these values.
type WorkerConfig struct {
	IntervalSeconds int `toml:"interval_seconds" validate:"min=1"`
	JitterSeconds   int `toml:"jitter_seconds" validate:"min=0"`
	MaxSources      int `toml:"max_sources" validate:"min=1"`
}

// DigestConfig controls where digests are written and how they are linked.
type DigestConfig struct {
	OutputDir string `toml:"output_dir" validate:"required"` // directory for generated HTML files
	BaseURL   string `toml:"base_url"`                       // public base URL for digest links, may be empty
}

// TelegramConfig holds notification credentials. Token may come from
// VIGIL_TELEGRAM_TOKEN instead of the config file.
type TelegramConfig struct {
	Token   string  `toml:"token"`
	ChatIDs []int64 `toml:"chat_ids"`
}

// LLMConfig holds provider credentials and endpoints for the summarizer.
// Which provider is used is a runtime setting, not config.
type LLMConfig struct {
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	OpenAIAPIKey    string `toml:"openai_api_key"`
	GoogleAPIKey    string `toml:"google_api_key"`
	OllamaURL       string `toml:"ollama_url"`
	Timeout         string `toml:"timeout"` // duration string, default "60s"
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in vigil.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Database: DatabaseConfig{
			Path:         "./data/vigil.db",
			CacheSize:    2000,
			BusyTimeout:  5000,
			WALMode:      true,
			MaxOpenConns: 4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
		Worker: WorkerConfig{
			IntervalSeconds: 300,
			JitterSeconds:   60,
			MaxSources:      10,
		},
		Digest: DigestConfig{
			OutputDir: "./data/digests",
			BaseURL:   "",
		},
		Telegram: TelegramConfig{},
		LLM: LLMConfig{
			OllamaURL: "http://localhost:11434",
			Timeout:   "60s",
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files; environment variables override everything.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration against struct constraints.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("VIGIL_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Database configuration
	if path := os.Getenv("VIGIL_DATABASE_PATH"); path != "" {
		config.Database.Path = path
	}

	// Logging configuration
	if level := os.Getenv("VIGIL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("VIGIL_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("VIGIL_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Worker configuration. The WORKER_* names (no VIGIL_ prefix) are the
	// ones the deployment units set per instance.
	if interval := os.Getenv("WORKER_INTERVAL_SECONDS"); interval != "" {
		if v, err := strconv.Atoi(interval); err == nil && v > 0 {
			config.Worker.IntervalSeconds = v
		}
	}
	if jitter := os.Getenv("WORKER_JITTER_SECONDS"); jitter != "" {
		if v, err := strconv.Atoi(jitter); err == nil && v >= 0 {
			config.Worker.JitterSeconds = v
		}
	}
	if maxSources := os.Getenv("WORKER_MAX_SOURCES"); maxSources != "" {
		if v, err := strconv.Atoi(maxSources); err == nil && v > 0 {
			config.Worker.MaxSources = v
		}
	}
	if level := os.Getenv("WORKER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Digest configuration
	if dir := os.Getenv("VIGIL_DIGEST_OUTPUT_DIR"); dir != "" {
		config.Digest.OutputDir = dir
	}
	if baseURL := os.Getenv("VIGIL_DIGEST_BASE_URL"); baseURL != "" {
		config.Digest.BaseURL = baseURL
	}

	// Telegram configuration
	if token := os.Getenv("VIGIL_TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if chatIDs := os.Getenv("VIGIL_TELEGRAM_CHAT_IDS"); chatIDs != "" {
		ids := []int64{}
		for _, part := range strings.Split(chatIDs, ",") {
			if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			config.Telegram.ChatIDs = ids
		}
	}

	// LLM provider credentials. Standard provider env vars are honored
	// first, VIGIL_ prefixed names take priority when both are set.
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.LLM.AnthropicAPIKey = apiKey
	}
	if apiKey := os.Getenv("VIGIL_ANTHROPIC_API_KEY"); apiKey != "" {
		config.LLM.AnthropicAPIKey = apiKey
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.OpenAIAPIKey = apiKey
	}
	if apiKey := os.Getenv("VIGIL_OPENAI_API_KEY"); apiKey != "" {
		config.LLM.OpenAIAPIKey = apiKey
	}
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.LLM.GoogleAPIKey = apiKey
	}
	if apiKey := os.Getenv("VIGIL_GOOGLE_API_KEY"); apiKey != "" {
		config.LLM.GoogleAPIKey = apiKey
	}
	if url := os.Getenv("VIGIL_OLLAMA_URL"); url != "" {
		config.LLM.OllamaURL = url
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
