package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Commit policies for multi-item mutations.
const (
	CommitPartial      = "partial"
	CommitAllOrNothing = "all-or-nothing"
)

// Inference providers for the fallback path.
const (
	ProviderNone      = "none"
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

type Config struct {
	// HTTP Server
	Port               string `koanf:"PORT"`
	RateLimitPerMinute int    `koanf:"RATE_LIMIT_PER_MINUTE"`

	// Ledger storage
	DataBackend    string `koanf:"DATA_BACKEND"`
	SQLiteDBPath   string `koanf:"SQLITE_DB_PATH"`
	CategoriesFile string `koanf:"CATEGORIES_FILE"`
	// SeedFile preloads the memory backend; ignored by sqlite
	SeedFile string `koanf:"SEED_FILE"`

	// AMQP ledger delta fan-out; empty URL disables publishing
	AMQPURL      string `koanf:"AMQP_URL"`
	AMQPExchange string `koanf:"AMQP_EXCHANGE"`
	AMQPQueue    string `koanf:"AMQP_QUEUE"`

	// Google Sheets mirror (worker only)
	GoogleSpreadsheetID      string `koanf:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName          string `koanf:"GOOGLE_SHEET_NAME"`
	GoogleServiceAccountJSON string `koanf:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile string `koanf:"GOOGLE_SERVICE_ACCOUNT_FILE"`

	// Fallback inference
	InferenceProvider string        `koanf:"INFERENCE_PROVIDER"`
	OllamaURL         string        `koanf:"OLLAMA_URL"`
	OllamaModel       string        `koanf:"OLLAMA_MODEL"`
	AnthropicAPIKey   string        `koanf:"ANTHROPIC_API_KEY"`
	AnthropicModel    string        `koanf:"ANTHROPIC_MODEL"`
	FallbackTimeout   time.Duration `koanf:"FALLBACK_TIMEOUT"`
	FallbackMaxTokens int           `koanf:"FALLBACK_MAX_TOKENS"`

	// Query engine
	ConfidenceThreshold float64 `koanf:"CONFIDENCE_THRESHOLD"`
	CommitPolicy        string  `koanf:"COMMIT_POLICY"`
	// CacheTTL expires cached ledger summaries
	CacheTTL time.Duration `koanf:"CACHE_TTL"`

	// Logging
	LogLevel  string `koanf:"LOG_LEVEL"`
	LogFormat string `koanf:"LOG_FORMAT"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:               "8081",
		RateLimitPerMinute: 60,

		DataBackend:  "memory",
		SQLiteDBPath: "./data/ledgerq.db",

		AMQPExchange: "ledgerq",
		AMQPQueue:    "ledger_deltas",

		GoogleSheetName: "Ledger",

		InferenceProvider: ProviderNone,
		OllamaURL:         "http://localhost:11434",
		OllamaModel:       "llama3.2",
		AnthropicModel:    "claude-3-5-haiku-latest",
		FallbackTimeout:   20 * time.Second,
		FallbackMaxTokens: 256,

		ConfidenceThreshold: 0.15,
		CommitPolicy:        CommitPartial,
		CacheTTL:            15 * time.Minute,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads the environment over the defaults.
func Load() (*Config, error) {
	cfg := Defaults()
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.CategoriesFile != "" {
		if _, err := os.Stat(c.CategoriesFile); err != nil {
			errors = append(errors, fmt.Sprintf("categories file '%s' is not readable: %v", c.CategoriesFile, err))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	providers := []string{ProviderNone, ProviderOllama, ProviderAnthropic}
	switch c.InferenceProvider {
	case ProviderNone:
	case ProviderOllama:
		if u, err := url.Parse(c.OllamaURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid Ollama URL '%s': must be http(s)", c.OllamaURL))
		}
		if c.OllamaModel == "" {
			errors = append(errors, "Ollama model cannot be empty when using the ollama provider")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errors = append(errors, "ANTHROPIC_API_KEY is required when using the anthropic provider")
		}
		if c.AnthropicModel == "" {
			errors = append(errors, "Anthropic model cannot be empty when using the anthropic provider")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid inference provider '%s': must be one of %v", c.InferenceProvider, providers))
	}

	if c.FallbackTimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid fallback timeout %v: must be at least 100ms", c.FallbackTimeout))
	} else if c.FallbackTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid fallback timeout %v: must be at most 5 minutes", c.FallbackTimeout))
	}
	if c.FallbackMaxTokens < 16 || c.FallbackMaxTokens > 8192 {
		errors = append(errors, fmt.Sprintf("invalid fallback max tokens %d: must be between 16 and 8192", c.FallbackMaxTokens))
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		errors = append(errors, fmt.Sprintf("invalid confidence threshold %v: must be between 0 and 1", c.ConfidenceThreshold))
	}
	if c.CommitPolicy != CommitPartial && c.CommitPolicy != CommitAllOrNothing {
		errors = append(errors, fmt.Sprintf("invalid commit policy '%s': must be '%s' or '%s'", c.CommitPolicy, CommitPartial, CommitAllOrNothing))
	}

	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s'", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateMirror checks the settings the Sheets mirror worker needs.
func (c *Config) ValidateMirror() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the mirror worker")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "GOOGLE_SPREADSHEET_ID is required for the mirror worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "GOOGLE_SHEET_NAME is required for the mirror worker")
	}
	if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("mirror configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
