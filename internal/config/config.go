// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.lorekeep/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: provider, reasoning/structuring model selection, embedder, retry policy
//   - Storage: PostgreSQL connection (see storage.go)
//   - Blob: MinIO object storage for extracted article bodies
//
// Security: sensitive data (passwords, keys) are never logged; the config
// directory uses 0750 permissions. Validation is fail-fast with sentinel
// errors usable with errors.Is().
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates a model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidRetryAttempts indicates the retry attempt count is out of range.
	ErrInvalidRetryAttempts = errors.New("invalid retry attempts")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidMinioEndpoint indicates the MinIO endpoint is invalid.
	ErrInvalidMinioEndpoint = errors.New("invalid MinIO endpoint")

	// ErrInvalidMinioBucket indicates the MinIO bucket name is invalid.
	ErrInvalidMinioBucket = errors.New("invalid MinIO bucket")
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini   = "gemini"
	ProviderOllama   = "ollama"
	ProviderOpenAI   = "openai"
	ProviderGoogleAI = "googleai"
)

const (
	// DefaultGeminiEmbedderModel is the default Gemini embedder model.
	// Output is truncated to 768 dimensions to match the pgvector schema;
	// see vector.Dimension.
	DefaultGeminiEmbedderModel = "gemini-embedding-001"

	// DefaultReasoningModel is the default model for free-form reasoning.
	DefaultReasoningModel = "gemini-2.5-pro"

	// DefaultStructuringModel is the default model for schema-constrained
	// output. A lighter model suffices: it only reshapes prior reasoning.
	DefaultStructuringModel = "gemini-2.5-flash"
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields, update MarshalJSON.
type Config struct {
	// AI provider and model configuration. Reasoning and structuring use
	// separate models so format-compliance failures retry independently of
	// reasoning failures.
	Provider         string  `mapstructure:"provider" json:"provider"`
	ReasoningModel   string  `mapstructure:"reasoning_model" json:"reasoning_model"`
	StructuringModel string  `mapstructure:"structuring_model" json:"structuring_model"`
	EmbedderModel    string  `mapstructure:"embedder_model" json:"embedder_model"`
	Temperature      float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens        int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Ollama configuration (only used when provider is "ollama")
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Inference retry policy
	RetryAttempts int `mapstructure:"retry_attempts" json:"retry_attempts"`

	// RequestsPerSecond rate-limits model calls. Zero falls back to the
	// gateway default; a negative value disables limiting.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" json:"requests_per_second"`

	// Storage configuration (see storage.go for documentation)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Blob storage configuration (MinIO)
	MinioEndpoint  string `mapstructure:"minio_endpoint" json:"minio_endpoint"`
	MinioAccessKey string `mapstructure:"minio_access_key" json:"minio_access_key"`
	MinioSecretKey string `mapstructure:"minio_secret_key" json:"minio_secret_key"` // SENSITIVE: masked in MarshalJSON
	MinioBucket    string `mapstructure:"minio_bucket" json:"minio_bucket"`
	MinioUseSSL    bool   `mapstructure:"minio_use_ssl" json:"minio_use_ssl"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".lorekeep")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL overrides individual postgres_* settings when set.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	// AI defaults
	viper.SetDefault("provider", ProviderGemini)
	viper.SetDefault("reasoning_model", DefaultReasoningModel)
	viper.SetDefault("structuring_model", DefaultStructuringModel)
	viper.SetDefault("embedder_model", DefaultGeminiEmbedderModel)
	viper.SetDefault("temperature", 0.7)
	viper.SetDefault("max_tokens", 4096)
	viper.SetDefault("retry_attempts", 3)
	viper.SetDefault("requests_per_second", 10)

	// Ollama defaults
	viper.SetDefault("ollama_host", "http://localhost:11434")

	// PostgreSQL defaults (matching docker-compose.yml)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "lorekeep")
	viper.SetDefault("postgres_password", "lorekeep_dev_password")
	viper.SetDefault("postgres_db_name", "lorekeep")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// MinIO defaults
	viper.SetDefault("minio_endpoint", "localhost:9000")
	viper.SetDefault("minio_access_key", "lorekeep")
	viper.SetDefault("minio_bucket", "lorekeep-articles")
	viper.SetDefault("minio_use_ssl", false)
}

// bindEnvVariables binds sensitive environment variables explicitly.
// GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit plugins,
// not via Viper; validation checks their presence based on the provider.
func bindEnvVariables() {
	// Hardcoded keys cannot fail to bind; a panic here is a bug, not a
	// runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("provider", "LOREKEEP_PROVIDER")
	mustBind("reasoning_model", "LOREKEEP_REASONING_MODEL")
	mustBind("structuring_model", "LOREKEEP_STRUCTURING_MODEL")
	mustBind("ollama_host", "LOREKEEP_OLLAMA_HOST")

	mustBind("minio_endpoint", "MINIO_ENDPOINT")
	mustBind("minio_access_key", "MINIO_ACCESS_KEY")
	mustBind("minio_secret_key", "MINIO_SECRET_KEY")
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks (U+2588) avoid accidental substring matches against the
// real secret in log output.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 characters or fewer are fully masked; longer secrets keep the
// first and last 2 characters for debug utility.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.MinioSecretKey = maskSecret(a.MinioSecretKey)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// FullModelName returns the provider-qualified name for Genkit.
// Examples: "googleai/gemini-2.5-pro", "ollama/llama3.3", "openai/gpt-4o".
// Names already containing "/" are returned as-is.
func (c *Config) FullModelName(model string) string {
	if strings.Contains(model, "/") {
		return model
	}
	switch c.Provider {
	case ProviderOllama:
		return ProviderOllama + "/" + model
	case ProviderOpenAI:
		return ProviderOpenAI + "/" + model
	default:
		return ProviderGoogleAI + "/" + model
	}
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
