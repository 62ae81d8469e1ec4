package config

import (
	"fmt"
	"log/slog"
	"slices"
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// Provider validation
	validProviders := []string{ProviderGemini, ProviderOllama, ProviderOpenAI, ProviderGoogleAI}
	if !slices.Contains(validProviders, c.Provider) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidProvider, c.Provider, validProviders)
	}

	// Model configuration validation
	if c.ReasoningModel == "" {
		return fmt.Errorf("%w: reasoning_model cannot be empty", ErrInvalidModelName)
	}
	if c.StructuringModel == "" {
		return fmt.Errorf("%w: structuring_model cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Temperature range: 0.0 (deterministic) to 2.0 (maximum creativity)
	if c.Temperature < 0.0 || c.Temperature > 2.0 {
		return fmt.Errorf("%w: must be between 0.0 and 2.0, got %.2f", ErrInvalidTemperature, c.Temperature)
	}

	// MaxTokens range: 1 to 2097152 (Gemini 2.5 max context window)
	if c.MaxTokens < 1 || c.MaxTokens > 2097152 {
		return fmt.Errorf("%w: must be between 1 and 2,097,152, got %d", ErrInvalidMaxTokens, c.MaxTokens)
	}

	// Retry attempts: at least one attempt, bounded to keep worst-case
	// latency predictable.
	if c.RetryAttempts < 1 || c.RetryAttempts > 10 {
		return fmt.Errorf("%w: must be between 1 and 10, got %d", ErrInvalidRetryAttempts, c.RetryAttempts)
	}

	// PostgreSQL configuration validation
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}

	if c.PostgresPassword == "lorekeep_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Modern SSL modes only - the deprecated allow/prefer modes are
	// vulnerable to MITM.
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// MinIO configuration validation
	if c.MinioEndpoint == "" {
		return fmt.Errorf("%w: endpoint cannot be empty", ErrInvalidMinioEndpoint)
	}
	if c.MinioBucket == "" {
		return fmt.Errorf("%w: bucket cannot be empty", ErrInvalidMinioBucket)
	}

	return nil
}
