// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (LEXORA_* plus the provider API key variables)
//  2. Config file (~/.lexora/config.yaml)
//  3. Default values
//
// Sensitive fields (API keys, database password, JWT secret, content key) are
// masked in MarshalJSON and must never be logged directly.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Sentinel errors for configuration validation.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidProvider indicates the LLM provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrMissingAPIKey indicates no API key is configured for any provider.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidTemperature indicates the temperature is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is empty.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is empty.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates an unknown sslmode value.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrMissingJWTSecret indicates the JWT signing secret is not set.
	ErrMissingJWTSecret = errors.New("missing JWT secret")

	// ErrInvalidJWTSecret indicates the JWT signing secret is too short.
	ErrInvalidJWTSecret = errors.New("invalid JWT secret")

	// ErrInvalidContentKey indicates the content encryption key is not a
	// base64-encoded 32-byte value.
	ErrInvalidContentKey = errors.New("invalid content encryption key")
)

// LLM provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderHybrid = "hybrid"
)

const (
	// DefaultGeminiModel is the default Gemini generation model.
	DefaultGeminiModel = "gemini-2.5-flash"

	// DefaultOpenAIModel is the default OpenAI generation model.
	DefaultOpenAIModel = "gpt-4o"

	// DefaultEmbedderModel outputs 3072 dimensions by default but supports
	// truncation to 768 via OutputDimensionality; the pgvector schema uses
	// 768 (see rag.VectorDimension).
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultStartingCredits is granted to a user on first contact.
	DefaultStartingCredits = 50
)

// Config stores application configuration.
// SECURITY: sensitive fields are masked in MarshalJSON. When adding new
// secret fields, update MarshalJSON as well.
type Config struct {
	// LLM provider configuration
	Provider    string  `mapstructure:"provider" json:"provider"` // "hybrid" (default), "gemini", "openai"
	GeminiModel string  `mapstructure:"gemini_model" json:"gemini_model"`
	OpenAIModel string  `mapstructure:"openai_model" json:"openai_model"`
	Temperature float32 `mapstructure:"temperature" json:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Embedding configuration
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Provider API keys (environment only, never from config file)
	GeminiAPIKey string `mapstructure:"-" json:"-"`
	OpenAIAPIKey string `mapstructure:"-" json:"-"`

	// Local request budgets per provider (requests per minute, 0 = unlimited)
	GeminiRPM int `mapstructure:"gemini_rpm" json:"gemini_rpm"`
	OpenAIRPM int `mapstructure:"openai_rpm" json:"openai_rpm"`

	// PostgreSQL connection
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname" json:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode" json:"postgres_sslmode"`

	// HTTP server
	ServerAddr  string   `mapstructure:"server_addr" json:"server_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Auth and content protection
	JWTSecret  string `mapstructure:"jwt_secret" json:"jwt_secret"`
	ContentKey string `mapstructure:"content_key" json:"content_key"` // base64, 32 bytes decoded

	// Credits
	StartingCredits int `mapstructure:"starting_credits" json:"starting_credits"`
}

// Load reads configuration from defaults, the config file, and environment.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("LEXORA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if dir, err := configDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Provider API keys come straight from the conventional variables so the
	// same environment works for the SDK CLIs and for lexora.
	cfg.GeminiAPIKey = firstEnv("GEMINI_API_KEY", "GOOGLE_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderHybrid)
	v.SetDefault("gemini_model", DefaultGeminiModel)
	v.SetDefault("openai_model", DefaultOpenAIModel)
	v.SetDefault("temperature", 0.3)
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("gemini_rpm", 60)
	v.SetDefault("openai_rpm", 60)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "lexora")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_dbname", "lexora")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("server_addr", ":8080")
	v.SetDefault("cors_origins", []string{"http://localhost:5173"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 0)

	v.SetDefault("starting_credits", DefaultStartingCredits)
}

// configDir returns the lexora config directory, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".lexora")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// MarshalJSON masks sensitive fields so the config can be logged safely.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(*c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "****"
	}
	if masked.JWTSecret != "" {
		masked.JWTSecret = "****"
	}
	if masked.ContentKey != "" {
		masked.ContentKey = "****"
	}
	return json.Marshal(masked)
}
