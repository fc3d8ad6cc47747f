package config

import (
	"encoding/base64"
	"fmt"
)

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]struct{}{
	"disable":     {},
	"allow":       {},
	"prefer":      {},
	"require":     {},
	"verify-ca":   {},
	"verify-full": {},
}

// minJWTSecretLen is the minimum HMAC secret length in bytes.
const minJWTSecretLen = 32

// contentKeyLen is the decoded length of the AES-256 content key.
const contentKeyLen = 32

// Validate checks generation and storage settings. It is the baseline check
// shared by every command.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderHybrid:
	default:
		return fmt.Errorf("%w: %q (expected gemini, openai, or hybrid)", ErrInvalidProvider, c.Provider)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %v (expected 0.0-2.0)", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens < 1 || c.MaxTokens > 128_000 {
		return fmt.Errorf("%w: %d (expected 1-128000)", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.PostgresHost == "" {
		return ErrInvalidPostgresHost
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return ErrInvalidPostgresDBName
	}
	if _, ok := validSSLModes[c.PostgresSSLMode]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}

// ValidateServe checks everything the HTTP server needs on top of Validate:
// at least one provider key, the JWT secret, and the content encryption key.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.GeminiAPIKey == "" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY or OPENAI_API_KEY", ErrMissingAPIKey)
	}

	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if len(c.JWTSecret) < minJWTSecretLen {
		return fmt.Errorf("%w: need at least %d bytes, got %d", ErrInvalidJWTSecret, minJWTSecretLen, len(c.JWTSecret))
	}

	if c.ContentKey != "" {
		key, err := base64.StdEncoding.DecodeString(c.ContentKey)
		if err != nil {
			return fmt.Errorf("%w: not valid base64: %w", ErrInvalidContentKey, err)
		}
		if len(key) != contentKeyLen {
			return fmt.Errorf("%w: decoded length %d, want %d", ErrInvalidContentKey, len(key), contentKeyLen)
		}
	}

	return nil
}
