package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

// testConfig returns a config that passes Validate.
func testConfig() *Config {
	return &Config{
		Provider:        ProviderHybrid,
		GeminiModel:     DefaultGeminiModel,
		OpenAIModel:     DefaultOpenAIModel,
		Temperature:     0.3,
		MaxTokens:       4096,
		EmbedderModel:   DefaultEmbedderModel,
		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresUser:    "lexora",
		PostgresDBName:  "lexora",
		PostgresSSLMode: "disable",
		ServerAddr:      ":8080",
	}
}

func TestValidate_OK(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
}

func TestValidate_NilConfig(t *testing.T) {
	var c *Config
	if err := c.Validate(); !errors.Is(err, ErrConfigNil) {
		t.Errorf("Validate(nil) = %v, want ErrConfigNil", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"unknown provider", func(c *Config) { c.Provider = "anthropic" }, ErrInvalidProvider},
		{"temperature too high", func(c *Config) { c.Temperature = 2.5 }, ErrInvalidTemperature},
		{"temperature negative", func(c *Config) { c.Temperature = -0.1 }, ErrInvalidTemperature},
		{"zero max tokens", func(c *Config) { c.MaxTokens = 0 }, ErrInvalidMaxTokens},
		{"empty host", func(c *Config) { c.PostgresHost = "" }, ErrInvalidPostgresHost},
		{"port out of range", func(c *Config) { c.PostgresPort = 70000 }, ErrInvalidPostgresPort},
		{"empty dbname", func(c *Config) { c.PostgresDBName = "" }, ErrInvalidPostgresDBName},
		{"bad sslmode", func(c *Config) { c.PostgresSSLMode = "maybe" }, ErrInvalidPostgresSSLMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig()
			tt.mutate(c)
			if err := c.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateServe(t *testing.T) {
	c := testConfig()
	c.GeminiAPIKey = "test-key"
	c.JWTSecret = strings.Repeat("s", 32)

	if err := c.ValidateServe(); err != nil {
		t.Fatalf("ValidateServe() error: %v", err)
	}
}

func TestValidateServe_MissingAPIKey(t *testing.T) {
	c := testConfig()
	c.JWTSecret = strings.Repeat("s", 32)

	if err := c.ValidateServe(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("ValidateServe() = %v, want ErrMissingAPIKey", err)
	}
}

func TestValidateServe_ShortJWTSecret(t *testing.T) {
	c := testConfig()
	c.GeminiAPIKey = "test-key"
	c.JWTSecret = "short"

	if err := c.ValidateServe(); !errors.Is(err, ErrInvalidJWTSecret) {
		t.Errorf("ValidateServe() = %v, want ErrInvalidJWTSecret", err)
	}
}

func TestValidateServe_ContentKey(t *testing.T) {
	c := testConfig()
	c.GeminiAPIKey = "test-key"
	c.JWTSecret = strings.Repeat("s", 32)

	c.ContentKey = "not base64!!"
	if err := c.ValidateServe(); !errors.Is(err, ErrInvalidContentKey) {
		t.Errorf("ValidateServe(bad base64) = %v, want ErrInvalidContentKey", err)
	}

	c.ContentKey = base64.StdEncoding.EncodeToString([]byte("too short"))
	if err := c.ValidateServe(); !errors.Is(err, ErrInvalidContentKey) {
		t.Errorf("ValidateServe(short key) = %v, want ErrInvalidContentKey", err)
	}

	c.ContentKey = base64.StdEncoding.EncodeToString(make([]byte, 32))
	if err := c.ValidateServe(); err != nil {
		t.Errorf("ValidateServe(valid key) error: %v", err)
	}
}

func TestMarshalJSON_MasksSecrets(t *testing.T) {
	c := testConfig()
	c.PostgresPassword = "hunter2"
	c.JWTSecret = strings.Repeat("s", 32)
	c.ContentKey = base64.StdEncoding.EncodeToString(make([]byte, 32))

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	s := string(data)
	for _, secret := range []string{"hunter2", strings.Repeat("s", 32), c.ContentKey} {
		if strings.Contains(s, secret) {
			t.Errorf("marshaled config leaks secret %q", secret)
		}
	}
	if !strings.Contains(s, "****") {
		t.Errorf("expected masked fields in %s", s)
	}
}
