package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RetryConfig configures backoff behavior for transient provider failures.
type RetryConfig struct {
	MaxRetries      int           // attempts after the first call
	InitialInterval time.Duration // first backoff delay
	MaxInterval     time.Duration // backoff ceiling
}

// DefaultRetryConfig returns sensible defaults for hosted LLM APIs.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// retryablePatterns groups transient error substrings by category, matched
// case-insensitively against err.Error().
//
// NOTE: string matching is used because the provider SDKs do not expose
// typed errors for transient failures. Re-evaluate if they ever do.
var retryablePatterns = [][]string{
	{"rate limit", "quota", "resource exhausted", "too many requests", "429"},
	{"500", "502", "503", "504", "unavailable", "overloaded"},
	{"connection reset", "timeout", "temporary"},
}

// retryableError reports whether err is transient and worth retrying.
func retryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, pattern := range group {
			if strings.Contains(msg, pattern) {
				return true
			}
		}
	}
	return false
}

// rateLimitError reports whether err looks like a provider-side rate limit.
// The hybrid client uses this to decide when to switch providers.
func rateLimitError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range retryablePatterns[0] {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryClient wraps a Client with exponential backoff on transient errors.
type retryClient struct {
	inner  Client
	cfg    RetryConfig
	logger *slog.Logger
}

// WithRetry decorates client with exponential backoff retry.
func WithRetry(client Client, cfg RetryConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &retryClient{inner: client, cfg: cfg, logger: logger}
}

func (r *retryClient) Name() string { return r.inner.Name() }

func (r *retryClient) Generate(ctx context.Context, req Request) (string, error) {
	var lastErr error
	delay := r.cfg.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		text, err := r.inner.Generate(ctx, req)
		if err == nil {
			if attempt > 0 {
				r.logger.Debug("generation succeeded after retry",
					"provider", r.inner.Name(),
					"attempts", attempt+1,
					"elapsed", time.Since(start),
				)
			}
			return text, nil
		}

		lastErr = err

		if !retryableError(err) {
			return "", err
		}
		if attempt == r.cfg.MaxRetries {
			break
		}

		r.logger.Debug("retrying after transient error",
			"provider", r.inner.Name(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, r.cfg.MaxInterval)
		}
	}

	return "", fmt.Errorf("generate after %d retries (elapsed %v): %w",
		r.cfg.MaxRetries, time.Since(start), lastErr)
}
