// Package llm provides text generation clients for the providers the
// backend orchestrates (Gemini and OpenAI), plus a hybrid client that fails
// over between them when one is rate limited or unavailable.
package llm

import (
	"context"
	"errors"
)

// Sentinel errors for LLM operations. Handlers map these to HTTP statuses
// with errors.Is.
var (
	// ErrNoProviders indicates no provider client could be constructed.
	ErrNoProviders = errors.New("no LLM providers configured")

	// ErrAllProvidersFailed indicates every configured provider failed or
	// was rate limited for a single request.
	ErrAllProvidersFailed = errors.New("all LLM providers failed")

	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = errors.New("empty model response")
)

// Request is a single generation request. System may be empty.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

// Client generates text from a prompt. Implementations are safe for
// concurrent use.
type Client interface {
	// Generate returns the model's text response for the request.
	Generate(ctx context.Context, req Request) (string, error)

	// Name identifies the provider for logging and error aggregation.
	Name() string
}
