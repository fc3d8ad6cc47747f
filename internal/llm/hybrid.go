package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"
)

// provider pairs a client with its local request budget. The limiter is a
// fast pre-check: when a provider's budget is exhausted the hybrid client
// moves on instead of burning a doomed API call.
type provider struct {
	client  Client
	limiter *rate.Limiter
}

// Hybrid tries providers in order and fails over when one is rate limited
// or errors. With a single provider it degrades to a plain passthrough with
// a local budget.
type Hybrid struct {
	providers []provider
	logger    *slog.Logger
}

// NewHybrid creates a hybrid client trying clients in the given order.
// rpms carries the per-provider requests-per-minute budget, aligned by
// index with clients; 0 means unlimited.
func NewHybrid(clients []Client, rpms []int, logger *slog.Logger) (*Hybrid, error) {
	if len(clients) == 0 {
		return nil, ErrNoProviders
	}
	if logger == nil {
		logger = slog.Default()
	}

	providers := make([]provider, 0, len(clients))
	for i, c := range clients {
		var limiter *rate.Limiter
		if i < len(rpms) && rpms[i] > 0 {
			// Refill continuously at rpm/60 tokens per second with a full
			// minute of burst, matching the provider's published window.
			limiter = rate.NewLimiter(rate.Limit(float64(rpms[i])/60.0), rpms[i])
		}
		providers = append(providers, provider{client: c, limiter: limiter})
	}

	return &Hybrid{providers: providers, logger: logger}, nil
}

// Name implements Client.
func (*Hybrid) Name() string { return "hybrid" }

// Generate implements Client. Providers are tried in order; a provider is
// skipped when its local budget is exhausted and abandoned when the API
// reports a rate limit. Non-rate-limit errors also move to the next
// provider so a single flaky upstream does not fail the request.
func (h *Hybrid) Generate(ctx context.Context, req Request) (string, error) {
	var failures []string

	for _, p := range h.providers {
		if p.limiter != nil && !p.limiter.Allow() {
			h.logger.Warn("provider budget exhausted, switching", "provider", p.client.Name())
			failures = append(failures, p.client.Name()+": local budget exhausted")
			continue
		}

		text, err := p.client.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("generate: %w", ctx.Err())
		}

		if rateLimitError(err) {
			h.logger.Warn("provider rate limited, switching", "provider", p.client.Name())
			failures = append(failures, p.client.Name()+": rate limited")
		} else {
			h.logger.Error("provider failed", "provider", p.client.Name(), "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", p.client.Name(), err))
		}
	}

	return "", fmt.Errorf("%w: %s", ErrAllProvidersFailed, strings.Join(failures, "; "))
}
