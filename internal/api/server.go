package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lexora-ai/lexora/internal/agent"
	"github.com/lexora-ai/lexora/internal/agent/drafting"
	"github.com/lexora-ai/lexora/internal/history"
	"github.com/lexora-ai/lexora/internal/llm"
	"github.com/lexora-ai/lexora/internal/rag"
	"github.com/lexora-ai/lexora/internal/security"
	"github.com/lexora-ai/lexora/internal/usage"
)

// Consumer-side interfaces over the domain packages, so handler tests can
// substitute fakes without a database or live model.
type (
	compliancePipeline interface {
		Run(ctx context.Context, rawText string, metadata map[string]string) (*agent.State, error)
	}

	draftingPipeline interface {
		Run(ctx context.Context, req drafting.Request) (*agent.State, error)
	}

	corpusSearcher interface {
		Search(ctx context.Context, query string, opts ...rag.SearchOption) ([]rag.Result, error)
	}

	reportGenerator interface {
		Generate(ctx context.Context, taskType, content, jurisdiction string, metadata map[string]string) (string, error)
	}

	messageStore interface {
		Append(ctx context.Context, userID, role, content string) (history.Message, error)
		Recent(ctx context.Context, userID string, limit int) ([]history.Message, error)
		Clear(ctx context.Context, userID string) error
	}

	usageStore interface {
		Record(ctx context.Context, userID, taskType, title, content string, metadata map[string]string) (string, error)
		History(ctx context.Context, userID string) ([]usage.Entry, error)
		Detail(ctx context.Context, userID, id string) (usage.Entry, error)
	}

	creditStore interface {
		Balance(ctx context.Context, userID string) (int, error)
		Spend(ctx context.Context, userID string, n int) error
	}
)

// ServerConfig contains everything the API server depends on.
type ServerConfig struct {
	Logger *slog.Logger

	Compliance compliancePipeline // required
	Drafting   draftingPipeline   // required
	LLM        llm.Client         // required: chat, analysis, summarize, research synthesis
	Corpus     corpusSearcher     // required: research retrieval
	Reports    reportGenerator    // required
	Messages   messageStore       // required
	Usage      usageStore         // required
	Credits    creditStore        // required

	Pool *pgxpool.Pool // optional: nil disables DB check in /ready

	JWTSecret   []byte   // required: 32+ bytes, HS256 signing key
	CORSOrigins []string // allowed origins for CORS
	TrustProxy  bool     // trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst   int      // rate limiter burst per IP (0 = default 60)
	Version     string   // reported by /api/v1/health
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	switch {
	case cfg.Compliance == nil || cfg.Drafting == nil:
		return nil, errors.New("pipelines are required")
	case cfg.LLM == nil:
		return nil, errors.New("llm client is required")
	case cfg.Corpus == nil || cfg.Reports == nil:
		return nil, errors.New("corpus and report generator are required")
	case cfg.Messages == nil || cfg.Usage == nil || cfg.Credits == nil:
		return nil, errors.New("stores are required")
	case len(cfg.JWTSecret) < 32:
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	th := &taskHandler{
		compliance: cfg.Compliance,
		drafting:   cfg.Drafting,
		llm:        cfg.LLM,
		reports:    cfg.Reports,
		usage:      cfg.Usage,
		credits:    cfg.Credits,
		logger:     logger,
	}
	ch := &chatHandler{
		llm:       cfg.LLM,
		messages:  cfg.Messages,
		validator: security.NewPromptValidator(),
		logger:    logger,
	}
	rh := &researchHandler{
		llm:     cfg.LLM,
		corpus:  cfg.Corpus,
		credits: cfg.Credits,
		usage:   cfg.Usage,
		logger:  logger,
	}
	uh := &usageHandler{
		usage:   cfg.Usage,
		credits: cfg.Credits,
		logger:  logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", componentHealth(cfg))

	mux.HandleFunc("POST /api/v1/drafting/draft", th.draft)
	mux.HandleFunc("POST /api/v1/compliance/check", th.checkCompliance)
	mux.HandleFunc("POST /api/v1/analysis/clauses", th.analyzeClauses)
	mux.HandleFunc("POST /api/v1/summarize", th.summarizeCase)
	mux.HandleFunc("POST /api/v1/reports", th.generateReport)

	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("GET /api/v1/chat/history", ch.getHistory)
	mux.HandleFunc("DELETE /api/v1/chat/history", ch.clearHistory)

	mux.HandleFunc("POST /api/v1/research", rh.research)

	mux.HandleFunc("POST /api/v1/usage", uh.record)
	mux.HandleFunc("GET /api/v1/usage/history", uh.getHistory)
	mux.HandleFunc("GET /api/v1/usage/history/{id}", uh.getDetail)
	mux.HandleFunc("GET /api/v1/credits", uh.getCredits)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Health stays reachable without a token.
	skipAuth := map[string]struct{}{"/api/v1/health": {}}

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Auth → Routes
	// RequestID before Logging so request_id is available in log attributes.
	// CORS before RateLimit so preflight OPTIONS always gets CORS headers.
	var handler http.Handler = mux
	handler = authMiddleware(cfg.JWTSecret, skipAuth, logger)(handler)
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps liveness/readiness probes outside the stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
