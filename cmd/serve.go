package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexora-ai/lexora/internal/agent/compliance"
	"github.com/lexora-ai/lexora/internal/agent/drafting"
	"github.com/lexora-ai/lexora/internal/api"
	"github.com/lexora-ai/lexora/internal/cipher"
	"github.com/lexora-ai/lexora/internal/config"
	"github.com/lexora-ai/lexora/internal/credits"
	"github.com/lexora-ai/lexora/internal/database"
	"github.com/lexora-ai/lexora/internal/history"
	"github.com/lexora-ai/lexora/internal/llm"
	"github.com/lexora-ai/lexora/internal/log"
	"github.com/lexora-ai/lexora/internal/rag"
	"github.com/lexora-ai/lexora/internal/report"
	"github.com/lexora-ai/lexora/internal/usage"
)

// Server timeout configuration. Write timeout is generous because LLM-backed
// handlers routinely take tens of seconds.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(*cobra.Command, []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if cfg.GeminiAPIKey == "" {
		// Vector search depends on the Gemini embedder regardless of which
		// provider generates text.
		return errors.New("GEMINI_API_KEY is required: embeddings have no OpenAI fallback")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := log.New(log.Config{Level: slog.LevelInfo, JSON: true})
	logger.Info("starting lexora API server", "version", AppVersion, "provider", cfg.Provider)

	pool, err := database.NewPool(ctx, cfg.PostgresURL())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	client, gemini, err := buildLLMClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var box *cipher.Box
	if cfg.ContentKey != "" {
		if box, err = cipher.New(cfg.ContentKey); err != nil {
			return fmt.Errorf("loading content key: %w", err)
		}
	} else {
		logger.Warn("no content key configured, chat and usage content stored as plaintext")
	}

	corpus := rag.NewStore(rag.NewPGQuerier(pool),
		rag.NewGeminiEmbedder(gemini.GenAI(), cfg.EmbedderModel), logger)

	server, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Compliance:  compliance.New(client, corpus, logger),
		Drafting:    drafting.New(client, corpus, logger),
		LLM:         client,
		Corpus:      corpus,
		Reports:     report.NewGenerator(client, logger),
		Messages:    history.NewStore(pool, box, logger),
		Usage:       usage.NewStore(pool, box, logger),
		Credits:     credits.NewStore(pool, cfg.StartingCredits, logger),
		Pool:        pool,
		JWTSecret:   []byte(cfg.JWTSecret),
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
		Version:     AppVersion,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ServerAddr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// buildLLMClient assembles the configured provider stack wrapped in retries.
// The Gemini client is returned separately because the embedder shares it.
func buildLLMClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (llm.Client, *llm.Gemini, error) {
	gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating gemini client: %w", err)
	}

	var clients []llm.Client
	var rpms []int

	switch cfg.Provider {
	case config.ProviderGemini:
		clients = append(clients, gemini)
		rpms = append(rpms, cfg.GeminiRPM)
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, errors.New("provider openai selected but OPENAI_API_KEY is not set")
		}
		clients = append(clients, llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger))
		rpms = append(rpms, cfg.OpenAIRPM)
	case config.ProviderHybrid:
		clients = append(clients, gemini)
		rpms = append(rpms, cfg.GeminiRPM)
		if cfg.OpenAIAPIKey != "" {
			clients = append(clients, llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger))
			rpms = append(rpms, cfg.OpenAIRPM)
		}
	}

	var client llm.Client
	if len(clients) == 1 {
		client = clients[0]
	} else {
		if client, err = llm.NewHybrid(clients, rpms, logger); err != nil {
			return nil, nil, fmt.Errorf("creating hybrid client: %w", err)
		}
	}

	return llm.WithRetry(client, llm.DefaultRetryConfig(), logger), gemini, nil
}
