package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// health is the liveness probe: 200 as long as the process serves requests.
func health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness reports whether the server can do useful work, including a
// database ping when a pool is configured.
func readiness(pool *pgxpool.Pool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
					"reason": "database unreachable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
}

// componentHealth reports which components are wired, mirroring the shape
// clients poll to decide whether AI features are available.
func componentHealth(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		agentsLoaded := cfg.Compliance != nil && cfg.Drafting != nil
		llmAvailable := cfg.LLM != nil

		status := "healthy"
		if !agentsLoaded || !llmAvailable {
			status = "degraded"
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":        status,
			"version":       cfg.Version,
			"agents_loaded": agentsLoaded,
			"llm_available": llmAvailable,
		})
	}
}
