package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/lexora-ai/lexora/internal/usage"
)

// usageHandler serves the saved-work and credit-balance endpoints.
type usageHandler struct {
	usage   usageStore
	credits creditStore
	logger  *slog.Logger
}

type usageRecordRequest struct {
	TaskType string            `json:"task_type"`
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// record saves a task result the client produced, so work done in the
// editor survives alongside server-generated results.
func (h *usageHandler) record(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req usageRecordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TaskType) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "task_type must not be empty")
		return
	}

	id, err := h.usage.Record(r.Context(), userID, req.TaskType, req.Title, req.Content, req.Metadata)
	if err != nil {
		h.logger.Error("failed to record usage", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "id": id})
}

// getHistory lists the user's recent task results, metadata only.
func (h *usageHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entries, err := h.usage.History(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load usage history", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []usage.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// getDetail returns a single saved result including its content.
func (h *usageHandler) getDetail(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entry, err := h.usage.Detail(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// getCredits reports the user's remaining credit balance.
func (h *usageHandler) getCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	balance, err := h.credits.Balance(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load credit balance", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"balance": balance})
}
