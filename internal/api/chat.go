package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/lexora-ai/lexora/internal/history"
	"github.com/lexora-ai/lexora/internal/llm"
	"github.com/lexora-ai/lexora/internal/security"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// chatFallbackReply is returned when the model fails or produces something
// unparseable. Chat degrades to an apology rather than an error status so
// the conversation UI never breaks.
const chatFallbackReply = "I encountered an error processing your request. How else can I help?"

// chatRejectedReply answers messages the prompt screen refuses to forward.
const chatRejectedReply = "I can't act on instructions that try to change how I operate. How else can I help?"

// chatHandler serves the assistant chat endpoints. Chat is the routing
// surface of the product: it classifies intent and points the user at the
// right tool, so it does not charge credits.
type chatHandler struct {
	llm       llm.Client
	messages  messageStore
	validator *security.PromptValidator
	logger    *slog.Logger
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply           string `json:"reply"`
	Intent          string `json:"intent"`
	SuggestedAction string `json:"suggested_action,omitempty"`
}

const chatSystem = `You are Lexora, a legal AI assistant. Classify the user's message and respond helpfully.

Available tools and their routes:
- Contract Drafting: /contract-drafting
- Compliance Check: /compliance-check
- Legal Research: /legal-research
- Case Summary: /case-summary
- Loophole Detection: /loophole-detection
- Clause Classification: /clause-classification

Return ONLY a JSON object:
{
  "intent": "<one of: drafting, compliance, research, summary, loophole, classification, general>",
  "reply": "<a short helpful reply to the user>",
  "suggested_action": "<the route of the most relevant tool, or null if none applies>"
}`

// send classifies a chat message and returns the assistant's reply.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "message must not be empty")
		return
	}

	var resp chatResponse
	if h.validator != nil && !h.validator.IsSafe(req.Message) {
		h.logger.Warn("chat message rejected by prompt screen", "user_id", userID)
		resp = chatResponse{Reply: chatRejectedReply, Intent: "rejected"}
	} else {
		resp = h.classify(r, req.Message)
	}

	// Persistence is best-effort: a storage hiccup must not lose the reply.
	if _, err := h.messages.Append(r.Context(), userID, history.RoleUser, req.Message); err != nil {
		h.logger.Warn("failed to persist user message", "user_id", userID, "error", err)
	}
	if _, err := h.messages.Append(r.Context(), userID, history.RoleAssistant, resp.Reply); err != nil {
		h.logger.Warn("failed to persist assistant message", "user_id", userID, "error", err)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *chatHandler) classify(r *http.Request, message string) chatResponse {
	raw, err := h.llm.Generate(r.Context(), llm.Request{
		System:      chatSystem,
		Prompt:      fmt.Sprintf("User message: %s", message),
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		h.logger.Error("chat generation failed", "error", err)
		return chatResponse{Reply: chatFallbackReply, Intent: "error"}
	}

	var resp chatResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil || resp.Reply == "" {
		h.logger.Warn("unparseable chat response", "error", err)
		return chatResponse{Reply: chatFallbackReply, Intent: "error"}
	}
	if resp.SuggestedAction == "null" {
		resp.SuggestedAction = ""
	}
	return resp
}

// getHistory returns the user's recent messages in chronological order.
func (h *chatHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	messages, err := h.messages.Recent(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("failed to load chat history", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}
	if messages == nil {
		messages = []history.Message{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// clearHistory deletes the user's entire conversation.
func (h *chatHandler) clearHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.messages.Clear(r.Context(), userID); err != nil {
		h.logger.Error("failed to clear chat history", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
