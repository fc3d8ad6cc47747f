package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/lexora-ai/lexora/internal/agent/compliance"
	"github.com/lexora-ai/lexora/internal/agent/drafting"
	"github.com/lexora-ai/lexora/internal/credits"
	"github.com/lexora-ai/lexora/internal/llm"
	"github.com/lexora-ai/lexora/internal/usage"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
// Buffer-first: headers are only sent after successful encoding, so an
// encoding failure can still return a proper 500.
func writeJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		slog.Debug("failed to write response body", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeDomainError maps sentinel errors from the domain packages to HTTP
// statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, compliance.ErrEmptyInput), errors.Is(err, drafting.ErrEmptyRequirements):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, credits.ErrInsufficientCredits):
		writeError(w, http.StatusPaymentRequired, "credits_exhausted", "credit balance exhausted")
	case errors.Is(err, usage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, llm.ErrAllProvidersFailed),
		errors.Is(err, llm.ErrNoProviders),
		errors.Is(err, llm.ErrEmptyResponse),
		errors.Is(err, llm.ErrNoJSON),
		errors.Is(err, drafting.ErrDraftFailed):
		writeError(w, http.StatusBadGateway, "llm_unavailable", "language model request failed")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
