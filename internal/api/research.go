package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lexora-ai/lexora/internal/llm"
	"github.com/lexora-ai/lexora/internal/rag"
	"github.com/lexora-ai/lexora/internal/usage"
)

const citationSnippetChars = 200

// researchHandler answers legal questions grounded on the indexed corpora.
type researchHandler struct {
	llm     llm.Client
	corpus  corpusSearcher
	credits creditStore
	usage   usageStore
	logger  *slog.Logger
}

type researchRequest struct {
	Query        string `json:"query"`
	Jurisdiction string `json:"jurisdiction"`
}

type citation struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	Text   string `json:"text"`
}

type researchResponse struct {
	Answer    string     `json:"answer"`
	Citations []citation `json:"citations"`
}

// research retrieves relevant statutes, regulations and case law, then
// synthesizes an answer citing only the retrieved material.
func (h *researchHandler) research(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req researchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "query must not be empty")
		return
	}
	if !spendCredit(w, r, h.credits, userID) {
		return
	}

	results := h.retrieve(r, req)
	citations := buildCitations(results)

	var contextText strings.Builder
	for i, res := range results {
		fmt.Fprintf(&contextText, "[%d] (%s) %s\n\n", i+1, res.Document.Corpus, res.Document.Content)
	}

	system := "You are a legal research assistant. Answer strictly from the provided context. " +
		"Cite sources by their [n] markers. If the context does not contain the answer, say so plainly."
	prompt := fmt.Sprintf("Context:\n%s\nQuestion: %s", contextText.String(), req.Query)
	if len(results) == 0 {
		prompt = fmt.Sprintf("No corpus material was retrieved for this question. "+
			"Answer from general legal knowledge and say that no indexed sources were found.\n\nQuestion: %s", req.Query)
	}

	answer, err := h.llm.Generate(r.Context(), llm.Request{
		System:      system,
		Prompt:      prompt,
		Temperature: 0.2,
		MaxTokens:   2000,
	})
	if err != nil {
		h.logger.Error("research synthesis failed", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}

	h.recordUsage(r, userID, req.Query, answer, len(citations))

	writeJSON(w, http.StatusOK, researchResponse{
		Answer:    strings.TrimSpace(answer),
		Citations: citations,
	})
}

// retrieve queries each corpus with its own depth. Retrieval failures
// degrade to fewer sources instead of failing the request.
func (h *researchHandler) retrieve(r *http.Request, req researchRequest) []rag.Result {
	searches := []struct {
		corpus string
		topK   int
	}{
		{rag.CorpusStatutes, 3},
		{rag.CorpusRegulations, 2},
		{rag.CorpusCases, 2},
	}

	var results []rag.Result
	for _, s := range searches {
		opts := []rag.SearchOption{rag.WithCorpus(s.corpus), rag.WithTopK(s.topK)}
		if req.Jurisdiction != "" {
			opts = append(opts, rag.WithFilter("jurisdiction", req.Jurisdiction))
		}
		found, err := h.corpus.Search(r.Context(), req.Query, opts...)
		if err != nil {
			h.logger.Warn("corpus search failed", "corpus", s.corpus, "error", err)
			continue
		}
		results = append(results, found...)
	}
	return results
}

func buildCitations(results []rag.Result) []citation {
	citations := make([]citation, 0, len(results))
	for _, res := range results {
		title := res.Document.Metadata["title"]
		if title == "" {
			title = res.Document.ID
		}
		source := res.Document.Metadata["source"]
		if source == "" {
			source = res.Document.Corpus
		}
		text := res.Document.Content
		if len(text) > citationSnippetChars {
			text = text[:citationSnippetChars] + "..."
		}
		citations = append(citations, citation{Title: title, Source: source, Text: text})
	}
	return citations
}

func (h *researchHandler) recordUsage(r *http.Request, userID, query, answer string, citationCount int) {
	title := query
	if len(title) > 80 {
		title = title[:80]
	}
	if _, err := h.usage.Record(r.Context(), userID, usage.TaskResearch, title, answer,
		map[string]string{"citations": fmt.Sprintf("%d", citationCount)}); err != nil {
		h.logger.Warn("failed to record usage", "user_id", userID, "error", err)
	}
}
