// Package compliance runs the multi-stage contract compliance pipeline:
// ingestion, jurisdiction resolution, clause extraction, statute retrieval,
// per-clause reasoning, remediation and risk scoring.
//
// The pipeline degrades rather than aborts: retrieval failures produce an
// empty statute set, unparseable model output falls back to deterministic
// extraction, and a failed clause analysis becomes a high-risk error finding.
// Only empty input and context cancellation stop a run.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lexora-ai/lexora/internal/agent"
	"github.com/lexora-ai/lexora/internal/llm"
	"github.com/lexora-ai/lexora/internal/rag"
)

// ErrEmptyInput indicates the submitted document contained no text.
var ErrEmptyInput = errors.New("empty document text")

// DefaultCountry is assumed when neither metadata nor the model can resolve
// a jurisdiction.
const DefaultCountry = "India"

const statuteTopK = 5

// Retriever is the corpus search the pipeline depends on.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...rag.SearchOption) ([]rag.Result, error)
}

// Pipeline orchestrates a compliance check. Safe for concurrent use.
type Pipeline struct {
	client    llm.Client
	retriever Retriever
	logger    *slog.Logger
}

// New creates a compliance pipeline. A nil logger falls back to slog.Default.
func New(client llm.Client, retriever Retriever, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		client:    client,
		retriever: retriever,
		logger:    logger.With("component", "compliance"),
	}
}

// Run executes the full pipeline over one document.
func (p *Pipeline) Run(ctx context.Context, rawText string, metadata map[string]string) (*agent.State, error) {
	state := agent.NewState(rawText, metadata)
	state.Audit("Orchestrator", "Start", "compliance check initiated")

	if err := p.ingest(state); err != nil {
		return nil, err
	}
	p.resolveJurisdiction(ctx, state)
	p.extractClauses(ctx, state)
	p.retrieveStatutes(ctx, state)
	if err := p.reason(ctx, state); err != nil {
		return nil, err
	}
	p.remediate(state)
	p.scoreRisk(state)

	state.Audit("Orchestrator", "End", "compliance check completed")
	return state, nil
}

func (p *Pipeline) ingest(state *agent.State) error {
	state.RawText = strings.TrimSpace(state.RawText)
	if state.RawText == "" {
		return ErrEmptyInput
	}
	state.Audit("Ingestion", "Process", fmt.Sprintf("processed input of length %d", len(state.RawText)))
	return nil
}

// resolveJurisdiction prefers user-provided metadata, then asks the model,
// then falls back to DefaultCountry.
func (p *Pipeline) resolveJurisdiction(ctx context.Context, state *agent.State) {
	if j := strings.TrimSpace(state.Metadata["jurisdiction"]); j != "" {
		state.Jurisdiction = agent.Jurisdiction{Country: j, Source: "metadata"}
		state.Audit("JurisdictionResolver", "Check", "used jurisdiction from metadata: "+j)
		return
	}

	prompt := fmt.Sprintf(`Analyze the following contract text and identify the governing law and jurisdiction.
Return ONLY a JSON object with keys "country" and "region" (region may be empty).

Text:
%s`, truncate(state.RawText, 2000))

	resp, err := p.client.Generate(ctx, llm.Request{Prompt: prompt, Temperature: 0.1, MaxTokens: 200})
	if err == nil {
		var parsed struct {
			Country string `json:"country"`
			Region  string `json:"region"`
		}
		if jsonErr := llm.DecodeJSON(resp, &parsed); jsonErr == nil && parsed.Country != "" {
			state.Jurisdiction = agent.Jurisdiction{Country: parsed.Country, Region: parsed.Region, Source: "inferred"}
			state.Audit("JurisdictionResolver", "Inference", "model resolved jurisdiction: "+parsed.Country)
			return
		}
		err = fmt.Errorf("unparseable jurisdiction response")
	}

	p.logger.Warn("jurisdiction detection failed, using default", "error", err)
	state.Jurisdiction = agent.Jurisdiction{Country: DefaultCountry, Source: "default"}
	state.Audit("JurisdictionResolver", "Fallback", "defaulted to "+DefaultCountry)
}

// extractClauses asks the model for a clause list and falls back to the
// deterministic heading splitter when the output cannot be parsed.
func (p *Pipeline) extractClauses(ctx context.Context, state *agent.State) {
	prompt := fmt.Sprintf(`Extract the key clauses from the contract text below.
Return ONLY a JSON array of objects with keys "title", "text" and "type".

Text:
%s`, truncate(state.RawText, 4000))

	resp, err := p.client.Generate(ctx, llm.Request{Prompt: prompt, Temperature: 0.1, MaxTokens: 2000})
	if err == nil {
		var parsed []struct {
			Title string `json:"title"`
			Text  string `json:"text"`
			Type  string `json:"type"`
		}
		if jsonErr := llm.DecodeJSON(resp, &parsed); jsonErr == nil && len(parsed) > 0 {
			clauses := make([]agent.Clause, 0, len(parsed))
			for i, c := range parsed {
				if strings.TrimSpace(c.Text) == "" {
					continue
				}
				clauses = append(clauses, agent.Clause{
					ID:    fmt.Sprintf("%d", i+1),
					Title: c.Title,
					Text:  c.Text,
					Type:  c.Type,
				})
			}
			if len(clauses) > 0 {
				state.Clauses = clauses
				state.Audit("ClauseExtractor", "Extract", fmt.Sprintf("model extracted %d clauses", len(clauses)))
				return
			}
		}
		err = fmt.Errorf("unparseable clause list")
	}

	p.logger.Warn("clause extraction via model failed, splitting by headings", "error", err)
	state.Clauses = splitClauses(state.RawText)
	state.Audit("ClauseExtractor", "Fallback", fmt.Sprintf("heading splitter produced %d clauses", len(state.Clauses)))
}

// retrieveStatutes searches the statutes corpus filtered by the resolved
// jurisdiction. Failures degrade to an empty statute set.
func (p *Pipeline) retrieveStatutes(ctx context.Context, state *agent.State) {
	contractType := state.Metadata["contract_type"]
	if contractType == "" {
		contractType = "general contracts"
	}
	query := fmt.Sprintf("Contract laws in %s regarding %s", state.Jurisdiction.Country, contractType)

	results, err := p.retriever.Search(ctx, query,
		rag.WithCorpus(rag.CorpusStatutes),
		rag.WithFilter("jurisdiction", state.Jurisdiction.Country),
		rag.WithTopK(statuteTopK))
	if err != nil {
		p.logger.Warn("statute retrieval failed, proceeding without statutes", "error", err)
		state.Statutes = nil
		state.Audit("StatuteRetrieval", "Error", err.Error())
		return
	}

	for _, r := range results {
		state.Statutes = append(state.Statutes, agent.Statute{
			Source:  metadataOr(r.Document.Metadata, "source", "Unknown"),
			Section: metadataOr(r.Document.Metadata, "section", "N/A"),
			Text:    r.Document.Content,
		})
	}
	state.Audit("StatuteRetrieval", "Search", fmt.Sprintf("retrieved %d statutes", len(state.Statutes)))
}

// reason analyzes each clause against the retrieved statutes. A clause whose
// analysis fails is recorded as a high-risk error finding; only context
// cancellation aborts the loop.
func (p *Pipeline) reason(ctx context.Context, state *agent.State) error {
	var statutesBlock strings.Builder
	for _, s := range state.Statutes {
		fmt.Fprintf(&statutesBlock, "- %s (Section %s): %s\n", s.Source, s.Section, s.Text)
	}
	if statutesBlock.Len() == 0 {
		statutesBlock.WriteString("(no statutes retrieved; apply common legal standards)\n")
	}

	for _, clause := range state.Clauses {
		if err := ctx.Err(); err != nil {
			return err
		}

		prompt := fmt.Sprintf(`Analyze the following legal clause for compliance against the provided statutes and common legal standards in %s.

Clause Title: %s
Clause Text: %s

Relevant Statutes:
%s
Determine:
1. Status: "compliant", "violation", or "warning".
2. Risk Level: "low", "medium", or "high".
3. Reason: Why it is or isn't compliant.
4. Suggested Fix: How to make it compliant if it's not.

Return ONLY a JSON object:
{"status": "...", "risk_level": "...", "reason": "...", "suggested_fix": "..."}`,
			state.Jurisdiction.Country, clause.Title, clause.Text, statutesBlock.String())

		resp, err := p.client.Generate(ctx, llm.Request{Prompt: prompt, Temperature: 0.2, MaxTokens: 1000})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("clause reasoning failed", "clause_id", clause.ID, "error", err)
			state.Findings = append(state.Findings, agent.Finding{
				ClauseID:     clause.ID,
				ClauseTitle:  clause.Title,
				Status:       agent.StatusError,
				RiskLevel:    agent.RiskHigh,
				Reason:       "analysis error: " + err.Error(),
				SuggestedFix: "Review this clause manually.",
			})
			continue
		}

		var parsed struct {
			Status       string `json:"status"`
			RiskLevel    string `json:"risk_level"`
			Reason       string `json:"reason"`
			SuggestedFix string `json:"suggested_fix"`
		}
		if jsonErr := llm.DecodeJSON(resp, &parsed); jsonErr != nil || parsed.Status == "" {
			state.Findings = append(state.Findings, agent.Finding{
				ClauseID:     clause.ID,
				ClauseTitle:  clause.Title,
				Status:       agent.StatusWarning,
				RiskLevel:    agent.RiskMedium,
				Reason:       "the model's analysis for this clause could not be parsed",
				SuggestedFix: "Review manually.",
			})
			continue
		}

		state.Findings = append(state.Findings, agent.Finding{
			ClauseID:     clause.ID,
			ClauseTitle:  clause.Title,
			Status:       normalizeStatus(parsed.Status),
			RiskLevel:    normalizeRisk(parsed.RiskLevel),
			Reason:       parsed.Reason,
			SuggestedFix: parsed.SuggestedFix,
		})
	}

	state.Audit("ComplianceReasoning", "Analyze", fmt.Sprintf("analyzed %d clauses", len(state.Clauses)))
	return nil
}

// remediate fills in a suggested fix for any non-compliant finding the model
// left without one.
func (p *Pipeline) remediate(state *agent.State) {
	filled := 0
	for i := range state.Findings {
		f := &state.Findings[i]
		if f.Status == agent.StatusCompliant || strings.TrimSpace(f.SuggestedFix) != "" {
			continue
		}
		f.SuggestedFix = "Rewrite the clause to address: " + f.Reason
		filled++
	}
	state.Audit("Remediation", "Suggest", fmt.Sprintf("filled %d missing fixes", filled))
}

// scoreRisk is deterministic: score = min(100, high*10 + medium*5).
func (p *Pipeline) scoreRisk(state *agent.State) {
	var high, medium int
	for _, f := range state.Findings {
		switch f.RiskLevel {
		case agent.RiskHigh:
			high++
		case agent.RiskMedium:
			medium++
		}
	}

	score := min(100, high*10+medium*5)
	level := agent.LevelLow
	switch {
	case score > 50:
		level = agent.LevelCritical
	case score > 20:
		level = agent.LevelModerate
	}

	state.Risk = agent.RiskSummary{
		OverallScore: score,
		RiskLevel:    level,
		HighCount:    high,
		MediumCount:  medium,
	}
	state.Audit("RiskScoring", "Calculate", fmt.Sprintf("risk score: %d (%s)", score, level))
}

func normalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case agent.StatusCompliant:
		return agent.StatusCompliant
	case agent.StatusViolation:
		return agent.StatusViolation
	case agent.StatusError:
		return agent.StatusError
	default:
		return agent.StatusWarning
	}
}

func normalizeRisk(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case agent.RiskHigh:
		return agent.RiskHigh
	case agent.RiskLow:
		return agent.RiskLow
	default:
		return agent.RiskMedium
	}
}

func metadataOr(m map[string]string, key, fallback string) string {
	if v := m[key]; v != "" {
		return v
	}
	return fallback
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
