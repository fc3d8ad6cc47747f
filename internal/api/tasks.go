package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lexora-ai/lexora/internal/agent"
	"github.com/lexora-ai/lexora/internal/agent/drafting"
	"github.com/lexora-ai/lexora/internal/llm"
	"github.com/lexora-ai/lexora/internal/report"
	"github.com/lexora-ai/lexora/internal/usage"
)

const (
	maxBodyBytes = 1 << 20

	// minContractChars guards the compliance pipeline against fragments that
	// cannot meaningfully be analyzed.
	minContractChars = 50

	// creditCost is charged per LLM-backed task request.
	creditCost = 1
)

// taskHandler serves the document task endpoints: drafting, compliance,
// clause analysis, case summarization and report generation.
type taskHandler struct {
	compliance compliancePipeline
	drafting   draftingPipeline
	llm        llm.Client
	reports    reportGenerator
	usage      usageStore
	credits    creditStore
	logger     *slog.Logger
}

// decodeBody decodes a JSON request body into dst, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

// requireUser extracts the authenticated user, writing a 401 if absent.
// The auth middleware guarantees presence on protected routes; this guards
// against misrouted handlers.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := userIDFromContext(r.Context())
	if !ok || userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "user identity required")
		return "", false
	}
	return userID, true
}

// spendCredit charges one credit, writing a 402 when the balance is
// exhausted.
func spendCredit(w http.ResponseWriter, r *http.Request, store creditStore, userID string) bool {
	if err := store.Spend(r.Context(), userID, creditCost); err != nil {
		writeDomainError(w, err)
		return false
	}
	return true
}

// recordUsage stores a task result best-effort; a failure is logged but
// never fails the request that produced the result.
func (h *taskHandler) recordUsage(r *http.Request, userID, taskType, title, content string, metadata map[string]string) {
	if _, err := h.usage.Record(r.Context(), userID, taskType, title, content, metadata); err != nil {
		h.logger.Warn("failed to record usage", "user_id", userID, "task_type", taskType, "error", err)
	}
}

type complianceCheckRequest struct {
	ContractText string `json:"contract_text"`
	Jurisdiction string `json:"jurisdiction"`
	ContractType string `json:"contract_type"`
}

type complianceIssue struct {
	Clause       string `json:"clause"`
	Heading      string `json:"heading"`
	RiskLevel    string `json:"risk_level"`
	IssueSummary string `json:"issue_summary"`
	Fix          string `json:"fix"`
}

type complianceSummary struct {
	TotalClauses int    `json:"total_clauses"`
	HighRisk     int    `json:"high_risk"`
	MediumRisk   int    `json:"medium_risk"`
	LowRisk      int    `json:"low_risk"`
	RiskLevel    string `json:"risk_level"`
	OverallScore int    `json:"overall_score"`
}

type actionItem struct {
	Title     string   `json:"title"`
	RiskLevel string   `json:"risk_level"`
	Actions   []string `json:"actions"`
}

type complianceCheckResponse struct {
	Issues         []complianceIssue `json:"issues"`
	Summary        complianceSummary `json:"summary"`
	ActionItems    []actionItem      `json:"action_items"`
	ReportMarkdown string            `json:"report_markdown"`
}

// checkCompliance runs the compliance pipeline over a contract.
func (h *taskHandler) checkCompliance(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req complianceCheckRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(strings.TrimSpace(req.ContractText)) < minContractChars {
		writeError(w, http.StatusBadRequest, "invalid_input",
			fmt.Sprintf("contract text too short (minimum %d characters)", minContractChars))
		return
	}
	if !spendCredit(w, r, h.credits, userID) {
		return
	}

	metadata := map[string]string{"request_source": "api"}
	if req.Jurisdiction != "" {
		metadata["jurisdiction"] = req.Jurisdiction
	}
	if req.ContractType != "" {
		metadata["contract_type"] = req.ContractType
	}

	state, err := h.compliance.Run(r.Context(), req.ContractText, metadata)
	if err != nil {
		h.logger.Error("compliance check failed", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}

	resp := buildComplianceResponse(state)
	h.recordUsage(r, userID, usage.TaskCompliance,
		"Compliance check ("+state.Jurisdiction.Country+")",
		resp.ReportMarkdown,
		map[string]string{
			"risk_level":    state.Risk.RiskLevel,
			"overall_score": fmt.Sprintf("%d", state.Risk.OverallScore),
		})

	writeJSON(w, http.StatusOK, resp)
}

func buildComplianceResponse(state *agent.State) complianceCheckResponse {
	clauseText := make(map[string]string, len(state.Clauses))
	for _, c := range state.Clauses {
		clauseText[c.ID] = c.Text
	}

	resp := complianceCheckResponse{
		Issues: make([]complianceIssue, 0, len(state.Findings)),
		Summary: complianceSummary{
			TotalClauses: len(state.Clauses),
			RiskLevel:    state.Risk.RiskLevel,
			OverallScore: state.Risk.OverallScore,
		},
		ActionItems: []actionItem{},
	}

	for _, f := range state.Findings {
		heading := f.ClauseTitle
		if heading == "" {
			heading = "Clause " + f.ClauseID
		}
		fix := f.SuggestedFix
		if fix == "" {
			fix = "No fix recommended"
		}
		resp.Issues = append(resp.Issues, complianceIssue{
			Clause:       clauseText[f.ClauseID],
			Heading:      heading,
			RiskLevel:    f.RiskLevel,
			IssueSummary: f.Reason,
			Fix:          fix,
		})

		switch f.RiskLevel {
		case agent.RiskHigh:
			resp.Summary.HighRisk++
		case agent.RiskMedium:
			resp.Summary.MediumRisk++
		default:
			resp.Summary.LowRisk++
		}

		if f.RiskLevel == agent.RiskHigh || f.RiskLevel == agent.RiskMedium {
			resp.ActionItems = append(resp.ActionItems, actionItem{
				Title:     heading,
				RiskLevel: f.RiskLevel,
				Actions:   []string{fix},
			})
		}
	}

	resp.ReportMarkdown = report.ComplianceMarkdown(state)
	return resp
}

type draftRequest struct {
	Requirements string   `json:"requirements"`
	ContractType string   `json:"contract_type"`
	Jurisdiction string   `json:"jurisdiction"`
	Parties      []string `json:"parties"`
}

// draft runs the drafting pipeline and returns the contract as plain text,
// the shape the document editor consumes directly.
func (h *taskHandler) draft(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req draftRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Requirements) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "requirements must not be empty")
		return
	}
	if !spendCredit(w, r, h.credits, userID) {
		return
	}

	state, err := h.drafting.Run(r.Context(), drafting.Request{
		Requirements: req.Requirements,
		ContractType: req.ContractType,
		Jurisdiction: req.Jurisdiction,
		Parties:      req.Parties,
	})
	if err != nil {
		h.logger.Error("contract drafting failed", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}

	title := state.Metadata["detected_intent"]
	if title == "" {
		title = "Contract draft"
	}
	h.recordUsage(r, userID, usage.TaskDrafting, title, state.Draft,
		map[string]string{"jurisdiction": req.Jurisdiction})

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(state.Draft)); err != nil {
		h.logger.Debug("failed to write draft body", "error", err)
	}
}

type clauseAnalysisRequest struct {
	Text string `json:"text"`
}

type clauseRisk struct {
	ClauseText     string `json:"clause_text"`
	RiskLevel      string `json:"risk_level"`
	Explanation    string `json:"explanation"`
	Recommendation string `json:"recommendation"`
}

type clauseAnalysisResponse struct {
	Risks   []clauseRisk `json:"risks"`
	Summary string       `json:"summary"`
}

// analyzeClauses runs a single-shot clause risk analysis.
func (h *taskHandler) analyzeClauses(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req clauseAnalysisRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "text must not be empty")
		return
	}
	if !spendCredit(w, r, h.credits, userID) {
		return
	}

	prompt := fmt.Sprintf(`Analyze the following contract text. Identify key clauses and their risk levels (high, medium, low).
Provide a brief explanation for each risk and a recommendation.

Contract Text:
%s

Return ONLY a JSON object:
{
  "risks": [
    {"clause_text": "...", "risk_level": "high/medium/low", "explanation": "...", "recommendation": "..."}
  ],
  "summary": "Overall summary of the contract risks."
}`, req.Text)

	raw, err := h.llm.Generate(r.Context(), llm.Request{Prompt: prompt, Temperature: 0.2, MaxTokens: 2000})
	if err != nil {
		h.logger.Error("clause analysis failed", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}

	var resp clauseAnalysisResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		h.logger.Error("unparseable clause analysis", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, "llm_unavailable", "model returned an unparseable analysis")
		return
	}

	h.recordUsage(r, userID, usage.TaskAnalysis, "Clause analysis", resp.Summary, nil)
	writeJSON(w, http.StatusOK, resp)
}

type caseSummaryRequest struct {
	CaseText string `json:"case_text"`
}

type caseSummaryResponse struct {
	Summary     string   `json:"summary"`
	KeyHoldings []string `json:"key_holdings"`
	Citations   []string `json:"citations"`
}

// summarizeCase summarizes a legal judgment.
func (h *taskHandler) summarizeCase(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req caseSummaryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.CaseText) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "case_text must not be empty")
		return
	}
	if !spendCredit(w, r, h.credits, userID) {
		return
	}

	prompt := fmt.Sprintf(`Summarize the following legal judgment for a practicing lawyer.

Case Text:
%s

Return ONLY a JSON object:
{
  "summary": "<concise summary of the facts, issues and outcome>",
  "key_holdings": ["<each key holding as one sentence>"],
  "citations": ["<statutes and precedents cited in the judgment>"]
}`, req.CaseText)

	raw, err := h.llm.Generate(r.Context(), llm.Request{Prompt: prompt, Temperature: 0.2, MaxTokens: 2000})
	if err != nil {
		h.logger.Error("case summarization failed", "user_id", userID, "error", err)
		writeDomainError(w, err)
		return
	}

	var resp caseSummaryResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		h.logger.Error("unparseable case summary", "user_id", userID, "error", err)
		writeError(w, http.StatusBadGateway, "llm_unavailable", "model returned an unparseable summary")
		return
	}

	h.recordUsage(r, userID, usage.TaskSummary, "Case summary", resp.Summary, nil)
	writeJSON(w, http.StatusOK, resp)
}

type reportRequest struct {
	TaskType     string            `json:"task_type"`
	Content      string            `json:"content"`
	Jurisdiction string            `json:"jurisdiction"`
	Metadata     map[string]string `json:"metadata"`
}

type reportResponse struct {
	TaskType       string            `json:"task_type"`
	ReportMarkdown string            `json:"report_markdown"`
	Metadata       map[string]string `json:"metadata"`
}

// generateReport produces a structured markdown report for a general task.
func (h *taskHandler) generateReport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req reportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TaskType) == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "invalid_input", "task_type and content must not be empty")
		return
	}
	if !spendCredit(w, r, h.credits, userID) {
		return
	}

	markdown, err := h.reports.Generate(r.Context(), req.TaskType, req.Content, req.Jurisdiction, req.Metadata)
	if err != nil {
		h.logger.Error("report generation failed", "user_id", userID, "task_type", req.TaskType, "error", err)
		writeDomainError(w, err)
		return
	}

	h.recordUsage(r, userID, req.TaskType, req.TaskType+" report", markdown,
		map[string]string{"jurisdiction": req.Jurisdiction})

	writeJSON(w, http.StatusOK, reportResponse{
		TaskType:       req.TaskType,
		ReportMarkdown: markdown,
		Metadata:       map[string]string{"jurisdiction": req.Jurisdiction},
	})
}
