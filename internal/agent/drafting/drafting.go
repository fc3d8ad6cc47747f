// Package drafting runs the contract drafting pipeline: intake, template
// selection, generation and self-review.
//
// Generation is the only stage allowed to fail a run. Intake and template
// selection fall back to deterministic defaults, and a failed review returns
// the unreviewed draft with an audit note.
package drafting

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

// Sentinel errors.
var (
	// ErrEmptyRequirements indicates the drafting request contained no text.
	ErrEmptyRequirements = errors.New("empty drafting requirements")

	// ErrDraftFailed indicates the model could not produce a draft.
	ErrDraftFailed = errors.New("draft generation failed")
)

const (
	templateTopK  = 3
	minDraftChars = 100
)

// Retriever is the corpus search the pipeline depends on.
type Retriever interface {
	Search(ctx context.Context, query string, opts ...rag.SearchOption) ([]rag.Result, error)
}

// Request is one drafting job.
type Request struct {
	Requirements string
	ContractType string
	Jurisdiction string
	Parties      []string
}

// Pipeline orchestrates a drafting run. Safe for concurrent use.
type Pipeline struct {
	client    llm.Client
	retriever Retriever
	logger    *slog.Logger
}

// New creates a drafting pipeline. A nil logger falls back to slog.Default.
func New(client llm.Client, retriever Retriever, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		client:    client,
		retriever: retriever,
		logger:    logger.With("component", "drafting"),
	}
}

// Run executes the full drafting pipeline. On success state.Draft holds the
// contract in markdown.
func (p *Pipeline) Run(ctx context.Context, req Request) (*agent.State, error) {
	req.Requirements = strings.TrimSpace(req.Requirements)
	if req.Requirements == "" {
		return nil, ErrEmptyRequirements
	}

	metadata := map[string]string{
		"contract_type": req.ContractType,
		"jurisdiction":  req.Jurisdiction,
		"parties":       strings.Join(req.Parties, "; "),
	}
	state := agent.NewState(req.Requirements, metadata)
	state.Audit("DraftingOrchestrator", "Start", "drafting initiated")

	intent := p.intake(ctx, state, req)
	references := p.selectReferences(ctx, state, intent, req)

	if err := p.generate(ctx, state, intent, references, req); err != nil {
		return nil, err
	}
	p.review(ctx, state, req)

	state.Audit("DraftingOrchestrator", "End", "drafting completed")
	return state, nil
}

type intentResult struct {
	DetectedIntent   string   `json:"detected_intent"`
	KeyRequirements  []string `json:"key_requirements"`
	SuggestedClauses []string `json:"suggested_clauses"`
}

// intake normalizes the request into a structured intent, falling back to
// request metadata when the model output cannot be parsed.
func (p *Pipeline) intake(ctx context.Context, state *agent.State, req Request) intentResult {
	prompt := fmt.Sprintf(`Analyze the following contract request and extract structured information.

User Request:
%s

Provided Metadata:
- Contract Type: %s
- Jurisdiction: %s
- Parties: %s

Respond with ONLY a JSON object:
{
  "detected_intent": "<type of contract requested, e.g. 'Service Agreement', 'NDA'>",
  "key_requirements": ["<main requirements extracted from the request>"],
  "suggested_clauses": ["<clauses that should be included>"]
}`,
		req.Requirements, orDefault(req.ContractType, "Not specified"),
		orDefault(req.Jurisdiction, "Not specified"), strings.Join(req.Parties, ", "))

	var intent intentResult
	resp, err := p.client.Generate(ctx, llm.Request{Prompt: prompt, Temperature: 0.1, MaxTokens: 1000})
	if err == nil {
		if jsonErr := llm.DecodeJSON(resp, &intent); jsonErr == nil && intent.DetectedIntent != "" {
			state.Metadata["detected_intent"] = intent.DetectedIntent
			state.Audit("Intake", "Analyze", fmt.Sprintf("detected intent %q with %d requirements",
				intent.DetectedIntent, len(intent.KeyRequirements)))
			return intent
		}
		err = errors.New("unparseable intent response")
	}

	p.logger.Warn("intent analysis failed, using request metadata", "error", err)
	intent = intentResult{DetectedIntent: orDefault(req.ContractType, "General Agreement")}
	state.Metadata["detected_intent"] = intent.DetectedIntent
	state.Audit("Intake", "Fallback", "used request metadata: "+intent.DetectedIntent)
	return intent
}

// selectReferences pulls reference clauses from the template corpus for the
// detected contract type. Retrieval failure degrades to no references.
func (p *Pipeline) selectReferences(ctx context.Context, state *agent.State, intent intentResult, req Request) []string {
	query := fmt.Sprintf("%s template clauses %s", intent.DetectedIntent, req.Jurisdiction)

	opts := []rag.SearchOption{
		rag.WithCorpus(rag.CorpusTemplates),
		rag.WithTopK(templateTopK),
	}
	if req.Jurisdiction != "" {
		opts = append(opts, rag.WithFilter("jurisdiction", req.Jurisdiction))
	}

	results, err := p.retriever.Search(ctx, query, opts...)
	if err != nil {
		p.logger.Warn("template retrieval failed, drafting without references", "error", err)
		state.Audit("TemplateSelection", "Error", err.Error())
		return nil
	}

	references := make([]string, 0, len(results))
	for _, r := range results {
		references = append(references, r.Document.Content)
	}
	state.Audit("TemplateSelection", "Select", fmt.Sprintf("retrieved %d reference clauses", len(references)))
	return references
}

const generationSystem = `You are an expert legal contract drafter. Generate a complete, professional legal contract.

RULES:
1. Output ONLY the contract text in well-structured Markdown format.
2. Do NOT include any preamble like "Here is the contract".
3. Use clear headings (##), numbered clauses and proper legal language.
4. Include standard legal boilerplate appropriate for the jurisdiction.
5. Include signature blocks at the end.`

// generate asks the model for the full contract draft.
func (p *Pipeline) generate(ctx context.Context, state *agent.State, intent intentResult, references []string, req Request) error {
	parties := "- Party A\n- Party B"
	if len(req.Parties) > 0 {
		parties = "- " + strings.Join(req.Parties, "\n- ")
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Draft a %s contract with the following details:\n\n", intent.DetectedIntent)
	fmt.Fprintf(&prompt, "Parties:\n%s\n\n", parties)
	fmt.Fprintf(&prompt, "Jurisdiction: %s\n\n", orDefault(req.Jurisdiction, "Not specified"))
	fmt.Fprintf(&prompt, "User Requirements:\n%s\n\n", req.Requirements)
	if len(intent.SuggestedClauses) > 0 {
		fmt.Fprintf(&prompt, "Clauses to include:\n- %s\n\n", strings.Join(intent.SuggestedClauses, "\n- "))
	}
	if len(references) > 0 {
		prompt.WriteString("Reference clauses from similar agreements:\n")
		for _, ref := range references {
			fmt.Fprintf(&prompt, "---\n%s\n", ref)
		}
		prompt.WriteString("\n")
	}
	prompt.WriteString("Output ONLY the final contract in Markdown. No explanations.")

	draft, err := p.client.Generate(ctx, llm.Request{
		System:      generationSystem,
		Prompt:      prompt.String(),
		Temperature: 0.3,
		MaxTokens:   6000,
	})
	if err != nil {
		state.Audit("Generation", "Error", err.Error())
		return fmt.Errorf("%w: %w", ErrDraftFailed, err)
	}

	draft = strings.TrimSpace(draft)
	if len(draft) < minDraftChars {
		state.Audit("Generation", "Error", fmt.Sprintf("draft too short (%d chars)", len(draft)))
		return fmt.Errorf("%w: model produced %d characters", ErrDraftFailed, len(draft))
	}

	state.Draft = draft
	state.Audit("Generation", "Generate", fmt.Sprintf("generated draft of %d chars", len(draft)))
	return nil
}

type reviewResult struct {
	OverallQuality    string   `json:"overall_quality"`
	CompletenessScore int      `json:"completeness_score"`
	Issues            []string `json:"issues"`
	MissingClauses    []string `json:"missing_clauses"`
}

// review checks the draft against the requirements. Failure keeps the
// unreviewed draft and records an audit note.
func (p *Pipeline) review(ctx context.Context, state *agent.State, req Request) {
	prompt := fmt.Sprintf(`You are a senior legal reviewer. Review the following drafted contract for quality, completeness and legal soundness.

Original Requirements:
%s

Jurisdiction: %s

Drafted Contract:
%s

Respond with ONLY a JSON object:
{
  "overall_quality": "<excellent/good/needs_improvement/poor>",
  "completeness_score": <1-10>,
  "issues": ["<specific issues found, empty if none>"],
  "missing_clauses": ["<important clauses that are missing>"]
}`,
		truncate(req.Requirements, 800), orDefault(req.Jurisdiction, "Not specified"), truncate(state.Draft, 4000))

	resp, err := p.client.Generate(ctx, llm.Request{Prompt: prompt, Temperature: 0.1, MaxTokens: 1500})
	if err != nil {
		p.logger.Warn("draft review failed, returning unreviewed draft", "error", err)
		state.Audit("SelfReview", "Error", "review skipped: "+err.Error())
		return
	}

	var review reviewResult
	if jsonErr := llm.DecodeJSON(resp, &review); jsonErr != nil || review.OverallQuality == "" {
		state.Audit("SelfReview", "Fallback", "review response could not be parsed")
		return
	}

	state.Metadata["review_quality"] = review.OverallQuality
	state.Metadata["review_score"] = fmt.Sprintf("%d", review.CompletenessScore)
	state.Audit("SelfReview", "Review", fmt.Sprintf("quality %s, score %d/10, %d issues, %d missing clauses",
		review.OverallQuality, review.CompletenessScore, len(review.Issues), len(review.MissingClauses)))
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
