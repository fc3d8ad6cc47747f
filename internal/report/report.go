// Package report renders pipeline results as markdown and generates
// structured LLM-backed reports for general legal tasks.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lexora-ai/lexora/internal/llm"
)

// TaskConfig shapes the prompt for one report task type.
type TaskConfig struct {
	Goal     string
	Sections []string
}

// taskLibrary maps task types to their report shape. Unknown task types get
// defaultTask.
var taskLibrary = map[string]TaskConfig{
	"case-summary": {
		Goal:     "Summarize the most material facts, issues, holdings, and implications of a legal case.",
		Sections: []string{"Case Snapshot", "Key Holdings", "Practical Implications", "Next Steps"},
	},
	"loophole-detection": {
		Goal:     "Identify exploitable ambiguities or missing safeguards in the provided text.",
		Sections: []string{"Loophole Radar", "Impact Assessment", "Suggested Fix"},
	},
	"clause-classification": {
		Goal:     "Group clauses by legal topic with short explanations for each grouping.",
		Sections: []string{"Clause Map", "Observations"},
	},
	"contract-drafting": {
		Goal:     "Draft a baseline agreement structure when the full drafting pipeline is unavailable.",
		Sections: []string{"Agreement Overview", "Core Terms", "Signature Block"},
	},
	"compliance-check": {
		Goal:     "Outline compliance issues when the full pipeline is not required.",
		Sections: []string{"Executive Summary", "Issues", "Recommended Actions"},
	},
}

var defaultTask = TaskConfig{
	Goal:     "Provide a structured legal analysis.",
	Sections: []string{"Summary", "Findings", "Recommended Actions"},
}

const baseInstructions = "You are a senior legal analyst producing a client-ready deliverable. " +
	"Return polished Markdown only (no JSON, no prefatory text). Always include a title, headings, " +
	"subheadings, bullet points, and clear call-to-action items."

const maxContentChars = 12000

// Generator produces structured markdown reports through an LLM.
type Generator struct {
	client llm.Client
	logger *slog.Logger
}

// NewGenerator creates a report generator. A nil logger falls back to
// slog.Default.
func NewGenerator(client llm.Client, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{client: client, logger: logger.With("component", "report")}
}

// Generate renders a markdown report for the given task type over content.
func (g *Generator) Generate(ctx context.Context, taskType, content, jurisdiction string, metadata map[string]string) (string, error) {
	cfg, ok := taskLibrary[taskType]
	if !ok {
		g.logger.Debug("unknown report task type, using default shape", "task_type", taskType)
		cfg = defaultTask
	}

	trimmed := strings.TrimSpace(content)
	if len(trimmed) > maxContentChars {
		trimmed = trimmed[:maxContentChars] + "\n...[truncated]"
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	payload, err := json.Marshal(map[string]any{
		"task_type":    taskType,
		"jurisdiction": jurisdiction,
		"goal":         cfg.Goal,
		"sections":     cfg.Sections,
		"metadata":     metadata,
		"source_text":  trimmed,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling report payload: %w", err)
	}

	prompt := fmt.Sprintf(`%s
Task Focus: %s
Required Sections: %s
Jurisdiction Context: %s
Style Guide: Limit paragraphs to 4 sentences, prefer bullet lists, highlight risk levels, and end with a concise Next Steps section.

DATA:
%s

Respond with Markdown only.`,
		baseInstructions, cfg.Goal, strings.Join(cfg.Sections, ", "),
		orNotSpecified(jurisdiction), payload)

	result, err := g.client.Generate(ctx, llm.Request{Prompt: prompt, Temperature: 0.25, MaxTokens: 2048})
	if err != nil {
		return "", fmt.Errorf("generating %s report: %w", taskType, err)
	}
	return strings.TrimSpace(result), nil
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return s
}
