package report

import (
	"fmt"
	"strings"

	"github.com/lexora-ai/lexora/internal/agent"
)

// ComplianceMarkdown renders a completed compliance run as a human-readable
// markdown report.
func ComplianceMarkdown(state *agent.State) string {
	var b strings.Builder
	b.WriteString("# Compliance Analysis Report\n\n")
	fmt.Fprintf(&b, "**Jurisdiction:** %s\n", state.Jurisdiction.Country)
	fmt.Fprintf(&b, "**Overall Risk Level:** %s\n\n", state.Risk.RiskLevel)

	issues := nonCompliantFindings(state)
	if len(issues) == 0 {
		b.WriteString("No major compliance issues were identified in this document.\n")
		return b.String()
	}

	b.WriteString("## Identified Issues\n\n")
	for _, f := range issues {
		fmt.Fprintf(&b, "### %s %s\n", riskIcon(f.RiskLevel), headingFor(f))
		if clause := clauseText(state, f.ClauseID); clause != "" {
			fmt.Fprintf(&b, "**Clause:** *%q*\n\n", excerpt(clause, 200))
		}
		fmt.Fprintf(&b, "**Issue:** %s\n\n", f.Reason)
		fmt.Fprintf(&b, "**Suggested Fix:** %s\n\n", orText(f.SuggestedFix, "No fix recommended"))
		b.WriteString("---\n\n")
	}
	return b.String()
}

func nonCompliantFindings(state *agent.State) []agent.Finding {
	var issues []agent.Finding
	for _, f := range state.Findings {
		if f.Status != agent.StatusCompliant {
			issues = append(issues, f)
		}
	}
	return issues
}

func headingFor(f agent.Finding) string {
	if f.ClauseTitle != "" {
		return f.ClauseTitle
	}
	return "Clause " + f.ClauseID
}

func clauseText(state *agent.State, clauseID string) string {
	for _, c := range state.Clauses {
		if c.ID == clauseID {
			return c.Text
		}
	}
	return ""
}

func riskIcon(level string) string {
	switch level {
	case agent.RiskHigh:
		return "🔴"
	case agent.RiskMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func orText(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
