package compliance

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/lexora-ai/lexora/internal/agent"
)

var numberedHeading = regexp.MustCompile(`^\s*\d+[\.\)]\s+\S`)

// splitClauses is the deterministic fallback extractor. It splits the text on
// numbered headings ("1. Term", "2) Payment") and ALL-CAPS heading lines, and
// treats a document with no recognizable headings as a single clause.
func splitClauses(text string) []agent.Clause {
	lines := strings.Split(text, "\n")

	type section struct {
		title string
		body  []string
	}
	var sections []section
	current := section{title: ""}
	headingFound := false

	for _, line := range lines {
		if isHeading(line) {
			headingFound = true
			if current.title != "" || len(current.body) > 0 {
				sections = append(sections, current)
			}
			current = section{title: strings.TrimSpace(line)}
			continue
		}
		current.body = append(current.body, line)
	}
	if current.title != "" || len(current.body) > 0 {
		sections = append(sections, current)
	}

	if !headingFound {
		return []agent.Clause{{ID: "1", Title: "Full Document", Text: strings.TrimSpace(text), Type: "general"}}
	}

	var clauses []agent.Clause
	for _, sec := range sections {
		body := strings.TrimSpace(strings.Join(sec.body, "\n"))
		if sec.title == "" && body == "" {
			continue
		}
		clauseText := body
		if sec.title != "" {
			clauseText = strings.TrimSpace(sec.title + "\n" + body)
		}
		title := sec.title
		if title == "" {
			title = "Preamble"
		}
		clauses = append(clauses, agent.Clause{
			ID:    fmt.Sprintf("%d", len(clauses)+1),
			Title: title,
			Text:  clauseText,
			Type:  "extracted",
		})
	}

	if len(clauses) == 0 {
		return []agent.Clause{{ID: "1", Title: "Full Document", Text: strings.TrimSpace(text), Type: "general"}}
	}
	return clauses
}

func isHeading(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	if numberedHeading.MatchString(trimmed) {
		return true
	}
	return isAllCapsHeading(trimmed)
}

// isAllCapsHeading reports whether the line looks like "GOVERNING LAW":
// short, contains letters, and none of them lowercase.
func isAllCapsHeading(line string) bool {
	if len(line) < 3 || len(line) > 80 {
		return false
	}
	hasLetter := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}
