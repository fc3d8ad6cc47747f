// Package security screens free-form user text before it reaches an LLM
// prompt.
package security

import (
	"regexp"
	"strings"
	"unicode"
)

// PromptValidator detects common prompt injection patterns in user input.
// Pattern matching is a first line of defense only; the system prompts keep
// their own guardrails.
type PromptValidator struct {
	patterns []*regexp.Regexp
}

// NewPromptValidator creates a validator with the default pattern set.
func NewPromptValidator() *PromptValidator {
	patterns := []string{
		// Attempts to override the system instructions.
		`(?i)(ignore|disregard|forget|override)\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?|rules?|context)`,

		// Role reassignment.
		`(?i)^(pretend|act|behave|imagine)\s+(you\s+are|to\s+be|as\s+if|like)`,
		`(?i)^you\s+are\s+now\s+a`,
		`(?i)^from\s+now\s+on,?\s+you\s+(are|will|must)`,

		// Injected instruction headers.
		`(?i)^new\s+(instruction|task|rule)\s*:`,
		`(?i)^admin\s*(mode|override|command)\s*:`,

		// Escaping the prompt structure.
		`(?i)</?(system|instruction|prompt)>`,
		`(?i)---+\s*(system|new\s+instruction)`,

		// Known jailbreak phrases.
		`(?i)do\s+anything\s+now`,
		`(?i)jailbreak`,
		`(?i)bypass\s+(safety|filter|restrictions?)`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return &PromptValidator{patterns: compiled}
}

// IsSafe reports whether input contains no known injection patterns.
func (v *PromptValidator) IsSafe(input string) bool {
	normalized := normalizeInput(input)
	for _, re := range v.patterns {
		if re.MatchString(normalized) {
			return false
		}
	}
	return true
}

// normalizeInput strips zero-width and combining characters and collapses
// whitespace, so formatting tricks cannot dodge the patterns.
func normalizeInput(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
