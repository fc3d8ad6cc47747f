// Package agent defines the shared state passed through the document
// pipelines and the vocabulary of findings they produce.
package agent

import "time"

// Finding statuses.
const (
	StatusCompliant = "compliant"
	StatusViolation = "violation"
	StatusWarning   = "warning"
	StatusError     = "error"
)

// Finding risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Overall risk levels for a whole document.
const (
	LevelCritical = "Critical"
	LevelModerate = "Moderate"
	LevelLow      = "Low"
)

// Clause is one extracted contract clause.
type Clause struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	Type  string `json:"type"`
}

// Statute is one retrieved piece of reference law.
type Statute struct {
	Source  string `json:"source"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

// Finding is the compliance assessment of a single clause.
type Finding struct {
	ClauseID     string `json:"clause_id"`
	ClauseTitle  string `json:"clause_title"`
	Status       string `json:"status"`
	RiskLevel    string `json:"risk_level"`
	Reason       string `json:"reason"`
	SuggestedFix string `json:"suggested_fix"`
}

// Jurisdiction is the resolved governing law context.
type Jurisdiction struct {
	Country string `json:"country"`
	Region  string `json:"region,omitempty"`
	Source  string `json:"source,omitempty"` // "metadata", "inferred" or "default"
}

// RiskSummary aggregates per-clause findings into one document score.
type RiskSummary struct {
	OverallScore int    `json:"overall_score"`
	RiskLevel    string `json:"risk_level"`
	HighCount    int    `json:"high_count"`
	MediumCount  int    `json:"medium_count"`
}

// AuditEntry records one pipeline action for traceability.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Agent     string    `json:"agent"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}

// State carries a document through a pipeline. Each stage reads what earlier
// stages produced and appends its own artifacts. Not safe for concurrent use;
// a State belongs to exactly one pipeline run.
type State struct {
	RawText  string
	Metadata map[string]string

	Jurisdiction Jurisdiction
	Clauses      []Clause
	Statutes     []Statute
	Findings     []Finding
	Risk         RiskSummary

	Draft string

	AuditLog []AuditEntry
}

// NewState initializes a State for one pipeline run.
func NewState(rawText string, metadata map[string]string) *State {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &State{
		RawText:  rawText,
		Metadata: metadata,
	}
}

// Audit appends a timestamped trace entry.
func (s *State) Audit(agent, action, details string) {
	s.AuditLog = append(s.AuditLog, AuditEntry{
		Timestamp: time.Now().UTC(),
		Agent:     agent,
		Action:    action,
		Details:   details,
	})
}
