package rag

import "time"

// VectorDimension is the embedding width every corpus document carries.
// The embedder must be configured to produce vectors of exactly this size.
const VectorDimension = 768

// Corpus names for the reference material the pipelines retrieve from.
const (
	CorpusStatutes    = "statutes"
	CorpusCases       = "cases"
	CorpusRegulations = "regulations"
	CorpusTemplates   = "templates"
)

// Document is a single piece of reference material in a corpus.
type Document struct {
	ID        string
	Corpus    string
	Content   string
	Metadata  map[string]string // jurisdiction, citation, title, etc.
	CreatedAt time.Time
}

// Result is a search hit with its cosine similarity score (0-1, higher is closer).
type Result struct {
	Document   Document
	Similarity float64
}

// SearchOption configures search behavior using the functional options pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int32
	corpus  string
	filter  map[string]string
	timeout time.Duration
}

// WithTopK sets the maximum number of results to return. Default is 5.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = int32(k)
		}
	}
}

// WithCorpus restricts the search to a single corpus.
func WithCorpus(name string) SearchOption {
	return func(c *searchConfig) {
		c.corpus = name
	}
}

// WithFilter adds a metadata filter. Multiple calls AND together.
// Example: WithFilter("jurisdiction", "California")
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the per-query timeout. Default is 10 seconds.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    5,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
