// Package testutil provides shared test doubles and helpers.
package testutil

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/lexora-ai/lexora/internal/llm"
	"github.com/lexora-ai/lexora/internal/log"
)

// MockClient is a scripted llm.Client. Responses are matched by substring of
// the prompt; the first matching rule wins. Safe for concurrent use.
type MockClient struct {
	mu    sync.Mutex
	rules []rule
	calls []llm.Request
	err   error
	// Default is returned when no rule matches. Empty Default with no match
	// is an error, which catches prompts the test did not anticipate.
	Default string
}

type rule struct {
	substr   string
	response string
	err      error
}

// NewMockClient creates an empty mock. Add behavior with Respond/Fail.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Respond returns response for any prompt containing substr.
func (m *MockClient) Respond(substr, response string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{substr: substr, response: response})
	return m
}

// Fail returns err for any prompt containing substr.
func (m *MockClient) Fail(substr string, err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rule{substr: substr, err: err})
	return m
}

// FailAll makes every call return err, regardless of rules.
func (m *MockClient) FailAll(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Name implements llm.Client.
func (*MockClient) Name() string { return "mock" }

// Generate implements llm.Client.
func (m *MockClient) Generate(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, req)
	if m.err != nil {
		return "", m.err
	}

	haystack := req.System + "\n" + req.Prompt
	for _, r := range m.rules {
		if strings.Contains(haystack, r.substr) {
			return r.response, r.err
		}
	}
	if m.Default != "" {
		return m.Default, nil
	}
	return "", fmt.Errorf("mock client: no rule matches prompt %.80q", req.Prompt)
}

// Calls returns a copy of every request seen so far.
func (m *MockClient) Calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.calls...)
}

// CallCount returns how many times Generate ran.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// MockEmbedder produces deterministic vectors derived from an FNV hash of the
// text, so identical texts embed identically without a network call.
type MockEmbedder struct {
	Dimension int // defaults to 768
}

// Embed implements rag.Embedder.
func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := m.Dimension
	if dim == 0 {
		dim = 768
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, dim)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33))/float32(1<<31) - 0.5
	}
	return vec, nil
}

// NewTestLogger returns a logger that writes through t.Log, so output only
// shows for failing tests.
func NewTestLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return log.NewWithWriter(testWriter{t}, log.Config{Level: slog.LevelDebug})
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}
