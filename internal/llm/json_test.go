package llm

import (
	"errors"
	"testing"
)

func TestExtractJSON_Plain(t *testing.T) {
	got, err := ExtractJSON(`{"risk_level":"high"}`)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != `{"risk_level":"high"}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSON_EmbeddedInProse(t *testing.T) {
	input := `Sure, here is the analysis you asked for:

{"status": "violation", "reason": "missing notice period"}

Let me know if you need anything else.`

	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != `{"status": "violation", "reason": "missing notice period"}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	input := "```json\n{\"intent\": \"drafting\"}\n```"

	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != `{"intent": "drafting"}` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSON_NestedBraces(t *testing.T) {
	input := `{"summary": {"high": 2, "medium": 1}, "note": "a } in a string"}`

	got, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != input {
		t.Errorf("got %q, want full object", got)
	}
}

func TestExtractJSON_Array(t *testing.T) {
	got, err := ExtractJSON(`The clauses are: [{"title":"Termination"},{"title":"Liability"}]`)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != `[{"title":"Termination"},{"title":"Liability"}]` {
		t.Errorf("got %q", got)
	}
}

func TestExtractJSON_None(t *testing.T) {
	if _, err := ExtractJSON("no structured data here"); !errors.Is(err, ErrNoJSON) {
		t.Errorf("err = %v, want ErrNoJSON", err)
	}
}

func TestExtractJSON_Unbalanced(t *testing.T) {
	if _, err := ExtractJSON(`{"truncated": "mid`); !errors.Is(err, ErrNoJSON) {
		t.Errorf("err = %v, want ErrNoJSON", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Intent string `json:"intent"`
		Reply  string `json:"reply"`
	}

	input := "Here you go:\n```json\n{\"intent\":\"research\",\"reply\":\"Try the research tool.\"}\n```"
	if err := DecodeJSON(input, &out); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if out.Intent != "research" {
		t.Errorf("intent = %q", out.Intent)
	}
}

func TestDecodeJSON_Invalid(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON(`{"a": }`, &out); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
