package rag

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Embedder produces a fixed-width vector for a piece of text.
// Defined here on the consumer side so tests can substitute a deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeminiEmbedder generates embeddings through the Gemini embeddings API,
// truncated to VectorDimension via output dimensionality.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// NewGeminiEmbedder creates an embedder backed by the given Gemini client.
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: client, model: model}
}

// Embed implements Embedder.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr(int32(VectorDimension)),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}

	values := resp.Embeddings[0].Values
	if len(values) != VectorDimension {
		return nil, fmt.Errorf("embedding has %d dimensions, want %d", len(values), VectorDimension)
	}
	return values, nil
}
