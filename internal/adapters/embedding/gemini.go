// Package embedding provides the Gemini embedding engine used by the
// semantic index.
package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Dimensions is the output size of gemini-embedding-001.
const Dimensions = 3072

type GeminiEngine struct {
	client *genai.Client
	model  string
}

func NewGeminiEngine(ctx context.Context, apiKey, model string) (*GeminiEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}

	return &GeminiEngine{client: client, model: model}, nil
}

// EmbedQuery generates an embedding for a search query. Queries and
// documents use different task types; mixing them degrades the cosine
// ranking.
func (e *GeminiEngine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, "RETRIEVAL_QUERY")
}

// EmbedDocument generates an embedding for a corpus passage.
func (e *GeminiEngine) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, text, "RETRIEVAL_DOCUMENT")
}

func (e *GeminiEngine) embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(text, genai.RoleUser),
	}

	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			TaskType: taskType,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}
