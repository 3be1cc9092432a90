// Package llm provides the model clients behind the LLMClient port:
// Gemini (API key or Vertex AI), OpenAI-compatible endpoints, and a
// deterministic mock for development without credentials.
package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiConfig selects how the Gemini client authenticates. APIKey and
// Project/Location are mutually exclusive: with a project set the
// client goes through Vertex AI.
type GeminiConfig struct {
	APIKey      string
	Project     string
	Location    string
	Model       string
	Temperature float32
	MaxTokens   int
}

type GeminiClient struct {
	client *genai.Client
	cfg    GeminiConfig
}

func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	clientCfg := &genai.ClientConfig{}
	switch {
	case cfg.Project != "":
		if cfg.Location == "" {
			return nil, fmt.Errorf("vertex backend requires a location")
		}
		clientCfg.Project = cfg.Project
		clientCfg.Location = cfg.Location
		clientCfg.Backend = genai.BackendVertexAI
	case cfg.APIKey != "":
		clientCfg.APIKey = cfg.APIKey
	default:
		return nil, fmt.Errorf("either an API key or a GCP project is required")
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &GeminiClient{client: client, cfg: cfg}, nil
}

// Generate sends the composed prompt as a single user turn. The prompt
// already carries history and context, so no system instruction or
// multi-turn contents are needed.
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	temp := g.cfg.Temperature

	cfg := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(g.cfg.MaxTokens),
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	res, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := res.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}
