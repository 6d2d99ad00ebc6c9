// Package ai holds the categorization and summarization logic backed by an
// external language model. GeminiClient is the single place that talks to the
// model service; everything else works against the Client interface.
package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Params are the per-request generation settings.
type Params struct {
	Temperature     float32
	MaxOutputTokens int32
}

// Completion is one model response with its usage counters.
type Completion struct {
	Text         string
	InputTokens  int64
	OutputTokens int64
}

// Client abstracts the model service so orchestration can be tested with a
// mock.
type Client interface {
	Complete(ctx context.Context, system, user string, p Params) (*Completion, error)
	Model() string
}

// GeminiClient calls the Gemini API. Credentials come from the environment
// (GOOGLE_API_KEY or Application Default Credentials).
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a Gemini-backed client for the given model name.
func NewGeminiClient(ctx context.Context, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiClient: create genai client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// Model returns the configured model name.
func (g *GeminiClient) Model() string { return g.model }

// Complete sends one prompt to the model and returns its text response with
// usage counters.
func (g *GeminiClient) Complete(ctx context.Context, system, user string, p Params) (*Completion, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(p.Temperature),
		MaxOutputTokens: p.MaxOutputTokens,
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		}
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: user}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("Complete: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("Complete: empty response from model")
	}

	c := &Completion{Text: text}
	if resp.UsageMetadata != nil {
		c.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		c.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return c, nil
}

var _ Client = (*GeminiClient)(nil)
