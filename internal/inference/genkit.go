package inference

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitCaller is the production ModelCaller backed by a Genkit instance.
// Model names must be provider-qualified (e.g. "googleai/gemini-2.5-pro").
type GenkitCaller struct {
	g        *genkit.Genkit
	embedder ai.Embedder
}

// NewGenkitCaller wraps a Genkit instance and an embedder registered on it.
func NewGenkitCaller(g *genkit.Genkit, embedder ai.Embedder) *GenkitCaller {
	return &GenkitCaller{g: g, embedder: embedder}
}

// Generate performs one generation call and returns the response text.
func (c *GenkitCaller) Generate(ctx context.Context, req Request) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(req.Model),
		ai.WithPrompt(req.Prompt),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	if req.Temperature > 0 || req.MaxTokens > 0 {
		opts = append(opts, ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     float64(req.Temperature),
			MaxOutputTokens: req.MaxTokens,
		}))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", req.Model, err)
	}

	return resp.Text(), nil
}

// Embed converts text into an embedding vector.
func (c *GenkitCaller) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("generating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrEmptyOutput)
	}

	return resp.Embeddings[0].Embedding, nil
}
