// Package inference provides the gateway to the three model capabilities the
// assistant depends on: free-form reasoning, schema-constrained structuring,
// and text embedding. Every call is retried with backoff; exhaustion surfaces
// as ErrExhausted, an ordinary error value callers branch on, never a panic.
package inference

import "context"

// Request is one generation request to a model.
type Request struct {
	Model  string // provider-qualified model name
	System string // system prompt
	Prompt string // user content

	// Generation settings; zero values keep the provider defaults.
	Temperature float32
	MaxTokens   int
}

// ModelCaller is the transport seam between the gateway and the model
// provider. The production implementation wraps Genkit; tests substitute a
// mock. Interfaces are defined by the consumer, not the provider.
type ModelCaller interface {
	// Generate performs one generation attempt and returns the raw text.
	Generate(ctx context.Context, req Request) (string, error)

	// Embed converts text into an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)
}
