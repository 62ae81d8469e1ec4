package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Validator is implemented by target types that constrain their own shape
// beyond what JSON decoding enforces. A validation failure counts as a
// retryable structuring failure, not a success.
type Validator interface {
	Validate() error
}

// Structure sends content to the structuring model and decodes the output
// into T. Each attempt generates, strips markdown code fences, unmarshals,
// and validates when T implements Validator; a failure at any of those steps
// is retried under the gateway's backoff policy. After exhaustion the last
// error is wrapped with ErrExhausted.
func Structure[T any](ctx context.Context, g *Gateway, system, content string) (T, error) {
	return retry(ctx, g, "structure", func(ctx context.Context) (T, error) {
		var zero T

		text, err := g.caller.Generate(ctx, Request{
			Model:       g.structuring,
			System:      system,
			Prompt:      content,
			Temperature: g.temperature,
			MaxTokens:   g.maxTokens,
		})
		if err != nil {
			return zero, err
		}

		text = strings.TrimSpace(text)
		if text == "" {
			return zero, ErrEmptyOutput
		}
		text = stripCodeFences(text)

		var out T
		if err := json.Unmarshal([]byte(text), &out); err != nil {
			return zero, fmt.Errorf("parsing structured output: %w (raw: %q)", err, truncate(text, 200))
		}

		if v, ok := any(out).(Validator); ok {
			if err := v.Validate(); err != nil {
				return zero, fmt.Errorf("validating structured output: %w", err)
			}
		}

		return out, nil
	})
}

// stripCodeFences removes ```json ... ``` wrapping from model output.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		// Remove opening fence (with optional language tag).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		// Remove closing fence.
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// truncate shortens s to at most n bytes for logging.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
