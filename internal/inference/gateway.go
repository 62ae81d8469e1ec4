package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrExhausted indicates all retry attempts failed. The wrapped chain carries
// the last underlying error.
var ErrExhausted = errors.New("inference attempts exhausted")

// ErrEmptyOutput indicates the model returned no usable text.
var ErrEmptyOutput = errors.New("model returned empty output")

// Config configures the gateway.
type Config struct {
	// ReasoningModel handles free-form interpretive calls.
	ReasoningModel string

	// StructuringModel handles schema-constrained output. Kept separate from
	// the reasoning model so format-compliance failures retry independently
	// of reasoning failures.
	StructuringModel string

	// Attempts is the maximum number of attempts per operation (default 3).
	Attempts int

	// BackoffBase is the unit of the backoff schedule: the wait before retry
	// n is BackoffBase * n (default 1s).
	BackoffBase time.Duration

	// RequestsPerSecond rate-limits model calls. Zero applies the default of
	// 10 requests/sec with a burst of 30; a negative value disables limiting.
	RequestsPerSecond float64

	// Temperature and MaxTokens are stamped onto every generation request.
	// Zero values leave the provider defaults in place.
	Temperature float32
	MaxTokens   int
}

// Default rate limit: 10 requests/sec sustained, burst of 30.
const (
	defaultRequestsPerSecond = 10
	defaultBurst             = 30
)

// Gateway wraps a ModelCaller with retry, linear backoff, and rate limiting.
// Gateway is safe for concurrent use by multiple goroutines.
type Gateway struct {
	caller      ModelCaller
	reasoning   string
	structuring string
	attempts    int
	backoffBase time.Duration
	limiter     *rate.Limiter
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// New creates a Gateway. A nil logger falls back to slog.Default().
func New(caller ModelCaller, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 3
	}
	backoff := cfg.BackoffBase
	if backoff <= 0 {
		backoff = time.Second
	}

	var limiter *rate.Limiter
	switch {
	case cfg.RequestsPerSecond > 0:
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), defaultBurst)
	case cfg.RequestsPerSecond == 0:
		limiter = rate.NewLimiter(defaultRequestsPerSecond, defaultBurst)
	}

	return &Gateway{
		caller:      caller,
		reasoning:   cfg.ReasoningModel,
		structuring: cfg.StructuringModel,
		attempts:    attempts,
		backoffBase: backoff,
		limiter:     limiter,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}
}

// Reason sends content to the reasoning model under the given system prompt
// and returns the trimmed text output. Empty output counts as a failure and
// is retried like any other.
func (g *Gateway) Reason(ctx context.Context, system, content string) (string, error) {
	return retry(ctx, g, "reason", func(ctx context.Context) (string, error) {
		text, err := g.caller.Generate(ctx, Request{
			Model:       g.reasoning,
			System:      system,
			Prompt:      content,
			Temperature: g.temperature,
			MaxTokens:   g.maxTokens,
		})
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return "", ErrEmptyOutput
		}
		return text, nil
	})
}

// Embed converts text into an embedding vector, retrying on failure.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	return retry(ctx, g, "embed", func(ctx context.Context) ([]float32, error) {
		vec, err := g.caller.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if len(vec) == 0 {
			return nil, ErrEmptyOutput
		}
		return vec, nil
	})
}

// retry runs op up to g.attempts times with linear backoff: the wait before
// retry n is backoffBase * n. Every failure is considered retryable; model
// providers surface transient and permanent errors indistinguishably, and a
// bounded number of wasted attempts is cheaper than a missed recovery.
// After exhaustion the last error is wrapped with ErrExhausted.
func retry[T any](ctx context.Context, g *Gateway, op string, fn func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	start := time.Now()

	for attempt := 1; attempt <= g.attempts; attempt++ {
		if attempt > 1 {
			// Wait base * retryIndex before each retry.
			delay := g.backoffBase * time.Duration(attempt-1)
			g.logger.Debug("retrying after error",
				"op", op,
				"attempt", attempt,
				"delay", delay,
				"elapsed", time.Since(start),
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return zero, fmt.Errorf("%s canceled during retry: %w", op, ctx.Err())
			case <-time.After(delay):
			}
		}

		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return zero, fmt.Errorf("%s rate limit wait: %w", op, err)
			}
		}

		result, err := fn(ctx)
		if err == nil {
			g.logger.Debug("inference call succeeded",
				"op", op,
				"attempts", attempt,
				"elapsed", time.Since(start),
			)
			return result, nil
		}
		lastErr = err
	}

	return zero, fmt.Errorf("%s after %d attempts (elapsed: %v): %w: %w",
		op, g.attempts, time.Since(start), ErrExhausted, lastErr)
}
