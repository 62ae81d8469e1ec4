// Package retrieval turns a natural-language query into ranked corpus
// references and renders them into a context document for the reasoning stage.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lorekeep/lorekeep/internal/vector"
)

// Embedder produces the query vector. *inference.Gateway satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs similarity search over the vector index. *vector.Index
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]vector.Hit, error)
}

// Reference is one retrieval result, ordered by descending similarity.
// It lives only for the duration of a single query.
type Reference struct {
	ExternalID string
	ArticleID  int64
	Similarity float64
}

// Retriever embeds queries and searches the vector index.
type Retriever struct {
	embedder Embedder
	searcher Searcher
	logger   *slog.Logger
}

// NewRetriever creates a Retriever. A nil logger falls back to slog.Default().
func NewRetriever(embedder Embedder, searcher Searcher, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{embedder: embedder, searcher: searcher, logger: logger}
}

// Search embeds the query and returns up to limit references in descending
// similarity order. An empty result is a valid outcome, not an error.
// An embedding failure propagates: there is no retrieval without a vector.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]Reference, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.searcher.Search(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	refs := make([]Reference, 0, len(hits))
	for _, h := range hits {
		refs = append(refs, Reference{
			ExternalID: h.ExternalID,
			ArticleID:  h.ArticleID,
			Similarity: h.Similarity,
		})
	}

	r.logger.Debug("retrieval complete", "query_len", len(query), "hits", len(refs))
	return refs, nil
}
