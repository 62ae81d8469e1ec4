// Package vector implements the vector index on PostgreSQL + pgvector.
// It stores one embedding per indexed article chunk and answers top-k
// nearest-neighbor queries by cosine similarity.
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Dimension is the embedding width the schema is declared with.
// gemini-embedding-001 output is truncated to this size.
const Dimension = 768

// DB is the database seam the index depends on. *pgxpool.Pool satisfies it.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Hit is one nearest-neighbor result. Similarity is cosine similarity in
// [0, 1], higher is closer.
type Hit struct {
	ExternalID string
	ArticleID  int64
	Similarity float64
	Metadata   map[string]string
}

// Index provides upsert and top-k query over the embeddings table.
// Index is safe for concurrent use by multiple goroutines.
type Index struct {
	db     DB
	logger *slog.Logger
}

// New creates an Index. A nil logger falls back to slog.Default().
func New(db DB, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{db: db, logger: logger}
}

// Upsert inserts or replaces the embedding stored under externalID.
// Wider vectors are truncated to the schema dimension; Matryoshka-style
// embedders front-load the signal, so the prefix is usable as-is.
func (ix *Index) Upsert(ctx context.Context, externalID string, articleID int64, embedding []float32, metadata map[string]string) error {
	if len(embedding) > Dimension {
		embedding = embedding[:Dimension]
	}
	if len(embedding) != Dimension {
		return fmt.Errorf("embedding has %d dimensions, schema requires %d", len(embedding), Dimension)
	}

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshaling metadata for %q: %w", externalID, err)
	}

	vec := pgvector.NewVector(embedding)
	_, err = ix.db.Exec(ctx,
		`INSERT INTO embeddings (external_id, article_id, embedding, metadata)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (external_id) DO UPDATE
		 SET article_id = EXCLUDED.article_id,
		     embedding  = EXCLUDED.embedding,
		     metadata   = EXCLUDED.metadata`,
		externalID, articleID, vec, metadataJSON)
	if err != nil {
		return fmt.Errorf("upserting embedding %q: %w", externalID, err)
	}

	ix.logger.Debug("upserted embedding", "external_id", externalID, "article_id", articleID)
	return nil
}

// Search returns the topK nearest neighbors of the query embedding, ordered
// by descending cosine similarity. Zero hits is a valid result.
func (ix *Index) Search(ctx context.Context, embedding []float32, topK int) ([]Hit, error) {
	if len(embedding) > Dimension {
		embedding = embedding[:Dimension]
	}
	if len(embedding) != Dimension {
		return nil, fmt.Errorf("query embedding has %d dimensions, schema requires %d", len(embedding), Dimension)
	}
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}

	vec := pgvector.NewVector(embedding)
	rows, err := ix.db.Query(ctx,
		`SELECT external_id, article_id, 1 - (embedding <=> $1) AS similarity, metadata
		 FROM embeddings
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		vec, topK)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			h            Hit
			metadataJSON []byte
		)
		if err := rows.Scan(&h.ExternalID, &h.ArticleID, &h.Similarity, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &h.Metadata); err != nil {
				ix.logger.Warn("unparsable embedding metadata", "external_id", h.ExternalID, "error", err)
				h.Metadata = map[string]string{}
			}
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}

	return hits, nil
}

// Delete removes the embedding stored under externalID, if any.
func (ix *Index) Delete(ctx context.Context, externalID string) error {
	if _, err := ix.db.Exec(ctx,
		`DELETE FROM embeddings WHERE external_id = $1`, externalID); err != nil {
		return fmt.Errorf("deleting embedding %q: %w", externalID, err)
	}
	return nil
}
