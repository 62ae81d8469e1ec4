package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/lorekeep/lorekeep/internal/store"
)

// Field fallbacks used when an article record is missing optional data.
const (
	fallbackTitle   = "Untitled"
	fallbackAuthor  = "Unknown author"
	fallbackDate    = "Unknown date"
	fallbackTags    = "None"
	fallbackSummary = "No summary available"
	fallbackLabel   = "Not yet rated"
	fallbackScore   = "Unrated"
)

// ArticleGetter loads full article records with their tags.
// *store.Store satisfies it.
type ArticleGetter interface {
	GetArticle(ctx context.Context, id int64) (store.Article, error)
}

// ContextBuilder renders retrieved references into the text document handed
// to the reasoning model.
type ContextBuilder struct {
	articles ArticleGetter
	logger   *slog.Logger
}

// NewContextBuilder creates a ContextBuilder. A nil logger falls back to
// slog.Default().
func NewContextBuilder(articles ArticleGetter, logger *slog.Logger) *ContextBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextBuilder{articles: articles, logger: logger}
}

// Build fetches the record behind each reference and formats one block per
// surviving reference, joined by blank lines in retrieval-rank order. Rank
// order is load-bearing: the reasoning stage reads it as relative trust and
// cites by the ids printed here.
//
// Records are fetched concurrently; a reference whose record no longer
// exists is logged and skipped, never fatal. A stale index entry must not
// abort the batch.
func (b *ContextBuilder) Build(ctx context.Context, refs []Reference) (string, error) {
	blocks := make([]string, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			article, err := b.articles.GetArticle(gctx, ref.ArticleID)
			if errors.Is(err, store.ErrNotFound) {
				b.logger.Warn("skipping stale reference",
					"external_id", ref.ExternalID, "article_id", ref.ArticleID)
				return nil
			}
			if err != nil {
				return fmt.Errorf("load article %d: %w", ref.ArticleID, err)
			}
			blocks[i] = formatBlock(ref, article)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	kept := blocks[:0]
	for _, block := range blocks {
		if block != "" {
			kept = append(kept, block)
		}
	}
	return strings.Join(kept, "\n\n"), nil
}

func formatBlock(ref Reference, a store.Article) string {
	title := fallbackTitle
	if a.Title != nil && *a.Title != "" {
		title = *a.Title
	}
	author := fallbackAuthor
	if a.Author != nil && *a.Author != "" {
		author = *a.Author
	}
	published := fallbackDate
	if a.PublishedAt != nil {
		published = a.PublishedAt.Format("2006-01-02")
	}
	tags := fallbackTags
	if len(a.Tags) > 0 {
		names := make([]string, len(a.Tags))
		for i, t := range a.Tags {
			names[i] = t.Name
		}
		tags = strings.Join(names, ", ")
	}
	summary := fallbackSummary
	if a.Summary != nil && *a.Summary != "" {
		summary = *a.Summary
	}
	label := fallbackLabel
	if a.QualityLabel != "" {
		label = a.QualityLabel
	}
	score := fallbackScore
	if a.Score != nil {
		score = fmt.Sprintf("%d/100", *a.Score)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[Article %d] (similarity %.1f%%)\n", a.ID, ref.Similarity*100)
	fmt.Fprintf(&sb, "Title: %s\n", title)
	fmt.Fprintf(&sb, "Author: %s\n", author)
	fmt.Fprintf(&sb, "Published: %s\n", published)
	fmt.Fprintf(&sb, "Tags: %s\n", tags)
	fmt.Fprintf(&sb, "Summary: %s\n", summary)
	fmt.Fprintf(&sb, "Quality: %s\n", label)
	fmt.Fprintf(&sb, "Score: %s", score)
	return sb.String()
}
