package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/log"
	"github.com/lorekeep/lorekeep/internal/store"
)

type fakeArticles struct {
	articles map[int64]store.Article
	err      error
}

func (f *fakeArticles) GetArticle(ctx context.Context, id int64) (store.Article, error) {
	if f.err != nil {
		return store.Article{}, f.err
	}
	a, ok := f.articles[id]
	if !ok {
		return store.Article{}, store.ErrNotFound
	}
	return a, nil
}

func strPtr(s string) *string { return &s }

func int32Ptr(n int32) *int32 { return &n }

func TestBuildFormatsFullArticle(t *testing.T) {
	t.Parallel()

	published := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	articles := &fakeArticles{articles: map[int64]store.Article{
		42: {
			ID:           42,
			Title:        strPtr("Vector Databases in Production"),
			Author:       strPtr("Ada Park"),
			PublishedAt:  &published,
			Summary:      strPtr("A field report."),
			QualityLabel: "excellent",
			Score:        int32Ptr(88),
			Tags: []store.Tag{
				{Name: "databases"},
				{Name: "vectors"},
			},
		},
	}}
	b := NewContextBuilder(articles, log.NewNop())

	doc, err := b.Build(context.Background(), []Reference{
		{ExternalID: "x", ArticleID: 42, Similarity: 0.915},
	})
	require.NoError(t, err)

	assert.Contains(t, doc, "[Article 42] (similarity 91.5%)")
	assert.Contains(t, doc, "Title: Vector Databases in Production")
	assert.Contains(t, doc, "Author: Ada Park")
	assert.Contains(t, doc, "Published: 2025-03-14")
	assert.Contains(t, doc, "Tags: databases, vectors")
	assert.Contains(t, doc, "Summary: A field report.")
	assert.Contains(t, doc, "Quality: excellent")
	assert.Contains(t, doc, "Score: 88/100")
}

func TestBuildUsesFallbacksForMissingFields(t *testing.T) {
	t.Parallel()

	articles := &fakeArticles{articles: map[int64]store.Article{
		7: {ID: 7},
	}}
	b := NewContextBuilder(articles, log.NewNop())

	doc, err := b.Build(context.Background(), []Reference{
		{ArticleID: 7, Similarity: 0.5},
	})
	require.NoError(t, err)

	assert.Contains(t, doc, "Title: Untitled")
	assert.Contains(t, doc, "Author: Unknown author")
	assert.Contains(t, doc, "Published: Unknown date")
	assert.Contains(t, doc, "Tags: None")
	assert.Contains(t, doc, "Summary: No summary available")
	assert.Contains(t, doc, "Quality: Not yet rated")
	assert.Contains(t, doc, "Score: Unrated")
}

func TestBuildPreservesRankOrder(t *testing.T) {
	t.Parallel()

	articles := &fakeArticles{articles: map[int64]store.Article{}}
	refs := make([]Reference, 8)
	for i := range refs {
		id := int64(i + 1)
		articles.articles[id] = store.Article{ID: id, Title: strPtr(fmt.Sprintf("Article %d", id))}
		refs[i] = Reference{ArticleID: id, Similarity: 0.91 - float64(i)*0.07}
	}
	b := NewContextBuilder(articles, log.NewNop())

	doc, err := b.Build(context.Background(), refs)
	require.NoError(t, err)

	// The blocks must appear in descending-similarity input order.
	lastIdx := -1
	for _, ref := range refs {
		marker := fmt.Sprintf("[Article %d]", ref.ArticleID)
		idx := strings.Index(doc, marker)
		require.NotEqual(t, -1, idx, "missing block for %s", marker)
		assert.Greater(t, idx, lastIdx, "%s out of rank order", marker)
		lastIdx = idx
	}
}

func TestBuildSkipsMissingRecords(t *testing.T) {
	t.Parallel()

	articles := &fakeArticles{articles: map[int64]store.Article{
		1: {ID: 1, Title: strPtr("kept")},
		3: {ID: 3, Title: strPtr("also kept")},
	}}
	b := NewContextBuilder(articles, log.NewNop())

	doc, err := b.Build(context.Background(), []Reference{
		{ArticleID: 1, Similarity: 0.9},
		{ArticleID: 2, Similarity: 0.8}, // stale index entry
		{ArticleID: 3, Similarity: 0.7},
	})
	require.NoError(t, err)

	assert.Contains(t, doc, "[Article 1]")
	assert.NotContains(t, doc, "[Article 2]")
	assert.Contains(t, doc, "[Article 3]")
	assert.Equal(t, 2, strings.Count(doc, "[Article "))
}

func TestBuildPropagatesStoreFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection reset")
	b := NewContextBuilder(&fakeArticles{err: boom}, log.NewNop())

	_, err := b.Build(context.Background(), []Reference{{ArticleID: 1}})
	assert.ErrorIs(t, err, boom)
}

func TestBuildEmptyReferences(t *testing.T) {
	t.Parallel()

	b := NewContextBuilder(&fakeArticles{}, log.NewNop())

	doc, err := b.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, doc)
}
