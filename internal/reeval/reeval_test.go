package reeval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/blob"
	"github.com/lorekeep/lorekeep/internal/knowledgectx"
	"github.com/lorekeep/lorekeep/internal/log"
	"github.com/lorekeep/lorekeep/internal/store"
)

type fakeArticleStore struct {
	articles map[int64]store.Article
	getErr   map[int64]error
	recent   []store.Article
	listErr  error

	updates   []store.ArticlePatch
	updateIDs []int64
	updateErr error
}

func (f *fakeArticleStore) GetArticle(ctx context.Context, id int64) (store.Article, error) {
	if err := f.getErr[id]; err != nil {
		return store.Article{}, err
	}
	a, ok := f.articles[id]
	if !ok {
		return store.Article{}, store.ErrNotFound
	}
	return a, nil
}

func (f *fakeArticleStore) ListRecentUnread(ctx context.Context, limit int32) ([]store.Article, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if int(limit) < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeArticleStore) UpdateArticle(ctx context.Context, id int64, patch store.ArticlePatch) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updateIDs = append(f.updateIDs, id)
	f.updates = append(f.updates, patch)
	return nil
}

type fakeBodies struct {
	bodies map[string][]byte
}

func (f *fakeBodies) GetArticleBody(ctx context.Context, url string) ([]byte, error) {
	body, ok := f.bodies[url]
	if !ok {
		return nil, blob.ErrNotFound
	}
	return body, nil
}

type fakeKnowledge struct {
	stats store.FeedbackStats
	err   error
}

func (f *fakeKnowledge) Load(ctx context.Context) (*knowledgectx.Context, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &knowledgectx.Context{Stats: f.stats}, nil
}

func structureFixed(v Verdict, err error, gotContent *string) StructureFunc {
	return func(ctx context.Context, system, content string) (Verdict, error) {
		if gotContent != nil {
			*gotContent = content
		}
		return v, err
	}
}

func int32Ptr(n int32) *int32 { return &n }

func strPtr(s string) *string { return &s }

func scoredArticle(id int64, score int32) store.Article {
	return store.Article{
		ID:           id,
		URL:          "https://example.com/a",
		Title:        strPtr("Some Article"),
		Summary:      strPtr("a summary"),
		Score:        int32Ptr(score),
		QualityLabel: "good",
		Status:       store.StatusUnread,
	}
}

func TestReEvaluateDowngradeWritesBack(t *testing.T) {
	t.Parallel()

	articles := &fakeArticleStore{articles: map[int64]store.Article{
		1: scoredArticle(1, 90),
	}}
	e := New(articles, &fakeBodies{}, &fakeKnowledge{},
		structureFixed(Verdict{NewScore: 60, NewLabel: "mediocre", Confidence: 0.5}, nil, nil),
		log.NewNop())

	res, err := e.ReEvaluate(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, res.ShouldDowngrade)
	assert.True(t, res.FlagForReview, "confidence 0.5 is below the trust floor")
	assert.Equal(t, int32(90), res.PriorScore)
	assert.Equal(t, int32(60), res.NewScore)
	assert.Equal(t, "good", res.PriorLabel)
	assert.Equal(t, "mediocre", res.NewLabel)

	require.Len(t, articles.updates, 1)
	patch := articles.updates[0]
	require.NotNil(t, patch.Score)
	assert.Equal(t, int32(60), *patch.Score)
	require.NotNil(t, patch.QualityLabel)
	assert.Equal(t, "mediocre", *patch.QualityLabel)
	assert.Nil(t, patch.Status, "status must be left unchanged")
	assert.Nil(t, patch.Title)
	assert.Nil(t, patch.Summary)
}

func TestReEvaluateHigherScoreDoesNotWrite(t *testing.T) {
	t.Parallel()

	articles := &fakeArticleStore{articles: map[int64]store.Article{
		1: scoredArticle(1, 50),
	}}
	e := New(articles, &fakeBodies{}, &fakeKnowledge{},
		structureFixed(Verdict{NewScore: 80, NewLabel: "better", Confidence: 0.9}, nil, nil),
		log.NewNop())

	res, err := e.ReEvaluate(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, res.ShouldDowngrade)
	assert.False(t, res.FlagForReview)
	assert.Empty(t, articles.updates, "no write-back without a downgrade")
}

func TestReEvaluateEqualScoreDoesNotWrite(t *testing.T) {
	t.Parallel()

	articles := &fakeArticleStore{articles: map[int64]store.Article{
		1: scoredArticle(1, 70),
	}}
	e := New(articles, &fakeBodies{}, &fakeKnowledge{},
		structureFixed(Verdict{NewScore: 70, Confidence: 0.8}, nil, nil),
		log.NewNop())

	res, err := e.ReEvaluate(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, res.ShouldDowngrade)
	assert.Empty(t, articles.updates)
}

func TestReEvaluateReviewFlagBoundary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		confidence float64
		want       bool
	}{
		{0.69, true},
		{0.7, false},
		{0.71, false},
	}
	for _, tt := range tests {
		articles := &fakeArticleStore{articles: map[int64]store.Article{
			1: scoredArticle(1, 50),
		}}
		e := New(articles, &fakeBodies{}, &fakeKnowledge{},
			structureFixed(Verdict{NewScore: 55, Confidence: tt.confidence}, nil, nil),
			log.NewNop())

		res, err := e.ReEvaluate(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, tt.want, res.FlagForReview, "confidence %.2f", tt.confidence)
	}
}

func TestEvalCriteriaFollowUpvoteRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		up, down    int64
		wantDepth   string
		wantInsight bool
	}{
		{"low ratio keeps default depth", 1, 9, "60/100", false},
		{"mid ratio enables insight only", 9, 11, "60/100", true}, // 0.45
		{"high ratio raises the bar", 3, 1, "80/100", true},       // 0.75
		{"exactly half keeps default depth", 5, 5, "60/100", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			articles := &fakeArticleStore{articles: map[int64]store.Article{
				1: scoredArticle(1, 50),
			}}
			knowledge := &fakeKnowledge{stats: store.FeedbackStats{
				KindCounts: map[store.FeedbackKind]int64{
					store.FeedbackUpvote:   tt.up,
					store.FeedbackDownvote: tt.down,
				},
			}}

			var gotContent string
			e := New(articles, &fakeBodies{}, knowledge,
				structureFixed(Verdict{NewScore: 40, Confidence: 0.8}, nil, &gotContent),
				log.NewNop())

			_, err := e.ReEvaluate(context.Background(), 1)
			require.NoError(t, err)

			assert.Contains(t, gotContent, tt.wantDepth)
			if tt.wantInsight {
				assert.Contains(t, gotContent, "original insight")
			} else {
				assert.NotContains(t, gotContent, "original insight")
			}
		})
	}
}

func TestEvalContentPrefersStoredBody(t *testing.T) {
	t.Parallel()

	articles := &fakeArticleStore{articles: map[int64]store.Article{
		1: scoredArticle(1, 50),
	}}
	bodies := &fakeBodies{bodies: map[string][]byte{
		"https://example.com/a": []byte("the full article body text"),
	}}

	var gotContent string
	e := New(articles, bodies, &fakeKnowledge{},
		structureFixed(Verdict{NewScore: 40, Confidence: 0.8}, nil, &gotContent),
		log.NewNop())

	_, err := e.ReEvaluate(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, gotContent, "the full article body text")
	assert.NotContains(t, gotContent, "Summary: a summary")
}

func TestEvalContentFallsBackToSummary(t *testing.T) {
	t.Parallel()

	articles := &fakeArticleStore{articles: map[int64]store.Article{
		1: scoredArticle(1, 50),
	}}

	var gotContent string
	e := New(articles, &fakeBodies{}, &fakeKnowledge{},
		structureFixed(Verdict{NewScore: 40, Confidence: 0.8}, nil, &gotContent),
		log.NewNop())

	_, err := e.ReEvaluate(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, gotContent, "Summary: a summary")
}

func TestReEvaluateMissingArticle(t *testing.T) {
	t.Parallel()

	e := New(&fakeArticleStore{}, &fakeBodies{}, &fakeKnowledge{},
		structureFixed(Verdict{}, nil, nil), log.NewNop())

	_, err := e.ReEvaluate(context.Background(), 404)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestReEvaluateRecentIsolatesFailures(t *testing.T) {
	t.Parallel()

	articles := &fakeArticleStore{
		articles: map[int64]store.Article{
			1: scoredArticle(1, 80),
			3: scoredArticle(3, 70),
		},
		getErr: map[int64]error{2: errors.New("corrupt row")},
		recent: []store.Article{
			scoredArticle(1, 80),
			scoredArticle(2, 90),
			scoredArticle(3, 70),
		},
	}

	e := New(articles, &fakeBodies{}, &fakeKnowledge{},
		structureFixed(Verdict{NewScore: 50, Confidence: 0.9}, nil, nil),
		log.NewNop())

	results, err := e.ReEvaluateRecent(context.Background(), 10)
	require.NoError(t, err, "one bad record must not abort the batch")
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ArticleID)
	assert.Equal(t, int64(3), results[1].ArticleID)
}

func TestReEvaluateRecentAllFailed(t *testing.T) {
	t.Parallel()

	articles := &fakeArticleStore{
		getErr: map[int64]error{1: errors.New("bad"), 2: errors.New("bad")},
		recent: []store.Article{{ID: 1}, {ID: 2}},
	}
	e := New(articles, &fakeBodies{}, &fakeKnowledge{},
		structureFixed(Verdict{}, nil, nil), log.NewNop())

	_, err := e.ReEvaluateRecent(context.Background(), 10)
	assert.Error(t, err)
}

func TestReEvaluateRecentEmptyCorpus(t *testing.T) {
	t.Parallel()

	e := New(&fakeArticleStore{}, &fakeBodies{}, &fakeKnowledge{},
		structureFixed(Verdict{}, nil, nil), log.NewNop())

	results, err := e.ReEvaluateRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVerdictValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Verdict{NewScore: 50, Confidence: 0.5}.Validate())
	assert.Error(t, Verdict{NewScore: 0, Confidence: 0.5}.Validate())
	assert.Error(t, Verdict{NewScore: 101, Confidence: 0.5}.Validate())
	assert.Error(t, Verdict{NewScore: 50, Confidence: 1.5}.Validate())
	assert.Error(t, Verdict{NewScore: 50, Confidence: -0.1}.Validate())
}
