// Package reeval re-scores stored articles against stricter criteria derived
// from the user's accumulated feedback. It only ever lowers scores: a
// re-evaluation that would raise one leaves the record untouched.
package reeval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lorekeep/lorekeep/internal/blob"
	"github.com/lorekeep/lorekeep/internal/knowledgectx"
	"github.com/lorekeep/lorekeep/internal/store"
)

// Threshold tuning driven by the user's upvote ratio. A user who upvotes
// more than half the time gets a harder depth bar; above 0.4 the criteria
// additionally demand original insight.
const (
	strictDepthThreshold  = 80
	defaultDepthThreshold = 60
	strictRatioCutoff     = 0.5
	insightRatioCutoff    = 0.4

	reviewConfidenceFloor = 0.7
)

const evalSystem = `You are a harsh content quality evaluator. You re-score an article
against stricter criteria than its original rating. Be skeptical of borderline
content: when in doubt, score lower. Never raise a score out of generosity.
Respond with a JSON object only, no markdown fences:
{
  "newScore": integer 1-100,
  "newLabel": string,
  "confidence": number 0-1,
  "reasoning": string
}`

// Verdict is the raw structuring-model output for one re-evaluation.
type Verdict struct {
	NewScore   int32   `json:"newScore"`
	NewLabel   string  `json:"newLabel"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

func (v Verdict) Validate() error {
	if v.NewScore < 1 || v.NewScore > 100 {
		return fmt.Errorf("new score %d outside [1,100]", v.NewScore)
	}
	if v.Confidence < 0 || v.Confidence > 1 {
		return fmt.Errorf("confidence %.2f outside [0,1]", v.Confidence)
	}
	return nil
}

// Result is one completed re-evaluation.
type Result struct {
	ArticleID       int64
	PriorScore      int32
	NewScore        int32
	PriorLabel      string
	NewLabel        string
	Confidence      float64
	Reasoning       string
	ShouldDowngrade bool // new score is strictly below the prior
	FlagForReview   bool // confidence below the trust floor
}

// ArticleStore covers the record reads and the score write-back.
// *store.Store satisfies it.
type ArticleStore interface {
	GetArticle(ctx context.Context, id int64) (store.Article, error)
	ListRecentUnread(ctx context.Context, limit int32) ([]store.Article, error)
	UpdateArticle(ctx context.Context, id int64, patch store.ArticlePatch) error
}

// BodyStore serves full article bodies. *blob.Store satisfies it.
type BodyStore interface {
	GetArticleBody(ctx context.Context, url string) ([]byte, error)
}

// ContextLoader supplies the feedback-informed knowledge context.
// *knowledgectx.Loader satisfies it.
type ContextLoader interface {
	Load(ctx context.Context) (*knowledgectx.Context, error)
}

// StructureFunc runs the structuring model with retries, returning a parsed
// Verdict. Wired to inference.Structure in production.
type StructureFunc func(ctx context.Context, system, content string) (Verdict, error)

// Evaluator re-scores articles with feedback-parametrized criteria.
type Evaluator struct {
	articles  ArticleStore
	bodies    BodyStore
	knowledge ContextLoader
	structure StructureFunc
	logger    *slog.Logger
}

// New creates an Evaluator. A nil logger falls back to slog.Default().
func New(articles ArticleStore, bodies BodyStore, knowledge ContextLoader, structure StructureFunc, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		articles:  articles,
		bodies:    bodies,
		knowledge: knowledge,
		structure: structure,
		logger:    logger,
	}
}

// ReEvaluate re-scores one article. The new score and label are written back
// only on a downgrade (status is left unchanged); otherwise the record keeps
// its prior rating and the result is purely informational.
func (e *Evaluator) ReEvaluate(ctx context.Context, articleID int64) (Result, error) {
	article, err := e.articles.GetArticle(ctx, articleID)
	if err != nil {
		return Result{}, fmt.Errorf("load article %d: %w", articleID, err)
	}

	snapshot, err := e.knowledge.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load knowledge context: %w", err)
	}

	content := e.evalContent(ctx, article, snapshot.Stats)
	v, err := e.structure(ctx, evalSystem, content)
	if err != nil {
		return Result{}, fmt.Errorf("re-evaluate article %d: %w", articleID, err)
	}

	var priorScore int32
	if article.Score != nil {
		priorScore = *article.Score
	}

	result := Result{
		ArticleID:       articleID,
		PriorScore:      priorScore,
		NewScore:        v.NewScore,
		PriorLabel:      article.QualityLabel,
		NewLabel:        v.NewLabel,
		Confidence:      v.Confidence,
		Reasoning:       v.Reasoning,
		ShouldDowngrade: v.NewScore < priorScore,
		FlagForReview:   v.Confidence < reviewConfidenceFloor,
	}

	if result.ShouldDowngrade {
		patch := store.ArticlePatch{
			Score:        &v.NewScore,
			QualityLabel: &v.NewLabel,
		}
		if err := e.articles.UpdateArticle(ctx, articleID, patch); err != nil {
			return Result{}, fmt.Errorf("write back score for article %d: %w", articleID, err)
		}
		e.logger.Info("article downgraded",
			"article_id", articleID,
			"prior_score", priorScore,
			"new_score", v.NewScore,
			"flag_for_review", result.FlagForReview)
	}

	return result, nil
}

// ReEvaluateRecent re-scores the n most recent unread articles sequentially.
// Per-article failures are logged and skipped so one bad record does not
// abort the batch; the error count is only reported when nothing succeeded.
func (e *Evaluator) ReEvaluateRecent(ctx context.Context, n int32) ([]Result, error) {
	articles, err := e.articles.ListRecentUnread(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("list recent unread: %w", err)
	}

	results := make([]Result, 0, len(articles))
	var failed int
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := e.ReEvaluate(ctx, a.ID)
		if err != nil {
			failed++
			e.logger.Warn("re-evaluation failed, continuing batch",
				"article_id", a.ID, "error", err)
			continue
		}
		results = append(results, res)
	}

	if len(results) == 0 && failed > 0 {
		return nil, fmt.Errorf("all %d re-evaluations failed", failed)
	}
	return results, nil
}

// evalContent assembles the evaluation prompt: feedback-derived criteria
// followed by the article. The full body comes from the object store when
// available; a missing or unreadable body falls back to the stored summary.
func (e *Evaluator) evalContent(ctx context.Context, article store.Article, stats store.FeedbackStats) string {
	ratio := stats.UpvoteRatio()

	depth := defaultDepthThreshold
	if ratio > strictRatioCutoff {
		depth = strictDepthThreshold
	}

	var sb strings.Builder
	sb.WriteString("Scoring criteria:\n")
	fmt.Fprintf(&sb, "- Minimum acceptable analytical depth: %d/100. Content below this bar must be scored below it.\n", depth)
	if ratio > insightRatioCutoff {
		sb.WriteString("- The article must contain original insight, not just aggregation of known material.\n")
	}
	fmt.Fprintf(&sb, "- The reader's historical upvote ratio is %.2f and their mean article score is %.0f. Judge against that baseline, not a neutral one.\n",
		ratio, stats.MeanScore)

	sb.WriteString("\nArticle:\n")
	if article.Title != nil {
		fmt.Fprintf(&sb, "Title: %s\n", *article.Title)
	}
	fmt.Fprintf(&sb, "Prior score: %s\n", priorScoreLine(article))

	body, err := e.bodies.GetArticleBody(ctx, article.URL)
	switch {
	case err == nil:
		sb.WriteString("\n")
		sb.Write(body)
	case article.Summary != nil && *article.Summary != "":
		if !errors.Is(err, blob.ErrNotFound) {
			e.logger.Warn("article body unavailable, using summary",
				"article_id", article.ID, "error", err)
		}
		sb.WriteString("\nSummary: ")
		sb.WriteString(*article.Summary)
	default:
		e.logger.Warn("article has neither body nor summary", "article_id", article.ID)
		sb.WriteString("\n(no content available)")
	}

	return sb.String()
}

func priorScoreLine(a store.Article) string {
	if a.Score == nil {
		return "unrated"
	}
	if a.QualityLabel != "" {
		return fmt.Sprintf("%d/100 (%s)", *a.Score, a.QualityLabel)
	}
	return fmt.Sprintf("%d/100", *a.Score)
}
