// Package assistant is the session facade over the answer pipeline, tag
// reconciler, re-evaluator, and feedback log. One Session owns one
// knowledge-context snapshot; concurrent users get separate sessions.
package assistant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/lorekeep/lorekeep/internal/answer"
	"github.com/lorekeep/lorekeep/internal/knowledgectx"
	"github.com/lorekeep/lorekeep/internal/reeval"
	"github.com/lorekeep/lorekeep/internal/retrieval"
	"github.com/lorekeep/lorekeep/internal/store"
	"github.com/lorekeep/lorekeep/internal/tags"
)

// QueryPipeline answers one question. *answer.Pipeline satisfies it.
type QueryPipeline interface {
	Answer(ctx context.Context, question string, limit int) (answer.Result, error)
}

// TagReconciler canonicalizes suggested tag names. *tags.Reconciler
// satisfies it.
type TagReconciler interface {
	Reconcile(ctx context.Context, suggested []string) ([]tags.Assignment, error)
}

// Evaluator re-scores articles. *reeval.Evaluator satisfies it.
type Evaluator interface {
	ReEvaluate(ctx context.Context, articleID int64) (reeval.Result, error)
	ReEvaluateRecent(ctx context.Context, n int32) ([]reeval.Result, error)
}

// FeedbackRecorder appends to the feedback event log. *store.Store
// satisfies it.
type FeedbackRecorder interface {
	AppendFeedback(ctx context.Context, ev store.FeedbackEvent) error
}

// ContextLoader supplies the session's knowledge-context snapshot.
// *knowledgectx.Loader satisfies it.
type ContextLoader interface {
	Load(ctx context.Context) (*knowledgectx.Context, error)
}

// QueryResponse is the caller-facing shape of one answered question.
// A failed query carries Success=false and the error message; a successful
// one always carries a fully populated answer, the zero-result case included.
type QueryResponse struct {
	Success    bool
	Error      string
	Answer     answer.StructuredAnswer
	References []retrieval.Reference
}

// Session bundles the assistant's capabilities behind one handle.
type Session struct {
	id         string
	pipeline   QueryPipeline
	reconciler TagReconciler
	evaluator  Evaluator
	feedback   FeedbackRecorder
	knowledge  ContextLoader
	logger     *slog.Logger
}

// New creates a Session with a fresh session id. A nil logger falls back to
// slog.Default().
func New(pipeline QueryPipeline, reconciler TagReconciler, evaluator Evaluator, feedback FeedbackRecorder, knowledge ContextLoader, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:         id,
		pipeline:   pipeline,
		reconciler: reconciler,
		evaluator:  evaluator,
		feedback:   feedback,
		knowledge:  knowledge,
		logger:     logger.With("session_id", id),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// AnswerQuery runs the full answer pipeline and folds any failure into the
// response instead of returning an error: callers always get a QueryResponse.
func (s *Session) AnswerQuery(ctx context.Context, question string, limit int) QueryResponse {
	result, err := s.pipeline.Answer(ctx, question, limit)
	if err != nil {
		s.logger.Error("query failed", "error", err)
		return QueryResponse{Error: err.Error()}
	}
	return QueryResponse{
		Success:    true,
		Answer:     result.Answer,
		References: result.References,
	}
}

// ReconcileTags resolves suggested names to canonical tag assignments.
func (s *Session) ReconcileTags(ctx context.Context, suggested []string) ([]tags.Assignment, error) {
	return s.reconciler.Reconcile(ctx, suggested)
}

// LoadContext returns the session's knowledge-context snapshot, building it
// on first use.
func (s *Session) LoadContext(ctx context.Context) (*knowledgectx.Context, error) {
	return s.knowledge.Load(ctx)
}

// ReEvaluate re-scores a single article.
func (s *Session) ReEvaluate(ctx context.Context, articleID int64) (reeval.Result, error) {
	return s.evaluator.ReEvaluate(ctx, articleID)
}

// ReEvaluateRecent re-scores the n most recent unread articles.
func (s *Session) ReEvaluateRecent(ctx context.Context, n int32) ([]reeval.Result, error) {
	return s.evaluator.ReEvaluateRecent(ctx, n)
}

// RecordFeedback appends one event to the feedback log. Events are
// append-only; the aggregated stats pick them up on the next session.
func (s *Session) RecordFeedback(ctx context.Context, ev store.FeedbackEvent) error {
	return s.feedback.AppendFeedback(ctx, ev)
}
