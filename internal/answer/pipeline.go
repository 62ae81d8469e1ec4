package answer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lorekeep/lorekeep/internal/retrieval"
)

// Limit bounds for one query. Out-of-range limits are rejected, not clamped.
const (
	MinLimit = 1
	MaxLimit = 50
)

// ErrInvalidInput marks caller mistakes that are rejected before any
// retrieval or inference happens.
var ErrInvalidInput = errors.New("invalid input")

// state names the pipeline stages, used for logging and failure messages.
type state string

const (
	stateOptimizing      state = "OPTIMIZING"
	stateRetrieving      state = "RETRIEVING"
	stateEmptyResult     state = "EMPTY_RESULT"
	stateContextBuilding state = "CONTEXT_BUILDING"
	stateReasoning       state = "REASONING"
	stateStructuring     state = "STRUCTURING"
	stateDone            state = "DONE"
)

const optimizeSystem = `You rewrite search queries for semantic retrieval.
Strip filler words. Preserve technical terms and proper nouns exactly.
Output 1-2 sentences and nothing else.`

const reasonSystem = `You answer questions strictly from the supplied article context.
Rules:
- Use only information present in the context blocks. Do not fabricate.
- If the context lacks information needed for a complete answer, say so explicitly.
- Cite supporting articles by their numeric id, e.g. [Article 42].
- Write the answer as clear prose.
- When the context is thin or only loosely related, lower your stated confidence.`

const structureSystem = `Convert the analysis below into a JSON object with exactly these fields:
{
  "thinkingProcess": string,
  "answerBody": string,
  "confidenceScore": integer 0-100,
  "citedArticleIds": array of integers,
  "followUpSuggestions": array of exactly 3 strings
}
Respond with the JSON object only, no markdown fences, no commentary.`

const emptyResultBody = `I could not find any articles in your knowledge base related to this question. ` +
	`Try ingesting some articles on the topic first, or rephrase the question with different terms.`

// Reasoner runs the free-form reasoning model. *inference.Gateway satisfies it.
type Reasoner interface {
	Reason(ctx context.Context, system, content string) (string, error)
}

// StructureFunc runs the schema-constrained structuring model, including its
// own retry policy. Wired to inference.Structure in production.
type StructureFunc func(ctx context.Context, system, content string) (StructuredAnswer, error)

// Searcher retrieves ranked references for a query. *retrieval.Retriever
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]retrieval.Reference, error)
}

// ContextBuilder renders references into the reasoning context document.
// *retrieval.ContextBuilder satisfies it.
type ContextBuilder interface {
	Build(ctx context.Context, refs []retrieval.Reference) (string, error)
}

// Result is one completed query: the structured answer plus the raw
// references, so callers can enrich citations.
type Result struct {
	Answer     StructuredAnswer
	References []retrieval.Reference
}

// Pipeline drives one question through optimization, retrieval, context
// construction, reasoning, and structuring. Stages run sequentially; each
// query is independent and holds no state between calls.
type Pipeline struct {
	reasoner  Reasoner
	structure StructureFunc
	retriever Searcher
	builder   ContextBuilder
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline. A nil logger falls back to slog.Default().
func NewPipeline(reasoner Reasoner, structure StructureFunc, retriever Searcher, builder ContextBuilder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		reasoner:  reasoner,
		structure: structure,
		retriever: retriever,
		builder:   builder,
		logger:    logger,
	}
}

// Answer runs the full pipeline for one question.
//
// An out-of-range limit or empty question is rejected immediately. A failed
// query optimization falls back to the raw question. Zero retrieved
// references terminate successfully with a canned zero-confidence answer.
// Only retrieval, context, reasoning, and structuring failures fail the call.
func (p *Pipeline) Answer(ctx context.Context, question string, limit int) (Result, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Result{}, fmt.Errorf("%w: question is empty", ErrInvalidInput)
	}
	if limit < MinLimit || limit > MaxLimit {
		return Result{}, fmt.Errorf("%w: limit %d outside [%d,%d]",
			ErrInvalidInput, limit, MinLimit, MaxLimit)
	}

	query := p.optimizeQuery(ctx, question)

	p.logger.Debug("pipeline stage", "state", stateRetrieving)
	refs, err := p.retriever.Search(ctx, query, limit)
	if err != nil {
		return Result{}, p.fail(stateRetrieving, err)
	}
	if len(refs) == 0 {
		p.logger.Info("no references retrieved, returning canned answer",
			"state", stateEmptyResult)
		return Result{Answer: emptyResultAnswer()}, nil
	}

	p.logger.Debug("pipeline stage", "state", stateContextBuilding, "references", len(refs))
	contextDoc, err := p.builder.Build(ctx, refs)
	if err != nil {
		return Result{}, p.fail(stateContextBuilding, err)
	}

	p.logger.Debug("pipeline stage", "state", stateReasoning)
	analysis, err := p.reasoner.Reason(ctx, reasonSystem, reasoningContent(question, contextDoc))
	if err != nil {
		return Result{}, p.fail(stateReasoning, err)
	}

	p.logger.Debug("pipeline stage", "state", stateStructuring)
	structured, err := p.structure(ctx, structureSystem, analysis)
	if err != nil {
		return Result{}, p.fail(stateStructuring, err)
	}

	structured.CitedArticleIDs = filterCitations(structured.CitedArticleIDs, refs)

	p.logger.Debug("pipeline stage", "state", stateDone,
		"confidence", structured.ConfidenceScore,
		"citations", len(structured.CitedArticleIDs))
	return Result{Answer: structured, References: refs}, nil
}

// optimizeQuery rewrites the question for retrieval. Failure is never fatal:
// the raw question is used unmodified.
func (p *Pipeline) optimizeQuery(ctx context.Context, question string) string {
	p.logger.Debug("pipeline stage", "state", stateOptimizing)

	out, err := p.reasoner.Reason(ctx, optimizeSystem, question)
	if err != nil {
		p.logger.Warn("query optimization failed, using raw question", "error", err)
		return question
	}

	optimized := strings.Trim(strings.TrimSpace(out), "\"'`“”‘’")
	if optimized == "" {
		return question
	}
	return optimized
}

func (p *Pipeline) fail(s state, err error) error {
	p.logger.Error("pipeline failed", "state", s, "error", err)
	return fmt.Errorf("%s: %w", strings.ToLower(string(s)), err)
}

// filterCitations drops any cited id not present in the retrieved set.
// The answer must never cite an article the model was not shown.
func filterCitations(cited []int64, refs []retrieval.Reference) []int64 {
	retrieved := make(map[int64]struct{}, len(refs))
	for _, r := range refs {
		retrieved[r.ArticleID] = struct{}{}
	}

	kept := cited[:0]
	for _, id := range cited {
		if _, ok := retrieved[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}

func reasoningContent(question, contextDoc string) string {
	var sb strings.Builder
	sb.WriteString("Question: ")
	sb.WriteString(question)
	sb.WriteString("\n\nContext:\n")
	sb.WriteString(contextDoc)
	return sb.String()
}

func emptyResultAnswer() StructuredAnswer {
	return StructuredAnswer{
		ThinkingProcess: "No relevant articles were found in the knowledge base for this question.",
		AnswerBody:      emptyResultBody,
		ConfidenceScore: 0,
		CitedArticleIDs: []int64{},
		FollowUpSuggestions: []string{
			"Ingest a few articles on this topic and ask again",
			"Rephrase the question using more specific terms",
			"Ask what topics the knowledge base currently covers",
		},
	}
}
