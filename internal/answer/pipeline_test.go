package answer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorekeep/lorekeep/internal/log"
	"github.com/lorekeep/lorekeep/internal/retrieval"
)

// fakeReasoner scripts responses per call: the first call is always the
// query optimizer, the second the reasoning stage.
type fakeReasoner struct {
	outputs []string
	errs    []error
	calls   int
	systems []string
	inputs  []string
}

func (f *fakeReasoner) Reason(ctx context.Context, system, content string) (string, error) {
	i := f.calls
	f.calls++
	f.systems = append(f.systems, system)
	f.inputs = append(f.inputs, content)
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var out string
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	return out, err
}

type fakeSearch struct {
	refs     []retrieval.Reference
	err      error
	calls    int
	gotQuery string
	gotLimit int
}

func (f *fakeSearch) Search(ctx context.Context, query string, limit int) ([]retrieval.Reference, error) {
	f.calls++
	f.gotQuery = query
	f.gotLimit = limit
	return f.refs, f.err
}

type fakeBuilder struct {
	doc     string
	err     error
	gotRefs []retrieval.Reference
}

func (f *fakeBuilder) Build(ctx context.Context, refs []retrieval.Reference) (string, error) {
	f.gotRefs = refs
	return f.doc, f.err
}

func validAnswer() StructuredAnswer {
	return StructuredAnswer{
		ThinkingProcess:     "considered the context",
		AnswerBody:          "the answer",
		ConfidenceScore:     80,
		CitedArticleIDs:     []int64{1},
		FollowUpSuggestions: []string{"a", "b", "c"},
	}
}

func structureReturning(ans StructuredAnswer, err error, calls *int) StructureFunc {
	return func(ctx context.Context, system, content string) (StructuredAnswer, error) {
		if calls != nil {
			*calls++
		}
		return ans, err
	}
}

func refsDescending(n int) []retrieval.Reference {
	refs := make([]retrieval.Reference, n)
	for i := range refs {
		refs[i] = retrieval.Reference{
			ExternalID: fmt.Sprintf("ext-%d", i+1),
			ArticleID:  int64(i + 1),
			Similarity: 0.91 - float64(i)*0.073,
		}
	}
	return refs
}

func TestAnswerRejectsInvalidLimit(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{0, -1, 51, 100} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			t.Parallel()

			searcher := &fakeSearch{}
			p := NewPipeline(&fakeReasoner{}, structureReturning(validAnswer(), nil, nil),
				searcher, &fakeBuilder{}, log.NewNop())

			_, err := p.Answer(context.Background(), "question", limit)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Zero(t, searcher.calls, "retrieval must not run for an invalid limit")
		})
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	t.Parallel()

	p := NewPipeline(&fakeReasoner{}, structureReturning(validAnswer(), nil, nil),
		&fakeSearch{}, &fakeBuilder{}, log.NewNop())

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := p.Answer(context.Background(), q, 5)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestAnswerEmptyRetrievalReturnsCannedAnswer(t *testing.T) {
	t.Parallel()

	reasoner := &fakeReasoner{outputs: []string{"optimized"}}
	var structureCalls int
	p := NewPipeline(reasoner, structureReturning(validAnswer(), nil, &structureCalls),
		&fakeSearch{}, &fakeBuilder{}, log.NewNop())

	result, err := p.Answer(context.Background(), "anything relevant?", 5)
	require.NoError(t, err, "zero retrieval results are a successful outcome")

	assert.Equal(t, 0, result.Answer.ConfidenceScore)
	assert.Empty(t, result.Answer.CitedArticleIDs)
	assert.Len(t, result.Answer.FollowUpSuggestions, 3)
	assert.NotEmpty(t, result.Answer.AnswerBody)
	assert.Empty(t, result.References)

	assert.Equal(t, 0, structureCalls, "structuring stage must not run")
	assert.Equal(t, 1, reasoner.calls, "only the optimizer may call the reasoning model")
}

func TestAnswerOptimizerFailureFallsBackToRawQuestion(t *testing.T) {
	t.Parallel()

	reasoner := &fakeReasoner{errs: []error{errors.New("all attempts failed")}}
	searcher := &fakeSearch{}
	p := NewPipeline(reasoner, structureReturning(validAnswer(), nil, nil),
		searcher, &fakeBuilder{}, log.NewNop())

	_, err := p.Answer(context.Background(), "What are the AI trends?", 5)
	require.NoError(t, err)
	assert.Equal(t, "What are the AI trends?", searcher.gotQuery,
		"retrieval must use the unmodified question after optimizer failure")
}

func TestAnswerOptimizerOutputIsQuoteStripped(t *testing.T) {
	t.Parallel()

	reasoner := &fakeReasoner{outputs: []string{`  "AI trends 2026"  `, "analysis"}}
	searcher := &fakeSearch{refs: refsDescending(1)}
	p := NewPipeline(reasoner, structureReturning(validAnswer(), nil, nil),
		searcher, &fakeBuilder{doc: "ctx"}, log.NewNop())

	_, err := p.Answer(context.Background(), "question", 5)
	require.NoError(t, err)
	assert.Equal(t, "AI trends 2026", searcher.gotQuery)
}

func TestAnswerEmptyOptimizerOutputFallsBack(t *testing.T) {
	t.Parallel()

	reasoner := &fakeReasoner{outputs: []string{`""`, "analysis"}}
	searcher := &fakeSearch{refs: refsDescending(1)}
	p := NewPipeline(reasoner, structureReturning(validAnswer(), nil, nil),
		searcher, &fakeBuilder{doc: "ctx"}, log.NewNop())

	_, err := p.Answer(context.Background(), "original question", 5)
	require.NoError(t, err)
	assert.Equal(t, "original question", searcher.gotQuery)
}

func TestAnswerFullPipeline(t *testing.T) {
	t.Parallel()

	refs := refsDescending(8)
	reasoner := &fakeReasoner{outputs: []string{"ai trends", "long analysis citing articles"}}
	searcher := &fakeSearch{refs: refs}
	builder := &fakeBuilder{doc: "context document"}

	ans := validAnswer()
	ans.CitedArticleIDs = []int64{1, 3, 8}
	p := NewPipeline(reasoner, structureReturning(ans, nil, nil),
		searcher, builder, log.NewNop())

	result, err := p.Answer(context.Background(), "What are the AI trends?", 8)
	require.NoError(t, err)

	assert.Equal(t, refs, builder.gotRefs, "builder must see references in rank order")
	assert.Equal(t, refs, result.References)
	assert.Equal(t, []int64{1, 3, 8}, result.Answer.CitedArticleIDs)
	assert.Equal(t, 8, searcher.gotLimit)

	// The reasoning input carries both the question and the context document.
	require.Equal(t, 2, reasoner.calls)
	assert.Contains(t, reasoner.inputs[1], "What are the AI trends?")
	assert.Contains(t, reasoner.inputs[1], "context document")
}

func TestAnswerFiltersCitationsOutsideRetrievedSet(t *testing.T) {
	t.Parallel()

	refs := refsDescending(3)
	ans := validAnswer()
	ans.CitedArticleIDs = []int64{2, 99, 3, 1000}

	p := NewPipeline(&fakeReasoner{outputs: []string{"q", "analysis"}},
		structureReturning(ans, nil, nil),
		&fakeSearch{refs: refs}, &fakeBuilder{doc: "ctx"}, log.NewNop())

	result, err := p.Answer(context.Background(), "question", 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, result.Answer.CitedArticleIDs,
		"cited ids must be a subset of the retrieved set")
}

func TestAnswerRetrievalFailureFailsPipeline(t *testing.T) {
	t.Parallel()

	boom := errors.New("index unreachable")
	p := NewPipeline(&fakeReasoner{outputs: []string{"q"}},
		structureReturning(validAnswer(), nil, nil),
		&fakeSearch{err: boom}, &fakeBuilder{}, log.NewNop())

	_, err := p.Answer(context.Background(), "question", 5)
	assert.ErrorIs(t, err, boom)
}

func TestAnswerReasoningFailureFailsPipeline(t *testing.T) {
	t.Parallel()

	boom := errors.New("model down")
	reasoner := &fakeReasoner{
		outputs: []string{"optimized", ""},
		errs:    []error{nil, boom},
	}
	p := NewPipeline(reasoner, structureReturning(validAnswer(), nil, nil),
		&fakeSearch{refs: refsDescending(1)}, &fakeBuilder{doc: "ctx"}, log.NewNop())

	_, err := p.Answer(context.Background(), "question", 5)
	assert.ErrorIs(t, err, boom)
}

func TestAnswerStructuringFailureFailsPipeline(t *testing.T) {
	t.Parallel()

	boom := errors.New("schema never satisfied")
	p := NewPipeline(&fakeReasoner{outputs: []string{"q", "analysis"}},
		structureReturning(StructuredAnswer{}, boom, nil),
		&fakeSearch{refs: refsDescending(1)}, &fakeBuilder{doc: "ctx"}, log.NewNop())

	_, err := p.Answer(context.Background(), "question", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestStructuredAnswerValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*StructuredAnswer)
		wantErr bool
	}{
		{"valid", func(a *StructuredAnswer) {}, false},
		{"empty body", func(a *StructuredAnswer) { a.AnswerBody = "" }, true},
		{"confidence too high", func(a *StructuredAnswer) { a.ConfidenceScore = 101 }, true},
		{"confidence negative", func(a *StructuredAnswer) { a.ConfidenceScore = -1 }, true},
		{"two follow-ups", func(a *StructuredAnswer) { a.FollowUpSuggestions = []string{"a", "b"} }, true},
		{"four follow-ups", func(a *StructuredAnswer) { a.FollowUpSuggestions = []string{"a", "b", "c", "d"} }, true},
		{"zero confidence ok", func(a *StructuredAnswer) { a.ConfidenceScore = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a := validAnswer()
			tt.mutate(&a)
			err := a.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
