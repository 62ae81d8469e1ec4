// Package answer runs the multi-stage RAG pipeline that turns a user
// question into a structured, citation-backed answer.
package answer

import (
	"errors"
	"fmt"
)

// followUpCount is the exact number of follow-up suggestions an answer
// carries, populated or canned alike.
const followUpCount = 3

// StructuredAnswer is the final payload of one answered query.
type StructuredAnswer struct {
	ThinkingProcess     string   `json:"thinkingProcess"`
	AnswerBody          string   `json:"answerBody"`
	ConfidenceScore     int      `json:"confidenceScore"`
	CitedArticleIDs     []int64  `json:"citedArticleIds"`
	FollowUpSuggestions []string `json:"followUpSuggestions"`
}

// Validate enforces the structuring schema. The inference layer calls it
// after unmarshalling, so a non-conforming model response is retried rather
// than returned.
func (a StructuredAnswer) Validate() error {
	if a.AnswerBody == "" {
		return errors.New("answer body is empty")
	}
	if a.ConfidenceScore < 0 || a.ConfidenceScore > 100 {
		return fmt.Errorf("confidence score %d outside [0,100]", a.ConfidenceScore)
	}
	if len(a.FollowUpSuggestions) != followUpCount {
		return fmt.Errorf("expected %d follow-up suggestions, got %d",
			followUpCount, len(a.FollowUpSuggestions))
	}
	return nil
}
