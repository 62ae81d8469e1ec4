package store

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound indicates the requested record does not exist.
// Callers skip or branch on it with errors.Is; a stale vector-index entry
// pointing at a deleted article is expected, not exceptional.
var ErrNotFound = errors.New("record not found")

// ErrInvalidFeedbackKind rejects feedback events with an unknown kind before
// they reach the append-only log.
var ErrInvalidFeedbackKind = errors.New("invalid feedback kind")

// Status is the lifecycle state of an article.
type Status string

// Article lifecycle states.
const (
	StatusProcessing Status = "processing"
	StatusUnread     Status = "unread"
	StatusRead       Status = "read"
	StatusArchived   Status = "archived"
	StatusError      Status = "error"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusUnread, StatusRead, StatusArchived, StatusError:
		return true
	}
	return false
}

// Article is a stored article record. Optional fields are pointers so an
// unset value is distinguishable from a zero value.
type Article struct {
	ID           int64
	URL          string
	Title        *string
	Summary      *string
	Author       *string
	PublishedAt  *time.Time
	Score        *int32 // 1-100, nil when not yet rated
	QualityLabel string
	Status       Status
	Tags         []Tag
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ArticlePatch is a partial update. Nil fields are left untouched: the SQL
// uses COALESCE against the existing column so an absent field can never
// overwrite a populated one.
type ArticlePatch struct {
	Title        *string
	Summary      *string
	Author       *string
	PublishedAt  *time.Time
	Score        *int32
	QualityLabel *string
	Status       *Status
}

// Tag is a folksonomy label. Name carries the canonical (first-created)
// casing; uniqueness is enforced case-insensitively by the store.
type Tag struct {
	ID          int64
	Name        string
	Description string
	Active      bool
	UsageCount  int64
}

// Collection groups articles the user curates together.
type Collection struct {
	ID        int64
	Name      string
	Active    bool
	CreatedAt time.Time
}

// FeedbackKind enumerates user feedback event types.
type FeedbackKind string

// Feedback event kinds.
const (
	FeedbackUpvote     FeedbackKind = "upvote"
	FeedbackDownvote   FeedbackKind = "downvote"
	FeedbackSaved      FeedbackKind = "saved"
	FeedbackArchived   FeedbackKind = "archived"
	FeedbackTagAdded   FeedbackKind = "tag_added"
	FeedbackTagRemoved FeedbackKind = "tag_removed"
)

// Valid reports whether k is a known feedback kind.
func (k FeedbackKind) Valid() bool {
	switch k {
	case FeedbackUpvote, FeedbackDownvote, FeedbackSaved,
		FeedbackArchived, FeedbackTagAdded, FeedbackTagRemoved:
		return true
	}
	return false
}

// FeedbackEvent is one append-only feedback record. Events are never mutated
// or deleted; all statistics derive from replaying them.
type FeedbackEvent struct {
	ArticleID int64
	Kind      FeedbackKind
	Payload   json.RawMessage
	CreatedAt time.Time
}

// TagCount pairs a tag name with a feedback co-occurrence count.
type TagCount struct {
	Name  string
	Count int64
}

// CollectionCount pairs a collection name with its membership count.
type CollectionCount struct {
	Name  string
	Count int64
}

// FeedbackStats aggregates the feedback log into the counters that bias
// scoring and re-evaluation.
type FeedbackStats struct {
	ScoredArticles int64
	KindCounts     map[FeedbackKind]int64
	MeanScore      float64
	TopTags        []TagCount
	TopCollections []CollectionCount
}

// UpvoteRatio returns upvotes / (upvotes + downvotes), or 0 when the user has
// voted on nothing yet.
func (s FeedbackStats) UpvoteRatio() float64 {
	up := s.KindCounts[FeedbackUpvote]
	down := s.KindCounts[FeedbackDownvote]
	total := up + down
	if total == 0 {
		return 0
	}
	return float64(up) / float64(total)
}
