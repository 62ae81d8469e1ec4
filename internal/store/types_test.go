package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func int32Ptr(n int32) *int32 { return &n }

func TestStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusProcessing, StatusUnread, StatusRead, StatusArchived, StatusError} {
		assert.True(t, s.Valid(), "status %q", s)
	}
	assert.False(t, Status("deleted").Valid())
	assert.False(t, Status("").Valid())
}

func TestFeedbackKindValid(t *testing.T) {
	t.Parallel()

	for _, k := range []FeedbackKind{
		FeedbackUpvote, FeedbackDownvote, FeedbackSaved,
		FeedbackArchived, FeedbackTagAdded, FeedbackTagRemoved,
	} {
		assert.True(t, k.Valid(), "kind %q", k)
	}
	assert.False(t, FeedbackKind("liked").Valid())
	assert.False(t, FeedbackKind("").Valid())
}

func TestArticlePatchValidate(t *testing.T) {
	t.Parallel()

	badStatus := Status("bogus")
	okStatus := StatusRead

	tests := []struct {
		name    string
		patch   ArticlePatch
		wantErr bool
	}{
		{"empty patch", ArticlePatch{}, false},
		{"score lower bound", ArticlePatch{Score: int32Ptr(1)}, false},
		{"score upper bound", ArticlePatch{Score: int32Ptr(100)}, false},
		{"score zero", ArticlePatch{Score: int32Ptr(0)}, true},
		{"score too high", ArticlePatch{Score: int32Ptr(101)}, true},
		{"valid status", ArticlePatch{Status: &okStatus}, false},
		{"unknown status", ArticlePatch{Status: &badStatus}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.patch.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestArticlePatchIsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, ArticlePatch{}.IsZero())

	now := time.Now()
	title := "t"
	assert.False(t, ArticlePatch{Title: &title}.IsZero())
	assert.False(t, ArticlePatch{PublishedAt: &now}.IsZero())
	assert.False(t, ArticlePatch{Score: int32Ptr(5)}.IsZero())
}
