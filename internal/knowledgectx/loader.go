// Package knowledgectx builds the session-scoped snapshot of what the user
// currently cares about: active collections, the tag registry, and aggregated
// feedback statistics. The snapshot is loaded once per session and memoized;
// the only in-session mutation is the local tag-registry append performed
// during tag reconciliation.
package knowledgectx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lorekeep/lorekeep/internal/store"
)

// Source provides the aggregation queries the loader depends on.
// *store.Store satisfies it.
type Source interface {
	ListActiveCollections(ctx context.Context) ([]store.Collection, error)
	ListTags(ctx context.Context) ([]store.Tag, error)
	Stats(ctx context.Context) (store.FeedbackStats, error)
}

// Context is one immutable-by-convention snapshot. Collections are ordered
// newest first, the tag registry by descending usage count.
type Context struct {
	Collections []store.Collection
	TagRegistry []store.Tag
	Stats       store.FeedbackStats
}

// Loader loads and caches the knowledge context for one agent session.
// The cache is session-scoped: a Loader must not be shared across sessions.
// The Loader's methods are safe for concurrent use, but Load returns the
// shared cached snapshot, not a copy: callers must not range over it while
// tag reconciliation may call AppendTag.
type Loader struct {
	source Source
	logger *slog.Logger

	mu     sync.Mutex
	cached *Context
}

// NewLoader creates a Loader. A nil logger falls back to slog.Default().
func NewLoader(source Source, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{source: source, logger: logger}
}

// Load returns the session snapshot, building it on first call and returning
// the cached value afterwards. A failed build is not cached; the next call
// retries the aggregation queries.
func (l *Loader) Load(ctx context.Context) (*Context, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil {
		return l.cached, nil
	}

	collections, err := l.source.ListActiveCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading collections: %w", err)
	}

	tags, err := l.source.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading tag registry: %w", err)
	}

	stats, err := l.source.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading feedback stats: %w", err)
	}

	l.cached = &Context{
		Collections: collections,
		TagRegistry: tags,
		Stats:       stats,
	}

	l.logger.Debug("built knowledge context",
		"collections", len(collections),
		"tags", len(tags),
		"scored_articles", stats.ScoredArticles,
	)

	return l.cached, nil
}

// LookupTag finds a registry tag by case-insensitive name, loading the
// snapshot if necessary.
func (l *Loader) LookupTag(ctx context.Context, name string) (store.Tag, bool, error) {
	snapshot, err := l.Load(ctx)
	if err != nil {
		return store.Tag{}, false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range snapshot.TagRegistry {
		if strings.EqualFold(t.Name, name) {
			return t, true, nil
		}
	}
	return store.Tag{}, false, nil
}

// AppendTag adds a freshly created tag to the in-session registry so repeated
// suggestions within the session resolve to it instead of creating another.
// The append is local: other sessions see the tag only through the store.
func (l *Loader) AppendTag(ctx context.Context, tag store.Tag) error {
	snapshot, err := l.Load(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot.TagRegistry = append(snapshot.TagRegistry, tag)
	return nil
}
