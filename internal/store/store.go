// Package store implements the structured store for articles, tags,
// collections and the append-only feedback log on PostgreSQL.
//
// The store owns record identity and uniqueness. Partial article updates use
// COALESCE semantics: only supplied fields overwrite, absent fields keep the
// stored value. Tag creation is an idempotent insert so concurrent sessions
// racing to create the same canonical name converge on one row.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the database seam the store depends on. *pgxpool.Pool satisfies it;
// tests substitute a fake. Interfaces are defined by the consumer, not the
// provider.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides access to the structured records.
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(db DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

const articleColumns = `id, url, title, summary, author, published_at, score, quality_label, status, created_at, updated_at`

// GetArticle returns the article with the given id, tags included.
// Returns ErrNotFound when no such article exists.
func (s *Store) GetArticle(ctx context.Context, id int64) (Article, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id)

	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Article{}, fmt.Errorf("article %d: %w", id, ErrNotFound)
		}
		return Article{}, fmt.Errorf("getting article %d: %w", id, err)
	}

	tags, err := s.articleTags(ctx, id)
	if err != nil {
		return Article{}, err
	}
	a.Tags = tags

	return a, nil
}

// GetArticleByURL returns the article with the given URL.
// Returns ErrNotFound when no such article exists.
func (s *Store) GetArticleByURL(ctx context.Context, url string) (Article, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE url = $1`, url)

	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Article{}, fmt.Errorf("article %q: %w", url, ErrNotFound)
		}
		return Article{}, fmt.Errorf("getting article %q: %w", url, err)
	}

	tags, err := s.articleTags(ctx, a.ID)
	if err != nil {
		return Article{}, err
	}
	a.Tags = tags

	return a, nil
}

// ListRecentUnread returns the most recently created unread articles,
// newest first, without tags.
func (s *Store) ListRecentUnread(ctx context.Context, limit int32) ([]Article, error) {
	if limit < 1 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+articleColumns+` FROM articles
		 WHERE status = $1 ORDER BY created_at DESC LIMIT $2`,
		StatusUnread, limit)
	if err != nil {
		return nil, fmt.Errorf("listing unread articles: %w", err)
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning article: %w", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing unread articles: %w", err)
	}

	return articles, nil
}

// UpdateArticle applies a partial update. Nil patch fields are passed as SQL
// NULL and COALESCEd against the existing column, so they never overwrite a
// populated value. Returns ErrNotFound when the article does not exist.
func (s *Store) UpdateArticle(ctx context.Context, id int64, patch ArticlePatch) error {
	if err := patch.Validate(); err != nil {
		return fmt.Errorf("validating patch for article %d: %w", id, err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE articles SET
			title         = COALESCE($2, title),
			summary       = COALESCE($3, summary),
			author        = COALESCE($4, author),
			published_at  = COALESCE($5, published_at),
			score         = COALESCE($6, score),
			quality_label = COALESCE($7, quality_label),
			status        = COALESCE($8, status),
			updated_at    = now()
		 WHERE id = $1`,
		id, patch.Title, patch.Summary, patch.Author, patch.PublishedAt,
		patch.Score, patch.QualityLabel, statusArg(patch.Status))
	if err != nil {
		return fmt.Errorf("updating article %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("article %d: %w", id, ErrNotFound)
	}

	s.logger.Debug("updated article", "id", id)
	return nil
}

// Validate checks patch field ranges.
func (p ArticlePatch) Validate() error {
	if p.Score != nil && (*p.Score < 1 || *p.Score > 100) {
		return fmt.Errorf("score must be between 1 and 100, got %d", *p.Score)
	}
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("unknown status %q", *p.Status)
	}
	return nil
}

// IsZero reports whether the patch updates nothing.
func (p ArticlePatch) IsZero() bool {
	return p.Title == nil && p.Summary == nil && p.Author == nil &&
		p.PublishedAt == nil && p.Score == nil && p.QualityLabel == nil &&
		p.Status == nil
}

// statusArg converts a *Status to a nullable SQL argument.
func statusArg(s *Status) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

// AppendFeedback records one feedback event. The log is append-only;
// there is no update or delete path.
func (s *Store) AppendFeedback(ctx context.Context, ev FeedbackEvent) error {
	if !ev.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFeedbackKind, ev.Kind)
	}
	payload := ev.Payload
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO feedback_events (article_id, kind, payload) VALUES ($1, $2, $3)`,
		ev.ArticleID, ev.Kind, payload)
	if err != nil {
		return fmt.Errorf("appending %s feedback for article %d: %w", ev.Kind, ev.ArticleID, err)
	}

	s.logger.Debug("recorded feedback", "article_id", ev.ArticleID, "kind", ev.Kind)
	return nil
}

// CreateTag inserts a tag with the given canonical name, idempotently.
// If a tag with the same name (case-insensitive) already exists, including
// one created concurrently by another session, the existing row is returned.
func (s *Store) CreateTag(ctx context.Context, name, description string) (Tag, error) {
	if name == "" {
		return Tag{}, errors.New("tag name must not be empty")
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO tags (name, description) VALUES ($1, $2)
		 ON CONFLICT (lower(name)) DO NOTHING`,
		name, description)
	if err != nil {
		return Tag{}, fmt.Errorf("creating tag %q: %w", name, err)
	}

	var t Tag
	err = s.db.QueryRow(ctx,
		`SELECT id, name, description, active, usage_count
		 FROM tags WHERE lower(name) = lower($1)`,
		name).Scan(&t.ID, &t.Name, &t.Description, &t.Active, &t.UsageCount)
	if err != nil {
		return Tag{}, fmt.Errorf("reading tag %q after insert: %w", name, err)
	}

	return t, nil
}

// ListTags returns all tags ordered by descending usage count.
func (s *Store) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, description, active, usage_count
		 FROM tags ORDER BY usage_count DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Active, &t.UsageCount); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}

	return tags, nil
}

// DeactivateTag marks a tag inactive. Tags are never deleted: their ids stay
// permanently bound to their canonical names.
func (s *Store) DeactivateTag(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `UPDATE tags SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivating tag %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tag %d: %w", id, ErrNotFound)
	}
	return nil
}

// TagArticle links a tag to an article and bumps the tag's usage count.
// Linking the same pair twice is a no-op.
func (s *Store) TagArticle(ctx context.Context, articleID, tagID int64) error {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO article_tags (article_id, tag_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		articleID, tagID)
	if err != nil {
		return fmt.Errorf("tagging article %d with tag %d: %w", articleID, tagID, err)
	}
	if tag.RowsAffected() == 0 {
		return nil // already linked
	}

	if _, err := s.db.Exec(ctx,
		`UPDATE tags SET usage_count = usage_count + 1 WHERE id = $1`, tagID); err != nil {
		return fmt.Errorf("bumping usage count for tag %d: %w", tagID, err)
	}
	return nil
}

// ListActiveCollections returns active collections, newest first.
func (s *Store) ListActiveCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, active, created_at
		 FROM collections WHERE active ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var collections []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Active, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	return collections, nil
}

// articleTags loads the tags linked to one article, most used first.
func (s *Store) articleTags(ctx context.Context, articleID int64) ([]Tag, error) {
	rows, err := s.db.Query(ctx,
		`SELECT t.id, t.name, t.description, t.active, t.usage_count
		 FROM tags t
		 JOIN article_tags at ON at.tag_id = t.id
		 WHERE at.article_id = $1
		 ORDER BY t.usage_count DESC, t.id`,
		articleID)
	if err != nil {
		return nil, fmt.Errorf("loading tags for article %d: %w", articleID, err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.Active, &t.UsageCount); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading tags for article %d: %w", articleID, err)
	}

	return tags, nil
}

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanArticle scans one article row in articleColumns order.
func scanArticle(row rowScanner) (Article, error) {
	var (
		a           Article
		publishedAt *time.Time
		status      string
	)
	err := row.Scan(&a.ID, &a.URL, &a.Title, &a.Summary, &a.Author,
		&publishedAt, &a.Score, &a.QualityLabel, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Article{}, err
	}
	a.PublishedAt = publishedAt
	a.Status = Status(status)
	return a, nil
}
