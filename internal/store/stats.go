package store

import (
	"context"
	"fmt"
)

// topN bounds the top-tags and top-collections lists in FeedbackStats.
const topN = 10

// defaultMeanScore is the mean reported for an empty corpus so stricter-
// criteria thresholds have a neutral baseline to compare against.
const defaultMeanScore = 50.0

// Stats aggregates the feedback log and score distribution into a
// FeedbackStats snapshot. Four queries, no transaction: the log is
// append-only, so slight skew between them is harmless.
func (s *Store) Stats(ctx context.Context) (FeedbackStats, error) {
	stats := FeedbackStats{
		KindCounts: make(map[FeedbackKind]int64),
		MeanScore:  defaultMeanScore,
	}

	var mean *float64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(score), AVG(score) FROM articles WHERE score IS NOT NULL`,
	).Scan(&stats.ScoredArticles, &mean)
	if err != nil {
		return FeedbackStats{}, fmt.Errorf("aggregating scores: %w", err)
	}
	if mean != nil {
		stats.MeanScore = *mean
	}

	rows, err := s.db.Query(ctx,
		`SELECT kind, COUNT(*) FROM feedback_events GROUP BY kind`)
	if err != nil {
		return FeedbackStats{}, fmt.Errorf("counting feedback kinds: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			kind  string
			count int64
		)
		if err := rows.Scan(&kind, &count); err != nil {
			return FeedbackStats{}, fmt.Errorf("scanning feedback kind: %w", err)
		}
		stats.KindCounts[FeedbackKind(kind)] = count
	}
	if err := rows.Err(); err != nil {
		return FeedbackStats{}, fmt.Errorf("counting feedback kinds: %w", err)
	}

	stats.TopTags, err = s.topTagsByFeedback(ctx)
	if err != nil {
		return FeedbackStats{}, err
	}

	stats.TopCollections, err = s.topCollectionsByMembership(ctx)
	if err != nil {
		return FeedbackStats{}, err
	}

	return stats, nil
}

// topTagsByFeedback returns the tags that co-occur most often with feedback
// events on their articles.
func (s *Store) topTagsByFeedback(ctx context.Context) ([]TagCount, error) {
	rows, err := s.db.Query(ctx,
		`SELECT t.name, COUNT(*) AS cnt
		 FROM feedback_events fe
		 JOIN article_tags at ON at.article_id = fe.article_id
		 JOIN tags t ON t.id = at.tag_id
		 GROUP BY t.name
		 ORDER BY cnt DESC, t.name
		 LIMIT $1`, topN)
	if err != nil {
		return nil, fmt.Errorf("aggregating top tags: %w", err)
	}
	defer rows.Close()

	var tags []TagCount
	for rows.Next() {
		var tc TagCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, fmt.Errorf("scanning tag count: %w", err)
		}
		tags = append(tags, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregating top tags: %w", err)
	}

	return tags, nil
}

// topCollectionsByMembership returns the collections with the most articles.
func (s *Store) topCollectionsByMembership(ctx context.Context) ([]CollectionCount, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.name, COUNT(ca.article_id) AS cnt
		 FROM collections c
		 JOIN collection_articles ca ON ca.collection_id = c.id
		 GROUP BY c.name
		 ORDER BY cnt DESC, c.name
		 LIMIT $1`, topN)
	if err != nil {
		return nil, fmt.Errorf("aggregating top collections: %w", err)
	}
	defer rows.Close()

	var collections []CollectionCount
	for rows.Next() {
		var cc CollectionCount
		if err := rows.Scan(&cc.Name, &cc.Count); err != nil {
			return nil, fmt.Errorf("scanning collection count: %w", err)
		}
		collections = append(collections, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("aggregating top collections: %w", err)
	}

	return collections, nil
}
