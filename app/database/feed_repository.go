package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type feedRepository struct {
	db *DB
}

// NewFeedRepository creates a new feed repository
func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

const feedColumns = `id, url, title, description, is_active, last_fetched_at, created_at, updated_at`

func (r *feedRepository) scanFeed(row *sql.Row) (*Feed, error) {
	var feed Feed
	err := row.Scan(
		&feed.ID, &feed.URL, &feed.Title, &feed.Description,
		&feed.IsActive, &feed.LastFetchedAt, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

// GetByID retrieves a feed by its database ID
func (r *feedRepository) GetByID(id string) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRow(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by ID: %w", err)
	}
	return feed, nil
}

// GetByURL retrieves a feed by its source URL
func (r *feedRepository) GetByURL(url string) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRow(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE url = $1
	`, url))
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}
	return feed, nil
}

// GetOrCreate looks up a feed by URL, creating it with the provided defaults
// when absent. A concurrent insert of the same URL is resolved by re-reading
// the row after a unique violation. Returns the feed and whether it was created.
func (r *feedRepository) GetOrCreate(url, title, description string) (*Feed, bool, error) {
	feed, err := r.GetByURL(url)
	if err != nil {
		return nil, false, err
	}
	if feed != nil {
		return feed, false, nil
	}

	feed, err = r.scanFeed(r.db.QueryRow(`
		INSERT INTO feeds (url, title, description)
		VALUES ($1, $2, $3)
		RETURNING `+feedColumns+`
	`, url, title, description))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			feed, err = r.GetByURL(url)
			if err != nil {
				return nil, false, err
			}
			if feed != nil {
				return feed, false, nil
			}
		}
		return nil, false, fmt.Errorf("failed to create feed: %w", err)
	}

	return feed, true, nil
}

// UpdateMetadata sets the feed's title and description from parsed feed metadata
func (r *feedRepository) UpdateMetadata(id, title, description string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET title = $2, description = $3, updated_at = NOW()
		WHERE id = $1
	`, id, title, description)

	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}

	return nil
}

// UpdateLastFetched records a successful fetch
func (r *feedRepository) UpdateLastFetched(id string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET last_fetched_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to update last fetched time: %w", err)
	}

	return nil
}

// SetActive toggles the feed's active flag
func (r *feedRepository) SetActive(id string, active bool) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET is_active = $2, updated_at = NOW()
		WHERE id = $1
	`, id, active)

	if err != nil {
		return fmt.Errorf("failed to set feed active status: %w", err)
	}

	return nil
}

// ListDueForRefresh returns active feeds never fetched or last fetched
// before the given cutoff
func (r *feedRepository) ListDueForRefresh(olderThan time.Time) ([]Feed, error) {
	rows, err := r.db.Query(`
		SELECT `+feedColumns+`
		FROM feeds
		WHERE is_active = true
		  AND (last_fetched_at IS NULL OR last_fetched_at <= $1)
		ORDER BY COALESCE(last_fetched_at, '1970-01-01'::timestamptz)
		LIMIT 50
	`, olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds due for refresh: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var feed Feed
		err := rows.Scan(
			&feed.ID, &feed.URL, &feed.Title, &feed.Description,
			&feed.IsActive, &feed.LastFetchedAt, &feed.CreatedAt, &feed.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

// ListActiveWithCounts returns active feeds annotated with their total entry
// count and the count of entries published since recentSince
func (r *feedRepository) ListActiveWithCounts(recentSince time.Time) ([]FeedWithCounts, error) {
	rows, err := r.db.Query(`
		SELECT f.id, f.url, f.title, f.description, f.is_active, f.last_fetched_at,
		       f.created_at, f.updated_at,
		       COUNT(e.id) AS entry_count,
		       COUNT(e.id) FILTER (WHERE e.published_at >= $1) AS recent_entry_count
		FROM feeds f
		LEFT JOIN entries e ON e.feed_id = f.id
		WHERE f.is_active = true
		GROUP BY f.id
		ORDER BY f.created_at DESC
	`, recentSince)
	if err != nil {
		return nil, fmt.Errorf("failed to list active feeds: %w", err)
	}
	defer rows.Close()

	var feeds []FeedWithCounts
	for rows.Next() {
		var feed FeedWithCounts
		err := rows.Scan(
			&feed.ID, &feed.URL, &feed.Title, &feed.Description,
			&feed.IsActive, &feed.LastFetchedAt, &feed.CreatedAt, &feed.UpdatedAt,
			&feed.EntryCount, &feed.RecentEntryCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

// Count returns the total number of feeds
func (r *feedRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}
