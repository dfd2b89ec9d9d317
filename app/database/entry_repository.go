package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type entryRepository struct {
	db *DB
}

// NewEntryRepository creates a new entry repository
func NewEntryRepository(db *DB) EntryRepository {
	return &entryRepository{db: db}
}

// encodeKeywords serializes a keyword list for the JSON text column.
// A nil slice is stored as an empty array, never as JSON null.
func encodeKeywords(keywords []string) (string, error) {
	if keywords == nil {
		keywords = []string{}
	}
	data, err := json.Marshal(keywords)
	if err != nil {
		return "", fmt.Errorf("failed to encode keywords: %w", err)
	}
	return string(data), nil
}

// decodeKeywords deserializes the keywords column; malformed data
// degrades to an empty list
func decodeKeywords(raw string) []string {
	var keywords []string
	if err := json.Unmarshal([]byte(raw), &keywords); err != nil || keywords == nil {
		return []string{}
	}
	return keywords
}

// Upsert inserts the entry or, when a row with the same (feed_id, link)
// already exists, refreshes its title, description, author and keywords.
// Link and published_at are never overwritten. A unique violation on the
// insert path means a concurrent writer won the race; the entry is then
// retried as an update. Returns true when a new row was created.
func (r *entryRepository) Upsert(feedID string, entry EntryInput) (bool, error) {
	keywords, err := encodeKeywords(entry.Keywords)
	if err != nil {
		return false, err
	}

	var existingID string
	err = r.db.QueryRow(`
		SELECT id FROM entries WHERE feed_id = $1 AND link = $2
	`, feedID, entry.Link).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to look up entry: %w", err)
	}

	if err == nil {
		if err := r.updateByID(existingID, entry, keywords); err != nil {
			return false, err
		}
		return false, nil
	}

	_, err = r.db.Exec(`
		INSERT INTO entries (feed_id, title, link, description, author, published_at, keywords)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, feedID, entry.Title, entry.Link, entry.Description, entry.Author,
		entry.PublishedAt, keywords)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			// Lost the insert race; the row exists now, so update it in place
			if err := r.updateByKey(feedID, entry, keywords); err != nil {
				return false, err
			}
			return false, nil
		}
		return false, fmt.Errorf("failed to insert entry: %w", err)
	}

	return true, nil
}

func (r *entryRepository) updateByID(id string, entry EntryInput, keywords string) error {
	_, err := r.db.Exec(`
		UPDATE entries
		SET title = $2, description = $3, author = $4, keywords = $5, updated_at = NOW()
		WHERE id = $1
	`, id, entry.Title, entry.Description, entry.Author, keywords)

	if err != nil {
		return fmt.Errorf("failed to update entry: %w", err)
	}

	return nil
}

func (r *entryRepository) updateByKey(feedID string, entry EntryInput, keywords string) error {
	_, err := r.db.Exec(`
		UPDATE entries
		SET title = $3, description = $4, author = $5, keywords = $6, updated_at = NOW()
		WHERE feed_id = $1 AND link = $2
	`, feedID, entry.Link, entry.Title, entry.Description, entry.Author, keywords)

	if err != nil {
		return fmt.Errorf("failed to update entry after insert conflict: %w", err)
	}

	return nil
}

// List returns entries joined with their feed, newest first
func (r *entryRepository) List(filter EntryFilter) ([]EntryWithFeed, error) {
	query := `
		SELECT e.id, e.feed_id, e.title, e.link, e.description, e.author,
		       e.published_at, e.keywords, e.is_processed, e.created_at, e.updated_at,
		       f.title, f.url
		FROM entries e
		JOIN feeds f ON f.id = e.feed_id
	`

	var conditions []string
	var args []interface{}

	if filter.FeedID != "" {
		args = append(args, filter.FeedID)
		conditions = append(conditions, fmt.Sprintf("e.feed_id = $%d", len(args)))
	}

	switch filter.Period {
	case "today":
		conditions = append(conditions, "e.published_at::date = CURRENT_DATE")
	case "this_week":
		conditions = append(conditions, "e.published_at::date >= CURRENT_DATE - INTERVAL '7 days'")
	case "this_month":
		conditions = append(conditions, "e.published_at::date >= CURRENT_DATE - INTERVAL '30 days'")
	}

	if filter.Keyword != "" {
		args = append(args, "%"+filter.Keyword+"%")
		conditions = append(conditions, fmt.Sprintf("e.keywords ILIKE $%d", len(args)))
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY e.published_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []EntryWithFeed
	for rows.Next() {
		var entry EntryWithFeed
		var keywords string
		err := rows.Scan(
			&entry.ID, &entry.FeedID, &entry.Title, &entry.Link, &entry.Description,
			&entry.Author, &entry.PublishedAt, &keywords, &entry.IsProcessed,
			&entry.CreatedAt, &entry.UpdatedAt, &entry.FeedTitle, &entry.FeedURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entry.Keywords = decodeKeywords(keywords)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return entries, nil
}

// CountPublishedToday returns the number of entries whose published date
// equals the current date
func (r *entryRepository) CountPublishedToday() (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM entries WHERE published_at::date = CURRENT_DATE
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's entries: %w", err)
	}
	return count, nil
}

// CountPublishedSince returns the number of entries published at or after
// the given time
func (r *entryRepository) CountPublishedSince(since time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM entries WHERE published_at >= $1
	`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// CountPublishedBetween returns the number of entries published in [from, to)
func (r *entryRepository) CountPublishedBetween(from, to time.Time) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM entries WHERE published_at >= $1 AND published_at < $2
	`, from, to).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

// KeywordCounts aggregates keyword frequencies over entries published in
// [from, to), most frequent first
func (r *entryRepository) KeywordCounts(from, to time.Time, limit int) ([]KeywordCount, error) {
	rows, err := r.db.Query(`
		SELECT k.term, COUNT(*) AS count
		FROM entries e
		CROSS JOIN LATERAL json_array_elements_text(e.keywords::json) AS k(term)
		WHERE e.published_at >= $1 AND e.published_at < $2
		GROUP BY k.term
		ORDER BY count DESC, k.term
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate keywords: %w", err)
	}
	defer rows.Close()

	var counts []KeywordCount
	for rows.Next() {
		var kc KeywordCount
		if err := rows.Scan(&kc.Term, &kc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan keyword row: %w", err)
		}
		counts = append(counts, kc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keyword rows: %w", err)
	}

	return counts, nil
}

// TopFeeds returns per-feed entry counts over entries published in
// [from, to), busiest first
func (r *entryRepository) TopFeeds(from, to time.Time, limit int) ([]FeedCount, error) {
	rows, err := r.db.Query(`
		SELECT f.title, COUNT(e.id) AS count
		FROM entries e
		JOIN feeds f ON f.id = e.feed_id
		WHERE e.published_at >= $1 AND e.published_at < $2
		GROUP BY f.title
		ORDER BY count DESC, f.title
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate feed counts: %w", err)
	}
	defer rows.Close()

	var counts []FeedCount
	for rows.Next() {
		var fc FeedCount
		if err := rows.Scan(&fc.FeedTitle, &fc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan feed count row: %w", err)
		}
		counts = append(counts, fc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed count rows: %w", err)
	}

	return counts, nil
}

// DeleteOlderThan removes entries published strictly before the cutoff and
// returns how many were deleted
func (r *entryRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`
		DELETE FROM entries WHERE published_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old entries: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted row count: %w", err)
	}

	return deleted, nil
}
