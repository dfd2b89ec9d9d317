package database

import (
	"fmt"
	"time"
)

type runLogRepository struct {
	db *DB
}

// NewRunLogRepository creates a new run log repository
func NewRunLogRepository(db *DB) RunLogRepository {
	return &runLogRepository{db: db}
}

// Insert writes one immutable audit record for an ingestion attempt and
// fills in the generated ID and creation time
func (r *runLogRepository) Insert(log *RunLog) error {
	err := r.db.QueryRow(`
		INSERT INTO run_logs (feed_id, status, entries_processed, entries_new, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, log.FeedID, log.Status, log.EntriesProcessed, log.EntriesNew,
		log.ErrorMessage, log.Duration.Milliseconds()).Scan(&log.ID, &log.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert run log: %w", err)
	}

	return nil
}

// Recent returns run logs created at or after since, newest first,
// joined with their feed titles
func (r *runLogRepository) Recent(since time.Time, limit int) ([]RunLogWithFeed, error) {
	rows, err := r.db.Query(`
		SELECT l.id, l.feed_id, l.status, l.entries_processed, l.entries_new,
		       l.error_message, l.duration_ms, l.created_at, f.title
		FROM run_logs l
		JOIN feeds f ON f.id = l.feed_id
		WHERE l.created_at >= $1
		ORDER BY l.created_at DESC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent run logs: %w", err)
	}
	defer rows.Close()

	var logs []RunLogWithFeed
	for rows.Next() {
		var log RunLogWithFeed
		var durationMs int64
		err := rows.Scan(
			&log.ID, &log.FeedID, &log.Status, &log.EntriesProcessed, &log.EntriesNew,
			&log.ErrorMessage, &durationMs, &log.CreatedAt, &log.FeedTitle,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run log row: %w", err)
		}
		log.Duration = time.Duration(durationMs) * time.Millisecond
		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run log rows: %w", err)
	}

	return logs, nil
}

// CountByStatus returns run log counts per status since the given time
func (r *runLogRepository) CountByStatus(since time.Time) (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT status, COUNT(*)
		FROM run_logs
		WHERE created_at >= $1
		GROUP BY status
	`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count run logs by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan run log count row: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run log count rows: %w", err)
	}

	return counts, nil
}
