package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/feeddigest/feeddigest/app/database"
)

// RollupTask aggregates the previous calendar day: entry volume, keyword
// frequencies and the busiest feeds, plus a success-rate check over the
// last 24 hours of run logs. Derive-only; nothing is written.
type RollupTask struct {
	Task
	entries database.EntryRepository
	runLogs database.RunLogRepository
}

func NewRollupTask(entries database.EntryRepository, runLogs database.RunLogRepository) *RollupTask {
	return &RollupTask{
		Task:    NewTask(TaskTypeRollup, ""),
		entries: entries,
		runLogs: runLogs,
	}
}

func (t *RollupTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	now := time.Now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := midnight.AddDate(0, 0, -1)

	total, err := t.entries.CountPublishedBetween(from, midnight)
	if err != nil {
		return fmt.Errorf("rollup entry count failed: %w", err)
	}

	keywords, err := t.entries.KeywordCounts(from, midnight, 10)
	if err != nil {
		return fmt.Errorf("rollup keyword aggregation failed: %w", err)
	}

	feeds, err := t.entries.TopFeeds(from, midnight, 5)
	if err != nil {
		return fmt.Errorf("rollup feed aggregation failed: %w", err)
	}

	statusCounts, err := t.runLogs.CountByStatus(now.Add(-24 * time.Hour))
	if err != nil {
		return fmt.Errorf("rollup run log check failed: %w", err)
	}

	totalRuns := 0
	for _, count := range statusCounts {
		totalRuns += count
	}
	successRate := 1.0
	if totalRuns > 0 {
		successRate = float64(statusCounts[database.StatusSuccess]) / float64(totalRuns)
	}

	slog.Info("Daily rollup",
		"date", from.Format("2006-01-02"),
		"entries", total,
		"top_keywords", formatKeywords(keywords),
		"top_feeds", formatFeeds(feeds),
		"runs_24h", totalRuns,
		"success_rate", fmt.Sprintf("%.2f", successRate),
		"errors_24h", statusCounts[database.StatusError])

	return nil
}

func formatKeywords(counts []database.KeywordCount) []string {
	out := make([]string, 0, len(counts))
	for _, kc := range counts {
		out = append(out, fmt.Sprintf("%s:%d", kc.Term, kc.Count))
	}
	return out
}

func formatFeeds(counts []database.FeedCount) []string {
	out := make([]string, 0, len(counts))
	for _, fc := range counts {
		out = append(out, fmt.Sprintf("%s:%d", fc.FeedTitle, fc.Count))
	}
	return out
}
