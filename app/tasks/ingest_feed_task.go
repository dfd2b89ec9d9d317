package tasks

import (
	"context"
	"log/slog"

	"github.com/feeddigest/feeddigest/app/database"
	"github.com/feeddigest/feeddigest/app/feed"
)

// IngestFeedTask runs one ingestion attempt for a feed URL and guarantees
// the audit trail: when the orchestrator fails before writing its own run
// log, the task writes an error-status one, so every triggered attempt
// yields exactly one record.
type IngestFeedTask struct {
	Task
	ingestor *feed.Ingestor
	feeds    database.FeedRepository
	runLogs  database.RunLogRepository
}

func NewIngestFeedTask(feedURL string, ingestor *feed.Ingestor,
	feeds database.FeedRepository, runLogs database.RunLogRepository) *IngestFeedTask {
	return &IngestFeedTask{
		Task:     NewTask(TaskTypeIngestFeed, feedURL),
		ingestor: ingestor,
		feeds:    feeds,
		runLogs:  runLogs,
	}
}

func (t *IngestFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	runLog, err := t.ingestor.CrawlAndSave(ctx, t.FeedURL)
	if err == nil {
		slog.Info("Task completed",
			"type", string(t.Type),
			"feed", t.FeedURL,
			"duration", t.GetDuration(),
			"status", runLog.Status,
			"processed", runLog.EntriesProcessed,
			"new", runLog.EntriesNew)
		return nil
	}

	if runLog == nil {
		t.recordFailure(err)
	}

	return err
}

// recordFailure writes the outer error-status run log for attempts that
// aborted before persistence (fetch failures, malformed feeds)
func (t *IngestFeedTask) recordFailure(cause error) {
	fd, _, err := t.feeds.GetOrCreate(t.FeedURL, "Unknown Feed", "")
	if err != nil {
		slog.Error("Failed to record run failure", "feed", t.FeedURL, "error", err)
		return
	}

	runLog := &database.RunLog{
		FeedID:       fd.ID,
		Status:       database.StatusError,
		ErrorMessage: cause.Error(),
		Duration:     t.GetDuration(),
	}
	if err := t.runLogs.Insert(runLog); err != nil {
		slog.Error("Failed to write failure run log", "feed", t.FeedURL, "error", err)
	}
}
