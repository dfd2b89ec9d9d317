package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/feeddigest/feeddigest/app/database"
)

// CleanupTask is the retention sweep: it deletes entries whose publish
// timestamp is older than the retention window, regardless of the owning
// feed's active flag.
type CleanupTask struct {
	Task
	entries       database.EntryRepository
	retentionDays int
}

func NewCleanupTask(entries database.EntryRepository, retentionDays int) *CleanupTask {
	return &CleanupTask{
		Task:          NewTask(TaskTypeCleanup, ""),
		entries:       entries,
		retentionDays: retentionDays,
	}
}

func (t *CleanupTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -t.retentionDays)

	deleted, err := t.entries.DeleteOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("retention sweep failed: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"cutoff", cutoff.Format(time.RFC3339),
		"deleted", deleted)

	return nil
}
