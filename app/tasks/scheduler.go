package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/feeddigest/feeddigest/app/cfg"
	"github.com/feeddigest/feeddigest/app/database"
	"github.com/feeddigest/feeddigest/app/feed"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// retryBackoff is the fixed delay between attempts of a failed task
const retryBackoff = 10 * time.Second

type Scheduler struct {
	ingestor        *feed.Ingestor
	feeds           database.FeedRepository
	entries         database.EntryRepository
	runLogs         database.RunLogRepository
	interval        time.Duration
	refreshInterval time.Duration
	retentionDays   int
	workerCount     int
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	taskQueue       chan TaskInterface

	// lastMaintenanceDay is only touched by the ticker goroutine
	lastMaintenanceDay string
}

func NewScheduler(ingestor *feed.Ingestor, feeds database.FeedRepository,
	entries database.EntryRepository, runLogs database.RunLogRepository) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	c := cfg.Get()

	return &Scheduler{
		ingestor:        ingestor,
		feeds:           feeds,
		entries:         entries,
		runLogs:         runLogs,
		interval:        time.Duration(c.SchedulerInterval) * time.Second,
		refreshInterval: time.Duration(c.RefreshInterval) * time.Second,
		retentionDays:   c.RetentionDays,
		workerCount:     c.WorkerCount,
		ctx:             ctx,
		cancel:          cancel,
		taskQueue:       make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.lastMaintenanceDay = time.Now().UTC().Format("2006-01-02")
		s.enqueueDueFeeds()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueFeeds()
				s.enqueueMaintenance()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueueIngest queues an ingestion run for the given feed URL and returns
// the task ID. This is the API trigger's entry point.
func (s *Scheduler) EnqueueIngest(feedURL string) (string, error) {
	task := NewIngestFeedTask(feedURL, s.ingestor, s.feeds, s.runLogs)
	if err := s.EnqueueTask(task); err != nil {
		return "", err
	}
	return task.GetID(), nil
}

// enqueueDueFeeds queues ingestion for active feeds never fetched or last
// fetched more than a refresh interval ago
func (s *Scheduler) enqueueDueFeeds() {
	dueBefore := time.Now().UTC().Add(-s.refreshInterval)

	feeds, err := s.feeds.ListDueForRefresh(dueBefore)
	if err != nil {
		slog.Warn("Failed to list feeds due for refresh", "error", err)
		return
	}
	if len(feeds) == 0 {
		slog.Debug("No feeds due for refresh")
		return
	}

	slog.Debug("Scheduling feed ingestion", "count", len(feeds))

	for _, fd := range feeds {
		if _, err := s.EnqueueIngest(fd.URL); err != nil {
			slog.Warn("Failed to enqueue IngestFeedTask", "feed", fd.URL, "error", err)
		}
	}
}

// enqueueMaintenance queues the retention sweep and daily rollup once per
// calendar day, on the first tick after midnight UTC
func (s *Scheduler) enqueueMaintenance() {
	day := time.Now().UTC().Format("2006-01-02")
	if day == s.lastMaintenanceDay {
		return
	}
	s.lastMaintenanceDay = day

	if err := s.EnqueueTask(NewCleanupTask(s.entries, s.retentionDays)); err != nil {
		slog.Warn("Failed to enqueue CleanupTask", "error", err)
	}
	if err := s.EnqueueTask(NewRollupTask(s.entries, s.runLogs)); err != nil {
		slog.Warn("Failed to enqueue RollupTask", "error", err)
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedURL(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryBackoff.String())

			go func() {
				time.Sleep(retryBackoff)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
