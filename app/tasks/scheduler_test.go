package tasks

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubTask struct {
	Task
	executeFn func(ctx context.Context) error
	executed  chan struct{}
}

func newStubTask(fn func(ctx context.Context) error) *stubTask {
	return &stubTask{
		Task:      NewTask(TaskTypeIngestFeed, "https://example.com/feed"),
		executeFn: fn,
		executed:  make(chan struct{}, 1),
	}
}

func (t *stubTask) Execute(ctx context.Context) error {
	defer func() {
		select {
		case t.executed <- struct{}{}:
		default:
		}
	}()
	if t.executeFn != nil {
		return t.executeFn(ctx)
	}
	return nil
}

func newTestScheduler(queueSize int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		feeds:           &fakeFeedRepo{},
		entries:         &fakeEntryRepo{},
		runLogs:         &fakeRunLogRepo{},
		interval:        time.Hour,
		refreshInterval: 15 * time.Minute,
		retentionDays:   30,
		workerCount:     1,
		ctx:             ctx,
		cancel:          cancel,
		taskQueue:       make(chan TaskInterface, queueSize),
	}
}

func TestScheduler_EnqueueTask(t *testing.T) {
	s := newTestScheduler(2)
	defer s.cancel()

	if err := s.EnqueueTask(newStubTask(nil)); err != nil {
		t.Fatalf("EnqueueTask returned error: %v", err)
	}
	if len(s.taskQueue) != 1 {
		t.Errorf("Expected 1 queued task, got %d", len(s.taskQueue))
	}
}

func TestScheduler_EnqueueTask_QueueFull(t *testing.T) {
	s := newTestScheduler(1)
	defer s.cancel()

	if err := s.EnqueueTask(newStubTask(nil)); err != nil {
		t.Fatalf("First enqueue failed: %v", err)
	}
	if err := s.EnqueueTask(newStubTask(nil)); err == nil {
		t.Error("Expected error when queue is full")
	}
}

func TestScheduler_EnqueueTask_Stopped(t *testing.T) {
	s := newTestScheduler(0)
	s.cancel()

	err := s.EnqueueTask(newStubTask(nil))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestScheduler_EnqueueIngest(t *testing.T) {
	s := newTestScheduler(2)
	defer s.cancel()

	taskID, err := s.EnqueueIngest("https://example.com/feed")
	if err != nil {
		t.Fatalf("EnqueueIngest returned error: %v", err)
	}
	if taskID == "" {
		t.Error("Expected non-empty task ID")
	}

	queued := <-s.taskQueue
	if queued.GetID() != taskID {
		t.Errorf("Expected queued task ID %s, got %s", taskID, queued.GetID())
	}
	if queued.GetType() != TaskTypeIngestFeed {
		t.Errorf("Expected ingest_feed task, got %s", queued.GetType())
	}
	if queued.GetFeedURL() != "https://example.com/feed" {
		t.Errorf("Unexpected feed URL %s", queued.GetFeedURL())
	}
}

func TestScheduler_WorkerExecutesQueuedTask(t *testing.T) {
	s := newTestScheduler(2)

	task := newStubTask(nil)
	if err := s.EnqueueTask(task); err != nil {
		t.Fatalf("EnqueueTask returned error: %v", err)
	}

	s.wg.Add(1)
	go s.worker(0)

	select {
	case <-task.executed:
	case <-time.After(2 * time.Second):
		t.Fatal("Task was not executed within 2s")
	}

	s.cancel()
	s.wg.Wait()
}

func TestScheduler_ExecuteTask_IncrementsRetryOnFailure(t *testing.T) {
	s := newTestScheduler(2)
	defer s.cancel()

	task := newStubTask(func(ctx context.Context) error {
		return errors.New("transient failure")
	})

	s.executeTask(0, task)

	if task.GetRetryCount() != 1 {
		t.Errorf("Expected retry count 1 after first failure, got %d", task.GetRetryCount())
	}
}

func TestScheduler_ExecuteTask_StopsAfterMaxRetries(t *testing.T) {
	s := newTestScheduler(2)
	defer s.cancel()

	task := newStubTask(func(ctx context.Context) error {
		return errors.New("persistent failure")
	})
	task.RetryCount = task.MaxRetries

	s.executeTask(0, task)

	if task.GetRetryCount() != task.MaxRetries {
		t.Errorf("Expected retry count unchanged at max, got %d", task.GetRetryCount())
	}
}
