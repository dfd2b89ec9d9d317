package tasks

// TaskSchedulerInterface is the surface the rest of the application uses
// to run background work: the worker pool lifecycle and task submission.
// EnqueueIngest is the API trigger's entry point; it returns the queued
// task's ID.
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueueIngest(feedURL string) (string, error)
}
