package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application and the API to manage background processing.
// Example usage:
//
//	scheduler := NewScheduler(configCache, deps, interval, workerCount)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.ReloadSource("announcements")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	ReloadSource(sourceName string) error
}
