package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background feed syncs.
// Example usage:
//
//	scheduler := NewScheduler(configCache, feedRepo, runRepo, syncer, interval, workers)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewSyncFeedTask(feedConfig, syncer))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
