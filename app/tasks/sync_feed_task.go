package tasks

import (
	"context"
	"fmt"

	"github.com/lysyi3m/podcast-sync/app/feed"
	"github.com/lysyi3m/podcast-sync/app/ingest"
)

type SyncFeedTask struct {
	Task
	FeedConfig *feed.Config
	syncer     ingest.SyncerInterface
	lastResult *ingest.Result
}

func NewSyncFeedTask(feedConfig *feed.Config, syncer ingest.SyncerInterface) *SyncFeedTask {
	return &SyncFeedTask{
		Task:       NewTask(TaskTypeSyncFeed, feedConfig.Name),
		FeedConfig: feedConfig,
		syncer:     syncer,
	}
}

// Execute runs one sync. A run that fails before item processing is
// returned as an error so the scheduler can retry it; item-level errors
// are part of a successful run and are not retried.
func (t *SyncFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result := t.syncer.Run(ctx, t.FeedConfig, ingest.TriggerScheduler)
	t.lastResult = result

	if !result.Success {
		return fmt.Errorf("failed to sync feed: %s", result.Error)
	}

	return nil
}

func (t *SyncFeedTask) LastResult() *ingest.Result {
	return t.lastResult
}
