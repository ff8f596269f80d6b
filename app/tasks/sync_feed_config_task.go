package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/podcast-sync/app/database"
	"github.com/lysyi3m/podcast-sync/app/feed"
)

// SyncFeedConfigTask registers a feed file in the feeds table so runs and
// channel metadata have a row to attach to.
type SyncFeedConfigTask struct {
	Task
	FeedConfig *feed.Config
	feedRepo   database.FeedRepository
}

func NewSyncFeedConfigTask(feedConfig *feed.Config, feedRepo database.FeedRepository) *SyncFeedConfigTask {
	return &SyncFeedConfigTask{
		Task:       NewTask(TaskTypeSyncFeedConfig, feedConfig.Name),
		FeedConfig: feedConfig,
		feedRepo:   feedRepo,
	}
}

func (t *SyncFeedConfigTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.feedRepo.UpsertFeed(ctx, t.FeedConfig.Name, t.FeedConfig.URL); err != nil {
		slog.Error("Task failed", "type", "SyncFeedConfig", "feed", t.FeedName, "error", err)
		return fmt.Errorf("failed to sync feed config to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncFeedConfig",
		"feed", t.FeedName,
		"duration", t.GetDuration())

	return nil
}
