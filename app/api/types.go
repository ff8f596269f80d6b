package api

import (
	"github.com/lysyi3m/podcast-sync/app/database"
	"github.com/lysyi3m/podcast-sync/app/feed"
	"github.com/lysyi3m/podcast-sync/app/ingest"
	"github.com/lysyi3m/podcast-sync/app/tasks"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	defaultRunLimit = 20
)

type Handler struct {
	configCache *feed.ConfigCache
	contentRepo database.ContentRepository
	feedRepo    database.FeedRepository
	runRepo     database.SyncRunRepository
	syncer      ingest.SyncerInterface
	scheduler   tasks.TaskSchedulerInterface
	version     string
}
