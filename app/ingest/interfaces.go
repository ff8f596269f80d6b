package ingest

import (
	"context"

	"github.com/lysyi3m/podcast-sync/app/feed"
)

// SyncerInterface is what trigger adapters depend on. The scheduler, the
// HTTP API and the one-shot CLI all drive the same Syncer through it.
type SyncerInterface interface {
	Run(ctx context.Context, feedConfig *feed.Config, trigger Trigger) *Result
	RunAll(ctx context.Context, feedConfigs []*feed.Config, trigger Trigger) []*Result
}

var _ SyncerInterface = (*Syncer)(nil)
