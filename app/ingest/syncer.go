package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/podcast-sync/app/database"
	"github.com/lysyi3m/podcast-sync/app/feed"
)

type Trigger string

const (
	TriggerScheduler Trigger = "scheduler"
	TriggerAPI       Trigger = "api"
	TriggerCLI       Trigger = "cli"
)

type FetcherInterface interface {
	Run(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

var _ FetcherInterface = (*feed.Fetcher)(nil)

// Syncer runs one feed through fetch, extract, normalize and upsert. Runs are
// sequential and independent; concurrent runs rely on the slug constraint.
type Syncer struct {
	fetcher     FetcherInterface
	extractor   *feed.Extractor
	contentRepo database.ContentRepository
	feedRepo    database.FeedRepository
	runRepo     database.SyncRunRepository
}

func NewSyncer(fetcher FetcherInterface, extractor *feed.Extractor, contentRepo database.ContentRepository,
	feedRepo database.FeedRepository, runRepo database.SyncRunRepository) *Syncer {
	return &Syncer{
		fetcher:     fetcher,
		extractor:   extractor,
		contentRepo: contentRepo,
		feedRepo:    feedRepo,
		runRepo:     runRepo,
	}
}

// Run always returns a summary; it never returns an error or panics.
func (s *Syncer) Run(ctx context.Context, feedConfig *feed.Config, trigger Trigger) *Result {
	result := &Result{
		Feed:      feedConfig.Name,
		StartedAt: time.Now().UTC(),
	}

	s.process(ctx, feedConfig, result)

	result.DurationMs = time.Since(result.StartedAt).Milliseconds()
	s.recordRun(ctx, feedConfig.Name, trigger, result)
	s.transition(feedConfig.Name, StateIdle)

	if result.Success {
		slog.Info("Sync completed",
			"feed", feedConfig.Name,
			"trigger", trigger,
			"duration", time.Duration(result.DurationMs)*time.Millisecond,
			"total", result.Total,
			"inserted", result.Inserted,
			"skipped", result.Skipped,
			"errors", result.Errors)
	} else {
		slog.Error("Sync failed",
			"feed", feedConfig.Name,
			"trigger", trigger,
			"error", result.Error)
	}

	return result
}

// RunAll syncs each feed in order and returns one summary per feed.
func (s *Syncer) RunAll(ctx context.Context, feedConfigs []*feed.Config, trigger Trigger) []*Result {
	results := make([]*Result, 0, len(feedConfigs))
	for _, feedConfig := range feedConfigs {
		results = append(results, s.Run(ctx, feedConfig, trigger))
	}
	return results
}

func (s *Syncer) process(ctx context.Context, feedConfig *feed.Config, result *Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Sync panicked", "feed", feedConfig.Name, "panic", r)
			result.fail(fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	if err := s.contentRepo.Ping(ctx); err != nil {
		result.fail(err)
		return
	}

	s.transition(feedConfig.Name, StateFetching)
	timeout := time.Duration(feedConfig.Settings.Timeout) * time.Second
	if timeout <= 0 {
		timeout = feed.DefaultTimeout * time.Second
	}
	data, err := s.fetcher.Run(ctx, feedConfig.URL, timeout)
	if err != nil {
		result.fail(err)
		return
	}

	s.transition(feedConfig.Name, StateExtracting)
	metadata, items := s.extractor.Run(data)
	s.storeMetadata(ctx, feedConfig.Name, metadata)

	// Once items are in hand the run goes to completion even if the
	// trigger's context is cancelled.
	itemCtx := context.WithoutCancel(ctx)

	s.transition(feedConfig.Name, StateProcessing)
	filterer := feed.NewFilterer()
	normalizer := feed.NewNormalizer(feedConfig.Settings.Tags)
	upserter := NewUpserter(s.contentRepo, time.Duration(feedConfig.Settings.ItemDelayMs)*time.Millisecond)

	for _, item := range items {
		result.Total++
		if filtered, reason := filterer.Run(item, feedConfig.Filters); filtered {
			result.Skipped++
			slog.Debug("Item filtered", "feed", feedConfig.Name, "title", item.Title, "reason", reason)
			continue
		}
		s.processItem(itemCtx, feedConfig.Name, normalizer, upserter, item, result)
	}

	s.transition(feedConfig.Name, StateSummarizing)
	result.Success = true
	result.Message = summaryMessage(result.Inserted, result.Errors)
}

func (s *Syncer) processItem(ctx context.Context, feedName string, normalizer *feed.Normalizer,
	upserter *Upserter, item feed.Item, result *Result) {
	defer func() {
		if r := recover(); r != nil {
			result.Errors++
			result.addWarning("Failed %q: unexpected failure: %v", item.Title, r)
			slog.Error("Item processing panicked", "feed", feedName, "title", item.Title, "panic", r)
		}
	}()

	record, err := normalizer.Run(item)
	if err != nil {
		result.Skipped++
		result.addWarning("Skipped %q: %v", item.Title, err)
		slog.Debug("Item skipped", "feed", feedName, "title", item.Title, "reason", err)
		return
	}

	outcome, err := upserter.Run(ctx, feedName, record)
	if err != nil {
		result.Errors++
		result.addWarning("Failed %q: %v", record.Title, err)
		if errors.Is(err, database.ErrDuplicateSlug) {
			slog.Warn("Item inserted concurrently by another sync", "feed", feedName, "slug", record.Slug)
		} else {
			slog.Error("Failed to store item", "feed", feedName, "slug", record.Slug, "error", err)
		}
		return
	}

	switch outcome {
	case OutcomeInserted:
		result.Inserted++
		slog.Debug("Item inserted", "feed", feedName, "slug", record.Slug)
	case OutcomeSkipped:
		result.Skipped++
		slog.Debug("Item already stored", "feed", feedName, "slug", record.Slug)
	}
}

func (s *Syncer) storeMetadata(ctx context.Context, feedName string, metadata *feed.Metadata) {
	if s.feedRepo == nil || metadata == nil {
		return
	}
	err := s.feedRepo.UpdateFeedMetadata(ctx, feedName, metadata.Title, metadata.Link, metadata.ImageURL, metadata.Language)
	if err != nil {
		slog.Warn("Failed to update feed metadata", "feed", feedName, "error", err)
	}
}

func (s *Syncer) recordRun(ctx context.Context, feedName string, trigger Trigger, result *Result) {
	if s.runRepo == nil {
		return
	}

	run := database.SyncRun{
		FeedName:   feedName,
		Trigger:    string(trigger),
		StartedAt:  result.StartedAt,
		FinishedAt: result.StartedAt.Add(time.Duration(result.DurationMs) * time.Millisecond),
		Success:    result.Success,
		Inserted:   result.Inserted,
		Skipped:    result.Skipped,
		Errors:     result.Errors,
		Total:      result.Total,
		Message:    result.Message,
		Error:      result.Error,
	}

	if err := s.runRepo.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		slog.Warn("Failed to record sync run", "feed", feedName, "error", err)
	}
}

func (s *Syncer) transition(feedName string, state State) {
	slog.Debug("Sync state", "feed", feedName, "state", state)
}
