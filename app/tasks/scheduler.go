package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/podcast-sync/app/database"
	"github.com/lysyi3m/podcast-sync/app/feed"
	"github.com/lysyi3m/podcast-sync/app/ingest"
)

const (
	taskQueueSize = 300
	taskTimeout   = 5 * time.Minute
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	configCache *feed.ConfigCache
	feedRepo    database.FeedRepository
	runRepo     database.SyncRunRepository
	syncer      ingest.SyncerInterface
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu      sync.Mutex
	pending map[string]bool
}

func NewScheduler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	runRepo database.SyncRunRepository, syncer ingest.SyncerInterface,
	interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		configCache: configCache,
		feedRepo:    feedRepo,
		runRepo:     runRepo,
		syncer:      syncer,
		interval:    interval,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
		pending:     make(map[string]bool),
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

		s.registerFeeds()
		s.enqueueDueFeeds()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueFeeds()
			}
		}
	}()
}

// Stop cancels the scheduler and waits for workers. A sync already past
// extraction still finishes its items before its worker returns.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// registerFeeds runs every SyncFeedConfigTask before the first sync is
// queued, so syncs always find their feed row. Failed registrations go to
// the queue to be retried.
func (s *Scheduler) registerFeeds() {
	feedConfigs := s.configCache.GetConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No feed configurations found")
		return
	}

	slog.Debug("Processing feed configurations", "count", len(feedConfigs))

	for _, feedConfig := range feedConfigs {
		syncTask := NewSyncFeedConfigTask(feedConfig, s.feedRepo)
		syncTask.Start()
		if err := syncTask.Execute(s.ctx); err == nil {
			continue
		}

		syncTask.IncrementRetryCount()
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncFeedConfigTask", "feed", feedConfig.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueDueFeeds() {
	feedConfigs := s.configCache.GetEnabledConfigs()
	if len(feedConfigs) == 0 {
		slog.Debug("No enabled feed configurations found")
		return
	}

	slog.Debug("Processing enabled feed configurations for task scheduling", "count", len(feedConfigs))

	now := time.Now().UTC()
	for _, feedConfig := range feedConfigs {
		due, err := s.isDue(feedConfig, now)
		if err != nil {
			slog.Warn("Failed to get last sync run, skipping", "feed", feedConfig.Name, "error", err)
			continue
		}
		if !due {
			continue
		}

		if !s.claim(feedConfig.Name) {
			slog.Debug("Feed sync already queued", "feed", feedConfig.Name)
			continue
		}

		if err := s.EnqueueTask(NewSyncFeedTask(feedConfig, s.syncer)); err != nil {
			s.release(feedConfig.Name)
			slog.Warn("Failed to enqueue SyncFeedTask", "feed", feedConfig.Name, "error", err)
		}
	}
}

// isDue reports whether the feed has no successful run within its sync interval.
func (s *Scheduler) isDue(feedConfig *feed.Config, now time.Time) (bool, error) {
	lastRun, err := s.runRepo.GetLastSuccessfulRun(s.ctx, feedConfig.Name)
	if err != nil {
		return false, err
	}
	if lastRun == nil {
		return true, nil
	}

	nextSyncAt := lastRun.FinishedAt.Add(time.Duration(feedConfig.Settings.SyncInterval) * time.Second)
	if nextSyncAt.After(now) {
		slog.Debug("Feed not due for sync yet", "feed", feedConfig.Name, "next_sync_at", nextSyncAt)
		return false, nil
	}
	return true, nil
}

func (s *Scheduler) claim(feedName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending[feedName] {
		return false
	}
	s.pending[feedName] = true
	return true
}

func (s *Scheduler) release(feedName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, feedName)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.finish(task)
		slog.Debug("Worker task completed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "duration", task.GetDuration())
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		s.finish(task)
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	delay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "feed", task.GetFeedName(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	go s.retry(task, delay)
}

func (s *Scheduler) retry(task TaskInterface, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-s.ctx.Done():
		slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		s.finish(task)
	case <-timer.C:
		if err := s.EnqueueTask(task); err != nil {
			s.finish(task)
			slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)
		}
	}
}

func (s *Scheduler) finish(task TaskInterface) {
	if task.GetType() == TaskTypeSyncFeed {
		s.release(task.GetFeedName())
	}
}
