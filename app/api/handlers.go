package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/podcast-sync/app/database"
	"github.com/lysyi3m/podcast-sync/app/feed"
	"github.com/lysyi3m/podcast-sync/app/ingest"
	"github.com/lysyi3m/podcast-sync/app/tasks"
)

func NewHandler(configCache *feed.ConfigCache, contentRepo database.ContentRepository,
	feedRepo database.FeedRepository, runRepo database.SyncRunRepository,
	syncer ingest.SyncerInterface, scheduler tasks.TaskSchedulerInterface, version string) *Handler {
	return &Handler{
		configCache: configCache,
		contentRepo: contentRepo,
		feedRepo:    feedRepo,
		runRepo:     runRepo,
		syncer:      syncer,
		scheduler:   scheduler,
		version:     version,
	}
}

func (h *Handler) GetIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":     "Podcast Sync",
		"version":     h.version,
		"description": "Podcast RSS to content store synchronization",
		"endpoints": gin.H{
			"health":   "/health",
			"content":  "/api/content",
			"feeds":    "/api/feeds",
			"runs":     "/api/feeds/<name>/runs",
			"sync_all": "/api/sync (POST)",
			"sync":     "/api/feeds/<name>/sync (POST)",
			"reload":   "/api/feeds/<name>/reload (POST)",
		},
	})
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if err := h.contentRepo.Ping(c.Request.Context()); err != nil {
		slog.Error("Health check failed", "error", err)
		health["status"] = "unavailable"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	if feedCount, err := h.feedRepo.GetFeedCount(c.Request.Context()); err == nil {
		health["feeds"] = feedCount
	}
	if contentCount, err := h.contentRepo.Count(c.Request.Context()); err == nil {
		health["content"] = contentCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListContent(c *gin.Context) {
	limit := queryInt(c, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must not be negative"})
		return
	}

	items, err := h.contentRepo.List(c.Request.Context(), limit, offset)
	if err != nil {
		slog.Error("Database error", "operation", "list_content", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	total, err := h.contentRepo.Count(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "count_content", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	content := make([]gin.H, 0, len(items))
	for _, item := range items {
		content = append(content, contentSummary(item))
	}

	c.JSON(http.StatusOK, gin.H{
		"content": content,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *Handler) APIGetContent(c *gin.Context) {
	slug := c.Param("slug")

	item, err := h.contentRepo.GetBySlug(c.Request.Context(), slug)
	if err != nil {
		slog.Error("Database error", "operation", "get_content", "slug", slug, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Content not found"})
		return
	}

	details := contentSummary(*item)
	details["content"] = item.Content
	details["link"] = item.Link
	details["guid"] = item.GUID
	details["image_url"] = item.ImageURL
	details["duration"] = item.Duration
	details["episode"] = item.Episode
	details["created_at"] = item.CreatedAt

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	feeds := make([]map[string]interface{}, 0, len(configs))

	for _, feedConfig := range configs {
		feedInfo := map[string]interface{}{
			"name":          feedConfig.Name,
			"url":           feedConfig.URL,
			"title":         "",
			"enabled":       feedConfig.Settings.Enabled,
			"sync_interval": (time.Duration(feedConfig.Settings.SyncInterval) * time.Second).String(),
		}

		if stored, err := h.feedRepo.GetFeed(c.Request.Context(), feedConfig.Name); err == nil && stored != nil {
			feedInfo["title"] = stored.Title
			feedInfo["last_fetched_at"] = stored.LastFetchedAt
			feedInfo["updated_at"] = stored.UpdatedAt
		}

		if run, err := h.runRepo.GetLastRun(c.Request.Context(), feedConfig.Name); err == nil && run != nil {
			feedInfo["last_run"] = runSummary(*run)
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	name := c.Param("name")

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	details := map[string]interface{}{
		"name":          name,
		"url":           feedConfig.URL,
		"enabled":       feedConfig.Settings.Enabled,
		"sync_interval": (time.Duration(feedConfig.Settings.SyncInterval) * time.Second).String(),
		"timeout":       (time.Duration(feedConfig.Settings.Timeout) * time.Second).String(),
		"item_delay":    (time.Duration(feedConfig.Settings.ItemDelayMs) * time.Millisecond).String(),
		"tags":          feedConfig.Settings.Tags,
	}

	stored, err := h.feedRepo.GetFeed(c.Request.Context(), name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if stored != nil {
		details["database"] = map[string]interface{}{
			"title":           stored.Title,
			"link":            stored.Link,
			"image_url":       stored.ImageURL,
			"language":        stored.Language,
			"last_fetched_at": stored.LastFetchedAt,
			"created_at":      stored.CreatedAt,
			"updated_at":      stored.UpdatedAt,
		}
	}

	if run, err := h.runRepo.GetLastSuccessfulRun(c.Request.Context(), name); err == nil && run != nil {
		details["last_successful_run"] = runSummary(*run)
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIListRuns(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	limit := queryInt(c, "limit", defaultRunLimit)
	if limit < 1 || limit > maxPageSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	runs, err := h.runRepo.ListRuns(c.Request.Context(), name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "list_runs", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	summaries := make([]gin.H, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, runSummary(run))
	}

	c.JSON(http.StatusOK, gin.H{
		"feed": name,
		"runs": summaries,
	})
}

// APISyncAll syncs every enabled feed and answers with one summary per
// feed. Sync failures are reported in the summaries, not the status code.
func (h *Handler) APISyncAll(c *gin.Context) {
	results := h.syncer.RunAll(c.Request.Context(), h.configCache.GetEnabledConfigs(), ingest.TriggerAPI)
	c.JSON(http.StatusOK, results)
}

func (h *Handler) APISyncFeed(c *gin.Context) {
	name := c.Param("name")

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	result := h.syncer.Run(c.Request.Context(), feedConfig, ingest.TriggerAPI)
	c.JSON(http.StatusOK, result)
}

// APIReloadFeed re-reads a feed file from disk and re-registers it.
func (h *Handler) APIReloadFeed(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncFeedConfigTask := tasks.NewSyncFeedConfigTask(feedConfig, h.feedRepo)
	if err := h.scheduler.EnqueueTask(syncFeedConfigTask); err != nil {
		slog.Error("Error enqueueing sync task", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and task enqueued successfully",
		"feed": gin.H{
			"name":    name,
			"url":     feedConfig.URL,
			"enabled": feedConfig.Settings.Enabled,
		},
		"tasks": []gin.H{
			{
				"id":   syncFeedConfigTask.ID,
				"type": syncFeedConfigTask.Type,
			},
		},
	})
}

func contentSummary(item database.Content) gin.H {
	return gin.H{
		"id":           item.ID,
		"slug":         item.Slug,
		"title":        item.Title,
		"excerpt":      item.Excerpt,
		"published_at": item.PublishedAt,
		"audio_url":    item.AudioURL,
		"source":       item.Source,
		"tags":         item.Tags,
		"feed":         item.FeedName,
	}
}

func runSummary(run database.SyncRun) gin.H {
	summary := gin.H{
		"id":          run.ID,
		"trigger":     run.Trigger,
		"started_at":  run.StartedAt,
		"finished_at": run.FinishedAt,
		"success":     run.Success,
		"inserted":    run.Inserted,
		"skipped":     run.Skipped,
		"errors":      run.Errors,
		"total":       run.Total,
	}
	if run.Message != "" {
		summary["message"] = run.Message
	}
	if run.Error != "" {
		summary["error"] = run.Error
	}
	return summary
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}
