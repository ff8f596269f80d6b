package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	if version != 1 || dirty {
		t.Fatalf("Expected clean migration version 1, got %d (dirty=%v)", version, dirty)
	}

	return db
}

func testContent(slug string) Content {
	audioURL := "https://cdn.example.com/" + slug + ".mp3"
	return Content{
		Slug:        slug,
		Title:       "Title for " + slug,
		Content:     "Some plain text content",
		Excerpt:     "Some plain text content",
		PublishedAt: time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC),
		AudioURL:    &audioURL,
		Source:      "rss",
		Tags:        []string{"podcast", "episode"},
		GUID:        "guid-" + slug,
		FeedName:    "show",
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Expected second migration run to succeed, got: %v", err)
	}
	if version != 1 || dirty {
		t.Errorf("Expected version 1 clean, got %d dirty=%v", version, dirty)
	}
}

func TestContentInsertAndGetBySlug(t *testing.T) {
	ctx := context.Background()
	repo := NewContentRepository(newTestDB(t))

	missing, err := repo.GetBySlug(ctx, "episode-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if missing != nil {
		t.Fatalf("Expected nil for unknown slug, got %+v", missing)
	}

	id, err := repo.Insert(ctx, testContent("episode-1"))
	if err != nil {
		t.Fatalf("Expected insert to succeed, got: %v", err)
	}
	if id == "" {
		t.Error("Expected generated ID")
	}

	stored, err := repo.GetBySlug(ctx, "episode-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if stored == nil {
		t.Fatal("Expected stored content")
	}
	if stored.ID != id {
		t.Errorf("Expected ID %s, got %s", id, stored.ID)
	}
	if stored.Title != "Title for episode-1" {
		t.Errorf("Expected title to round-trip, got '%s'", stored.Title)
	}
	if !stored.PublishedAt.Equal(time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected published_at to round-trip, got %v", stored.PublishedAt)
	}
	if stored.AudioURL == nil || *stored.AudioURL != "https://cdn.example.com/episode-1.mp3" {
		t.Errorf("Expected audio URL to round-trip, got %v", stored.AudioURL)
	}
	if len(stored.Tags) != 2 || stored.Tags[0] != "podcast" {
		t.Errorf("Expected tags to round-trip, got %v", stored.Tags)
	}
	if stored.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}
}

func TestContentInsertNullAudioURL(t *testing.T) {
	ctx := context.Background()
	repo := NewContentRepository(newTestDB(t))

	content := testContent("no-audio")
	content.AudioURL = nil
	if _, err := repo.Insert(ctx, content); err != nil {
		t.Fatalf("Expected insert to succeed, got: %v", err)
	}

	stored, err := repo.GetBySlug(ctx, "no-audio")
	if err != nil {
		t.Fatal(err)
	}
	if stored.AudioURL != nil {
		t.Errorf("Expected nil audio URL, got %v", *stored.AudioURL)
	}
}

func TestContentInsertDuplicateSlug(t *testing.T) {
	ctx := context.Background()
	repo := NewContentRepository(newTestDB(t))

	if _, err := repo.Insert(ctx, testContent("dup")); err != nil {
		t.Fatal(err)
	}

	_, err := repo.Insert(ctx, testContent("dup"))
	if !errors.Is(err, ErrDuplicateSlug) {
		t.Errorf("Expected ErrDuplicateSlug, got: %v", err)
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 stored record, got %d", count)
	}
}

func TestContentRejectsBlankTitle(t *testing.T) {
	ctx := context.Background()
	repo := NewContentRepository(newTestDB(t))

	content := testContent("blank")
	content.Title = ""
	if _, err := repo.Insert(ctx, content); err == nil {
		t.Error("Expected blank title to be rejected by the store")
	}
}

func TestContentListOrder(t *testing.T) {
	ctx := context.Background()
	repo := NewContentRepository(newTestDB(t))

	older := testContent("older")
	older.PublishedAt = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := testContent("newer")
	newer.PublishedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, c := range []Content{older, newer} {
		if _, err := repo.Insert(ctx, c); err != nil {
			t.Fatal(err)
		}
	}

	list, err := repo.List(ctx, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(list))
	}
	if list[0].Slug != "newer" || list[1].Slug != "older" {
		t.Errorf("Expected newest first, got [%s %s]", list[0].Slug, list[1].Slug)
	}

	page, err := repo.List(ctx, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 1 || page[0].Slug != "older" {
		t.Errorf("Expected second page to contain 'older', got %+v", page)
	}
}

func TestFeedRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewFeedRepository(newTestDB(t))

	if err := repo.UpsertFeed(ctx, "show", "https://example.com/feed.xml"); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpsertFeed(ctx, "show", "https://example.com/new-feed.xml"); err != nil {
		t.Fatal(err)
	}

	feed, err := repo.GetFeed(ctx, "show")
	if err != nil {
		t.Fatal(err)
	}
	if feed == nil {
		t.Fatal("Expected feed to exist")
	}
	if feed.FeedURL != "https://example.com/new-feed.xml" {
		t.Errorf("Expected updated URL, got '%s'", feed.FeedURL)
	}
	if feed.LastFetchedAt != nil {
		t.Error("Expected last_fetched_at to be empty before metadata update")
	}

	if err := repo.UpdateFeedMetadata(ctx, "show", "The Show", "https://example.com", "https://example.com/cover.png", "en"); err != nil {
		t.Fatal(err)
	}

	feed, err = repo.GetFeed(ctx, "show")
	if err != nil {
		t.Fatal(err)
	}
	if feed.Title != "The Show" || feed.Language != "en" {
		t.Errorf("Expected metadata to be stored, got %+v", feed)
	}
	if feed.LastFetchedAt == nil {
		t.Error("Expected last_fetched_at to be set")
	}

	if err := repo.UpdateFeedMetadata(ctx, "unknown", "", "", "", ""); err == nil {
		t.Error("Expected error for unregistered feed")
	}

	count, err := repo.GetFeedCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Expected 1 feed, got %d", count)
	}

	missing, err := repo.GetFeed(ctx, "unknown")
	if err != nil || missing != nil {
		t.Errorf("Expected nil feed without error, got %+v, %v", missing, err)
	}
}

func TestSyncRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewSyncRunRepository(newTestDB(t))

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	runs := []SyncRun{
		{FeedName: "show", Trigger: "scheduler", StartedAt: base, FinishedAt: base.Add(time.Second), Success: true, Inserted: 3, Total: 3, Message: "Synced 3 new episodes"},
		{FeedName: "show", Trigger: "api", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + time.Second), Success: false, Error: "HTTP error! status: 500"},
		{FeedName: "other", Trigger: "cli", StartedAt: base.Add(2 * time.Hour), FinishedAt: base.Add(2 * time.Hour), Success: true},
	}
	for _, run := range runs {
		if err := repo.RecordRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	last, err := repo.GetLastRun(ctx, "show")
	if err != nil {
		t.Fatal(err)
	}
	if last == nil || last.Success || last.Error != "HTTP error! status: 500" {
		t.Errorf("Expected last run to be the failed one, got %+v", last)
	}

	lastOK, err := repo.GetLastSuccessfulRun(ctx, "show")
	if err != nil {
		t.Fatal(err)
	}
	if lastOK == nil || !lastOK.Success || lastOK.Inserted != 3 {
		t.Errorf("Expected last successful run with 3 inserts, got %+v", lastOK)
	}
	if !lastOK.StartedAt.Equal(base) {
		t.Errorf("Expected started_at %v, got %v", base, lastOK.StartedAt)
	}
	if lastOK.ID == "" {
		t.Error("Expected generated ID")
	}

	list, err := repo.ListRuns(ctx, "show", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("Expected 2 runs for show, got %d", len(list))
	}
	if list[0].Trigger != "api" {
		t.Errorf("Expected newest run first, got trigger '%s'", list[0].Trigger)
	}

	none, err := repo.GetLastSuccessfulRun(ctx, "missing")
	if err != nil || none != nil {
		t.Errorf("Expected nil run without error, got %+v, %v", none, err)
	}
}
