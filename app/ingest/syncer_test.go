package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lysyi3m/podcast-sync/app/database"
	"github.com/lysyi3m/podcast-sync/app/feed"
)

const scenarioFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Scenario Podcast</title>
    <link>https://example.com</link>
    <language>en</language>
    <item>
      <title>Brand New Episode</title>
      <description><![CDATA[<p>A <b>complete</b> episode description.</p>]]></description>
      <pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate>
      <enclosure url="https://cdn.example.com/new.mp3" type="audio/mpeg" length="1"/>
    </item>
    <item>
      <title>Missing Description</title>
      <pubDate>Wed, 03 Jan 2024 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Existing Episode</title>
      <description>This one is already stored somewhere.</description>
      <pubDate>Thu, 04 Jan 2024 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func newFeedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestSyncer(server *httptest.Server, contentRepo database.ContentRepository) (*Syncer, *MockFeedRepository, *MockSyncRunRepository) {
	feedRepo := &MockFeedRepository{}
	runRepo := &MockSyncRunRepository{}
	syncer := NewSyncer(feed.NewFetcher(server.Client(), "PodcastSync/Test"), feed.NewExtractor(), contentRepo, feedRepo, runRepo)
	return syncer, feedRepo, runRepo
}

func testConfig(url string) *feed.Config {
	return &feed.Config{
		Name: "scenario",
		URL:  url,
		Settings: feed.ConfigSettings{
			Enabled: true,
			Timeout: 5,
			Tags:    []string{"podcast", "episode"},
		},
	}
}

func TestSyncerEndToEndScenario(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, scenarioFeed)
	repo := NewMockContentRepository()
	repo.items["existing-episode"] = database.Content{Slug: "existing-episode", Title: "Existing Episode"}
	syncer, feedRepo, runRepo := newTestSyncer(server, repo)

	result := syncer.Run(context.Background(), testConfig(server.URL), TriggerCLI)

	if !result.Success {
		t.Fatalf("Expected success, got error: %s", result.Error)
	}
	if result.Inserted != 1 || result.Skipped != 2 || result.Errors != 0 || result.Total != 3 {
		t.Errorf("Expected {inserted:1 skipped:2 errors:0 total:3}, got {inserted:%d skipped:%d errors:%d total:%d}",
			result.Inserted, result.Skipped, result.Errors, result.Total)
	}
	if result.Message != "Synced 1 new episode" {
		t.Errorf("Expected message 'Synced 1 new episode', got '%s'", result.Message)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Expected 1 warning for the rejected item, got %d", len(result.Warnings))
	}

	stored, ok := repo.items["brand-new-episode"]
	if !ok {
		t.Fatal("Expected 'brand-new-episode' to be stored")
	}
	if stored.Content != "A complete episode description." {
		t.Errorf("Expected markup stripped content, got '%s'", stored.Content)
	}
	if stored.AudioURL == nil || *stored.AudioURL != "https://cdn.example.com/new.mp3" {
		t.Errorf("Expected audio URL from enclosure, got %v", stored.AudioURL)
	}
	if repo.items["existing-episode"].Content != "" {
		t.Errorf("Expected pre-existing record to be left untouched")
	}

	if feedRepo.title != "Scenario Podcast" {
		t.Errorf("Expected channel title to be stored, got '%s'", feedRepo.title)
	}
	if len(runRepo.runs) != 1 {
		t.Fatalf("Expected 1 recorded run, got %d", len(runRepo.runs))
	}
	if run := runRepo.runs[0]; !run.Success || run.Inserted != 1 || run.Trigger != "cli" {
		t.Errorf("Expected recorded run to mirror result, got %+v", run)
	}
}

func TestSyncerIsIdempotent(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, scenarioFeed)
	repo := NewMockContentRepository()
	syncer, _, _ := newTestSyncer(server, repo)

	first := syncer.Run(context.Background(), testConfig(server.URL), TriggerAPI)
	if first.Inserted != 2 {
		t.Fatalf("Expected first run to insert 2, got %d", first.Inserted)
	}

	second := syncer.Run(context.Background(), testConfig(server.URL), TriggerAPI)
	if second.Inserted != 0 {
		t.Errorf("Expected second run to insert 0, got %d", second.Inserted)
	}
	if second.Skipped != second.Total {
		t.Errorf("Expected every item skipped on resync, got skipped=%d total=%d", second.Skipped, second.Total)
	}
	if second.Message != "Already up to date" {
		t.Errorf("Expected 'Already up to date', got '%s'", second.Message)
	}
	if len(repo.items) != 2 {
		t.Errorf("Expected store to hold 2 records, got %d", len(repo.items))
	}
}

func TestSyncerFatalFetchFailure(t *testing.T) {
	server := newFeedServer(t, http.StatusInternalServerError, "")
	repo := NewMockContentRepository()
	syncer, _, runRepo := newTestSyncer(server, repo)

	result := syncer.Run(context.Background(), testConfig(server.URL), TriggerScheduler)

	if result.Success {
		t.Error("Expected failure for HTTP 500")
	}
	if result.Error != "HTTP error! status: 500" {
		t.Errorf("Expected error 'HTTP error! status: 500', got '%s'", result.Error)
	}
	if result.Total != 0 || result.Inserted != 0 || result.Skipped != 0 || result.Errors != 0 {
		t.Errorf("Expected zero counts, got %+v", result)
	}
	if repo.inserts != 0 {
		t.Errorf("Expected no item processing, got %d inserts", repo.inserts)
	}
	if len(runRepo.runs) != 1 || runRepo.runs[0].Success {
		t.Errorf("Expected failed run to be recorded")
	}
}

func TestSyncerProbeFailureIsFatal(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(scenarioFeed))
	}))
	defer server.Close()

	repo := NewMockContentRepository()
	repo.pingErr = errors.New("database is locked")
	syncer, _, _ := newTestSyncer(server, repo)

	result := syncer.Run(context.Background(), testConfig(server.URL), TriggerAPI)

	if result.Success {
		t.Error("Expected failure when store is unreachable")
	}
	if result.Error != "database is locked" {
		t.Errorf("Expected probe error, got '%s'", result.Error)
	}
	if requests != 0 {
		t.Errorf("Expected feed not to be fetched, got %d requests", requests)
	}
}

func TestSyncerCountsStoreFailuresAsErrors(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, scenarioFeed)
	repo := NewMockContentRepository()
	repo.insertErr = errors.New("disk I/O error")
	syncer, _, _ := newTestSyncer(server, repo)

	result := syncer.Run(context.Background(), testConfig(server.URL), TriggerAPI)

	if !result.Success {
		t.Fatalf("Expected item failures not to fail the run, got error: %s", result.Error)
	}
	if result.Errors != 2 || result.Skipped != 1 || result.Inserted != 0 {
		t.Errorf("Expected {inserted:0 skipped:1 errors:2}, got {inserted:%d skipped:%d errors:%d}",
			result.Inserted, result.Skipped, result.Errors)
	}
	if result.Message != "Already up to date (2 errors)" {
		t.Errorf("Expected error suffix in message, got '%s'", result.Message)
	}
}

func TestSyncerRecoversItemPanic(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, scenarioFeed)
	repo := NewMockContentRepository()
	repo.panicSlug = "brand-new-episode"
	syncer, _, _ := newTestSyncer(server, repo)

	result := syncer.Run(context.Background(), testConfig(server.URL), TriggerAPI)

	if !result.Success {
		t.Fatalf("Expected run to survive item panic, got error: %s", result.Error)
	}
	if result.Errors != 1 || result.Inserted != 1 || result.Total != 3 {
		t.Errorf("Expected {inserted:1 errors:1 total:3}, got {inserted:%d errors:%d total:%d}",
			result.Inserted, result.Errors, result.Total)
	}
}

func TestSyncerMetadataFailureIsWarningOnly(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, scenarioFeed)
	repo := NewMockContentRepository()
	syncer, feedRepo, _ := newTestSyncer(server, repo)
	feedRepo.updateErr = errors.New("feed not registered")

	result := syncer.Run(context.Background(), testConfig(server.URL), TriggerAPI)

	if !result.Success || result.Inserted != 2 {
		t.Errorf("Expected metadata failure not to affect items, got %+v", result)
	}
}

func TestSyncerRunAll(t *testing.T) {
	good := newFeedServer(t, http.StatusOK, scenarioFeed)
	bad := newFeedServer(t, http.StatusNotFound, "")
	repo := NewMockContentRepository()
	syncer, _, runRepo := newTestSyncer(good, repo)

	goodConfig := testConfig(good.URL)
	badConfig := testConfig(bad.URL)
	badConfig.Name = "broken"

	results := syncer.RunAll(context.Background(), []*feed.Config{goodConfig, badConfig}, TriggerCLI)

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if !results[0].Success || results[0].Feed != "scenario" {
		t.Errorf("Expected first feed to succeed, got %+v", results[0])
	}
	if results[1].Success || results[1].Error != "HTTP error! status: 404" {
		t.Errorf("Expected second feed to fail with 404, got %+v", results[1])
	}
	if len(runRepo.runs) != 2 {
		t.Errorf("Expected 2 recorded runs, got %d", len(runRepo.runs))
	}
}

func TestSummaryMessage(t *testing.T) {
	tests := []struct {
		inserted, errors int
		expected         string
	}{
		{0, 0, "Already up to date"},
		{1, 0, "Synced 1 new episode"},
		{3, 0, "Synced 3 new episodes"},
		{2, 1, "Synced 2 new episodes (1 error)"},
	}

	for _, tt := range tests {
		if got := summaryMessage(tt.inserted, tt.errors); got != tt.expected {
			t.Errorf("summaryMessage(%d, %d): expected '%s', got '%s'", tt.inserted, tt.errors, tt.expected, got)
		}
	}
}

func TestResultWarningsAreBounded(t *testing.T) {
	result := &Result{}
	for i := 0; i < maxWarnings+5; i++ {
		result.addWarning("warning %d", i)
	}
	if len(result.Warnings) != maxWarnings {
		t.Errorf("Expected %d warnings, got %d", maxWarnings, len(result.Warnings))
	}
}

func TestSyncerSkipsFilteredItems(t *testing.T) {
	server := newFeedServer(t, http.StatusOK, scenarioFeed)
	repo := NewMockContentRepository()
	syncer, _, _ := newTestSyncer(server, repo)

	config := testConfig(server.URL)
	config.Filters = []feed.ConfigFilter{{Field: "title", Excludes: []string{"existing"}}}

	result := syncer.Run(context.Background(), config, TriggerAPI)

	if result.Inserted != 1 || result.Skipped != 2 || result.Total != 3 {
		t.Errorf("Expected {inserted:1 skipped:2 total:3}, got {inserted:%d skipped:%d total:%d}",
			result.Inserted, result.Skipped, result.Total)
	}
	if _, ok := repo.items["existing-episode"]; ok {
		t.Error("Expected filtered item not to be stored")
	}
}

func TestSyncerCountsUntitledItemAsSkipped(t *testing.T) {
	const untitledFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Untitled Podcast</title>
    <item>
      <description>An episode nobody gave a title.</description>
      <pubDate>Tue, 02 Jan 2024 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`
	server := newFeedServer(t, http.StatusOK, untitledFeed)
	repo := NewMockContentRepository()
	syncer, _, _ := newTestSyncer(server, repo)

	result := syncer.Run(context.Background(), testConfig(server.URL), TriggerAPI)

	if !result.Success || result.Skipped != 1 || result.Errors != 0 || result.Total != 1 {
		t.Errorf("Expected {skipped:1 errors:0 total:1}, got {skipped:%d errors:%d total:%d}",
			result.Skipped, result.Errors, result.Total)
	}
	if repo.inserts != 0 {
		t.Errorf("Expected no insert attempt, got %d", repo.inserts)
	}
}
