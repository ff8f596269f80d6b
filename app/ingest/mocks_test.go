package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/lysyi3m/podcast-sync/app/database"
)

// MockContentRepository keeps content in memory keyed by slug
type MockContentRepository struct {
	mu        sync.Mutex
	items     map[string]database.Content
	pingErr   error
	insertErr error
	panicSlug string
	inserts   int
}

func NewMockContentRepository() *MockContentRepository {
	return &MockContentRepository{items: make(map[string]database.Content)}
}

func (m *MockContentRepository) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *MockContentRepository) GetBySlug(ctx context.Context, slug string) (*database.Content, error) {
	if m.panicSlug != "" && slug == m.panicSlug {
		panic("boom")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	content, ok := m.items[slug]
	if !ok {
		return nil, nil
	}
	return &content, nil
}

func (m *MockContentRepository) Insert(ctx context.Context, content database.Content) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inserts++
	if m.insertErr != nil {
		return "", m.insertErr
	}
	if _, exists := m.items[content.Slug]; exists {
		return "", database.ErrDuplicateSlug
	}

	content.ID = content.Slug
	content.CreatedAt = time.Now()
	m.items[content.Slug] = content
	return content.ID, nil
}

func (m *MockContentRepository) List(ctx context.Context, limit, offset int) ([]database.Content, error) {
	return nil, errors.New("not implemented")
}

func (m *MockContentRepository) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

// MockFeedRepository records the last metadata update
type MockFeedRepository struct {
	title     string
	updateErr error
}

func (m *MockFeedRepository) GetFeed(ctx context.Context, feedName string) (*database.Feed, error) {
	return nil, nil
}

func (m *MockFeedRepository) GetFeedCount(ctx context.Context) (int, error) {
	return 0, nil
}

func (m *MockFeedRepository) UpsertFeed(ctx context.Context, feedName, feedURL string) error {
	return nil
}

func (m *MockFeedRepository) UpdateFeedMetadata(ctx context.Context, feedName, title, link, imageURL, language string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.title = title
	return nil
}

// MockSyncRunRepository collects recorded runs
type MockSyncRunRepository struct {
	runs []database.SyncRun
}

func (m *MockSyncRunRepository) RecordRun(ctx context.Context, run database.SyncRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *MockSyncRunRepository) GetLastRun(ctx context.Context, feedName string) (*database.SyncRun, error) {
	if len(m.runs) == 0 {
		return nil, nil
	}
	return &m.runs[len(m.runs)-1], nil
}

func (m *MockSyncRunRepository) GetLastSuccessfulRun(ctx context.Context, feedName string) (*database.SyncRun, error) {
	for i := len(m.runs) - 1; i >= 0; i-- {
		if m.runs[i].Success {
			return &m.runs[i], nil
		}
	}
	return nil, nil
}

func (m *MockSyncRunRepository) ListRuns(ctx context.Context, feedName string, limit int) ([]database.SyncRun, error) {
	return m.runs, nil
}

var (
	_ database.ContentRepository = (*MockContentRepository)(nil)
	_ database.FeedRepository    = (*MockFeedRepository)(nil)
	_ database.SyncRunRepository = (*MockSyncRunRepository)(nil)
)
