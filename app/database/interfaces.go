package database

import (
	"context"
	"errors"
)

// ErrDuplicateSlug is returned by Insert when another writer stored the slug first.
var ErrDuplicateSlug = errors.New("content with this slug already exists")

type FeedRepository interface {
	GetFeed(ctx context.Context, feedName string) (*Feed, error)
	GetFeedCount(ctx context.Context) (int, error)

	UpsertFeed(ctx context.Context, feedName, feedURL string) error
	UpdateFeedMetadata(ctx context.Context, feedName, title, link, imageURL, language string) error
}

type ContentRepository interface {
	Ping(ctx context.Context) error

	GetBySlug(ctx context.Context, slug string) (*Content, error)
	Insert(ctx context.Context, content Content) (string, error)

	List(ctx context.Context, limit, offset int) ([]Content, error)
	Count(ctx context.Context) (int, error)
}

type SyncRunRepository interface {
	RecordRun(ctx context.Context, run SyncRun) error
	GetLastRun(ctx context.Context, feedName string) (*SyncRun, error)
	GetLastSuccessfulRun(ctx context.Context, feedName string) (*SyncRun, error)
	ListRuns(ctx context.Context, feedName string, limit int) ([]SyncRun, error)
}
