package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ FeedRepository = (*FeedRepo)(nil)

type FeedRepo struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepo {
	return &FeedRepo{db: db}
}

// UpsertFeed registers a feed from its configuration, updating the URL if it changed.
func (r *FeedRepo) UpsertFeed(ctx context.Context, feedName, feedURL string) error {
	now := formatTime(time.Now())

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feeds (name, feed_url, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			feed_url = excluded.feed_url,
			updated_at = excluded.updated_at
	`, feedName, feedURL, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

// UpdateFeedMetadata stores channel metadata after a successful fetch.
func (r *FeedRepo) UpdateFeedMetadata(ctx context.Context, feedName, title, link, imageURL, language string) error {
	now := formatTime(time.Now())

	result, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET title = ?, link = ?, image_url = ?, language = ?, last_fetched_at = ?, updated_at = ?
		WHERE name = ?
	`, title, link, imageURL, language, now, now, feedName)
	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("feed '%s' is not registered", feedName)
	}

	return nil
}

func (r *FeedRepo) GetFeed(ctx context.Context, feedName string) (*Feed, error) {
	var (
		feed          Feed
		lastFetchedAt sql.NullString
		createdAt     string
		updatedAt     string
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT name, feed_url, title, link, image_url, language, last_fetched_at, created_at, updated_at
		FROM feeds
		WHERE name = ?
	`, feedName).Scan(
		&feed.Name, &feed.FeedURL, &feed.Title, &feed.Link, &feed.ImageURL, &feed.Language,
		&lastFetchedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	if feed.LastFetchedAt, err = parseNullTime(lastFetchedAt); err != nil {
		return nil, err
	}
	if feed.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if feed.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &feed, nil
}

func (r *FeedRepo) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}
