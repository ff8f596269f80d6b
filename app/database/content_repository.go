package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var _ ContentRepository = (*ContentRepo)(nil)

const contentColumns = `id, slug, title, content, excerpt, published_at, audio_url, source, tags,
	link, guid, image_url, duration, episode, feed_name, created_at`

type ContentRepo struct {
	db *DB
}

func NewContentRepository(db *DB) *ContentRepo {
	return &ContentRepo{db: db}
}

func (r *ContentRepo) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach content store: %w", err)
	}
	return nil
}

// GetBySlug returns nil when no record has the slug.
func (r *ContentRepo) GetBySlug(ctx context.Context, slug string) (*Content, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content WHERE slug = ?`, slug)

	content, err := scanContent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get content by slug: %w", err)
	}

	return content, nil
}

// Insert stores a new record and returns its ID. It never updates; a slug
// that is already present yields ErrDuplicateSlug.
func (r *ContentRepo) Insert(ctx context.Context, content Content) (string, error) {
	tags, err := json.Marshal(content.Tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	if content.Tags == nil {
		tags = []byte("[]")
	}

	id := uuid.NewString()

	var audioURL sql.NullString
	if content.AudioURL != nil {
		audioURL = sql.NullString{String: *content.AudioURL, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO content (`+contentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, content.Slug, content.Title, content.Content, content.Excerpt,
		formatTime(content.PublishedAt), audioURL, content.Source, string(tags),
		content.Link, content.GUID, content.ImageURL, content.Duration, content.Episode,
		content.FeedName, formatTime(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("failed to insert content %q: %w", content.Slug, ErrDuplicateSlug)
		}
		return "", fmt.Errorf("failed to insert content: %w", err)
	}

	return id, nil
}

// List returns records newest first.
func (r *ContentRepo) List(ctx context.Context, limit, offset int) ([]Content, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+contentColumns+`
		FROM content
		ORDER BY published_at DESC, created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	var contents []Content
	for rows.Next() {
		content, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		contents = append(contents, *content)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating content rows: %w", err)
	}

	return contents, nil
}

func (r *ContentRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get content count: %w", err)
	}
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContent(row rowScanner) (*Content, error) {
	var (
		content     Content
		publishedAt string
		createdAt   string
		audioURL    sql.NullString
		tags        string
	)

	err := row.Scan(
		&content.ID, &content.Slug, &content.Title, &content.Content, &content.Excerpt,
		&publishedAt, &audioURL, &content.Source, &tags,
		&content.Link, &content.GUID, &content.ImageURL, &content.Duration, &content.Episode,
		&content.FeedName, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if audioURL.Valid {
		value := audioURL.String
		content.AudioURL = &value
	}
	if err := json.Unmarshal([]byte(tags), &content.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	if content.PublishedAt, err = parseTime(publishedAt); err != nil {
		return nil, err
	}
	if content.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &content, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch code := sqliteErr.Code(); {
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE, code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE")
	default:
		return false
	}
}
