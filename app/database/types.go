package database

import (
	"time"
)

type Feed struct {
	Name          string // Configuration feed identifier derived from filename
	FeedURL       string
	Title         string
	Link          string
	ImageURL      string
	Language      string
	LastFetchedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Content is one stored episode. Slug is unique across the table.
type Content struct {
	ID          string
	Slug        string
	Title       string
	Content     string
	Excerpt     string
	PublishedAt time.Time
	AudioURL    *string
	Source      string
	Tags        []string
	Link        string
	GUID        string
	ImageURL    string
	Duration    string
	Episode     string
	FeedName    string
	CreatedAt   time.Time
}

type SyncRun struct {
	ID         string
	FeedName   string
	Trigger    string
	StartedAt  time.Time
	FinishedAt time.Time
	Success    bool
	Inserted   int
	Skipped    int
	Errors     int
	Total      int
	Message    string
	Error      string
}
