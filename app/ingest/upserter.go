package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/lysyi3m/podcast-sync/app/database"
	"github.com/lysyi3m/podcast-sync/app/feed"
)

type Outcome int

const (
	OutcomeInserted Outcome = iota
	OutcomeSkipped          // slug already stored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Upserter stores records first-write-wins: an existing slug is never updated.
type Upserter struct {
	contentRepo database.ContentRepository
	delay       time.Duration
}

func NewUpserter(contentRepo database.ContentRepository, delay time.Duration) *Upserter {
	return &Upserter{
		contentRepo: contentRepo,
		delay:       delay,
	}
}

// Run inserts record unless its slug exists. Every attempt is followed by
// the configured delay to bound the write rate against the store.
func (u *Upserter) Run(ctx context.Context, feedName string, record *feed.Record) (Outcome, error) {
	defer u.pause(ctx)

	existing, err := u.contentRepo.GetBySlug(ctx, record.Slug)
	if err != nil {
		return 0, fmt.Errorf("failed to look up slug %q: %w", record.Slug, err)
	}
	if existing != nil {
		return OutcomeSkipped, nil
	}

	_, err = u.contentRepo.Insert(ctx, database.Content{
		Slug:        record.Slug,
		Title:       record.Title,
		Content:     record.Content,
		Excerpt:     record.Excerpt,
		PublishedAt: record.PublishedAt,
		AudioURL:    record.AudioURL,
		Source:      record.Source,
		Tags:        record.Tags,
		Link:        record.Link,
		GUID:        record.GUID,
		ImageURL:    record.ImageURL,
		Duration:    record.Duration,
		Episode:     record.Episode,
		FeedName:    feedName,
	})
	if err != nil {
		return 0, err
	}

	return OutcomeInserted, nil
}

func (u *Upserter) pause(ctx context.Context) {
	if u.delay <= 0 {
		return
	}

	timer := time.NewTimer(u.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
