package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var _ SyncRunRepository = (*SyncRunRepo)(nil)

const syncRunColumns = `id, feed_name, triggered_by, started_at, finished_at, success,
	inserted, skipped, errors, total, message, error`

type SyncRunRepo struct {
	db *DB
}

func NewSyncRunRepository(db *DB) *SyncRunRepo {
	return &SyncRunRepo{db: db}
}

// RecordRun stores the outcome of one sync. A missing ID is generated.
func (r *SyncRunRepo) RecordRun(ctx context.Context, run SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_runs (`+syncRunColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.FeedName, run.Trigger, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Success,
		run.Inserted, run.Skipped, run.Errors, run.Total, run.Message, run.Error)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}

	return nil
}

func (r *SyncRunRepo) GetLastRun(ctx context.Context, feedName string) (*SyncRun, error) {
	return r.getOne(ctx, `
		SELECT `+syncRunColumns+`
		FROM sync_runs
		WHERE feed_name = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, feedName)
}

// GetLastSuccessfulRun is what the scheduler compares against the sync interval.
func (r *SyncRunRepo) GetLastSuccessfulRun(ctx context.Context, feedName string) (*SyncRun, error) {
	return r.getOne(ctx, `
		SELECT `+syncRunColumns+`
		FROM sync_runs
		WHERE feed_name = ? AND success = 1
		ORDER BY started_at DESC
		LIMIT 1
	`, feedName)
}

func (r *SyncRunRepo) ListRuns(ctx context.Context, feedName string, limit int) ([]SyncRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+syncRunColumns+`
		FROM sync_runs
		WHERE feed_name = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync run row: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync run rows: %w", err)
	}

	return runs, nil
}

func (r *SyncRunRepo) getOne(ctx context.Context, query string, args ...any) (*SyncRun, error) {
	run, err := scanSyncRun(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}
	return run, nil
}

func scanSyncRun(row rowScanner) (*SyncRun, error) {
	var (
		run        SyncRun
		startedAt  string
		finishedAt string
	)

	err := row.Scan(
		&run.ID, &run.FeedName, &run.Trigger, &startedAt, &finishedAt, &run.Success,
		&run.Inserted, &run.Skipped, &run.Errors, &run.Total, &run.Message, &run.Error,
	)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseTime(finishedAt); err != nil {
		return nil, err
	}

	return &run, nil
}
