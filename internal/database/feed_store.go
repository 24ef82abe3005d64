package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/madpin/Neureed-sub002/internal/models"
)

// FeedStore persists feeds in Postgres.
type FeedStore struct {
	db *DB
}

func NewFeedStore(db *DB) *FeedStore {
	return &FeedStore{db: db}
}

const feedColumns = `id, url, title, last_fetched_at, error_count, last_error, fetch_options, created_at, updated_at`

// Get loads one feed by id.
func (s *FeedStore) Get(ctx context.Context, id string) (*models.Feed, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = $1`, id)
	return scanFeed(row)
}

// Create inserts a new feed and returns it with generated fields filled in.
func (s *FeedStore) Create(ctx context.Context, url, title string, opts *models.FetchOptions) (*models.Feed, error) {
	optsJSON, err := marshalFetchOptions(opts)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO feeds (url, title, fetch_options)
		VALUES ($1, $2, $3)
		RETURNING `+feedColumns,
		url, title, optsJSON,
	)
	return scanFeed(row)
}

// ListRefreshable returns every feed below the quarantine threshold.
func (s *FeedStore) ListRefreshable(ctx context.Context, maxErrorCount int) ([]models.Feed, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+feedColumns+`
		FROM feeds
		WHERE error_count < $1
		ORDER BY created_at`,
		maxErrorCount,
	)
	if err != nil {
		return nil, fmt.Errorf("list refreshable feeds: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

// List returns all feeds.
func (s *FeedStore) List(ctx context.Context) ([]models.Feed, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()

	return collectFeeds(rows)
}

// RecordError increments the feed's consecutive-error counter and stores the
// error text.
func (s *FeedStore) RecordError(ctx context.Context, id, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE feeds
		SET error_count = error_count + 1, last_error = $2, updated_at = NOW()
		WHERE id = $1`,
		id, errMsg,
	)
	if err != nil {
		return fmt.Errorf("record feed error: %w", err)
	}
	return requireRow(res)
}

// ClearError resets the error counter and stamps the successful fetch time.
func (s *FeedStore) ClearError(ctx context.Context, id string, fetchedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE feeds
		SET error_count = 0, last_error = '', last_fetched_at = $2, updated_at = NOW()
		WHERE id = $1`,
		id, fetchedAt,
	)
	if err != nil {
		return fmt.Errorf("clear feed error: %w", err)
	}
	return requireRow(res)
}

// ResetQuarantine clears the error counter without touching the fetch
// timestamp, for operator intervention on a quarantined feed.
func (s *FeedStore) ResetQuarantine(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE feeds
		SET error_count = 0, last_error = '', updated_at = NOW()
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("reset feed quarantine: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func marshalFetchOptions(opts *models.FetchOptions) ([]byte, error) {
	if opts == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("marshal fetch options: %w", err)
	}
	return data, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeed(row rowScanner) (*models.Feed, error) {
	var feed models.Feed
	var lastFetched sql.NullTime
	var optsJSON []byte

	err := row.Scan(
		&feed.ID,
		&feed.URL,
		&feed.Title,
		&lastFetched,
		&feed.ErrorCount,
		&feed.LastError,
		&optsJSON,
		&feed.CreatedAt,
		&feed.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan feed: %w", err)
	}

	if lastFetched.Valid {
		t := lastFetched.Time
		feed.LastFetchedAt = &t
	}

	if len(optsJSON) > 0 && string(optsJSON) != "{}" {
		var opts models.FetchOptions
		if err := json.Unmarshal(optsJSON, &opts); err == nil {
			feed.FetchOptions = &opts
		}
	}

	return &feed, nil
}

func collectFeeds(rows *sql.Rows) ([]models.Feed, error) {
	feeds := make([]models.Feed, 0)
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feeds: %w", err)
	}
	return feeds, nil
}
