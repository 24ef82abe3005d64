package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/madpin/Neureed-sub002/internal/models"
)

// SubscriptionStore reads user subscriptions, categories and user defaults.
// The subscribe/unsubscribe CRUD lives in the hosting application; the
// pipeline only consumes the cascade tiers.
type SubscriptionStore struct {
	db *DB
}

func NewSubscriptionStore(db *DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

// ListForRefresh returns subscription rows joined with every settings tier
// the cascade resolver needs. An empty userID means all users.
func (s *SubscriptionStore) ListForRefresh(ctx context.Context, userID string) ([]models.SubscriptionSettings, error) {
	query := `
		SELECT sub.user_id, sub.feed_id, us.settings, cat.settings, sub.settings
		FROM user_feed_subscriptions sub
		LEFT JOIN user_settings us ON us.user_id = sub.user_id
		LEFT JOIN user_categories cat ON cat.id = sub.category_id
	`
	args := make([]interface{}, 0, 1)
	if userID != "" {
		query += ` WHERE sub.user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY sub.subscribed_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for refresh: %w", err)
	}
	defer rows.Close()

	subs := make([]models.SubscriptionSettings, 0)
	for rows.Next() {
		var sub models.SubscriptionSettings
		var userJSON, categoryJSON, feedJSON []byte

		if err := rows.Scan(&sub.UserID, &sub.FeedID, &userJSON, &categoryJSON, &feedJSON); err != nil {
			return nil, fmt.Errorf("scan subscription settings: %w", err)
		}

		sub.UserDefaults = unmarshalOverride(userJSON)
		sub.CategorySettings = unmarshalOverride(categoryJSON)
		sub.FeedSettings = unmarshalOverride(feedJSON)

		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}

	return subs, nil
}

// ListByUser returns a user's subscriptions.
func (s *SubscriptionStore) ListByUser(ctx context.Context, userID string) ([]models.UserFeedSubscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, feed_id, title_override, category_id, settings, subscribed_at
		FROM user_feed_subscriptions
		WHERE user_id = $1
		ORDER BY subscribed_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions by user: %w", err)
	}
	defer rows.Close()

	subs := make([]models.UserFeedSubscription, 0)
	for rows.Next() {
		var sub models.UserFeedSubscription
		var categoryID sql.NullString
		var settingsJSON []byte

		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.FeedID, &sub.TitleOverride, &categoryID, &settingsJSON, &sub.SubscribedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}

		if categoryID.Valid {
			sub.CategoryID = categoryID.String
		}
		sub.Settings = unmarshalOverride(settingsJSON)

		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}

	return subs, nil
}

// GetUserDefaults loads a user's global settings tier, nil when absent.
func (s *SubscriptionStore) GetUserDefaults(ctx context.Context, userID string) (*models.SettingsOverride, error) {
	var settingsJSON []byte
	err := s.db.QueryRowContext(ctx, `SELECT settings FROM user_settings WHERE user_id = $1`, userID).Scan(&settingsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user defaults: %w", err)
	}
	return unmarshalOverride(settingsJSON), nil
}

// unmarshalOverride decodes a settings blob; empty or malformed blobs behave
// like an absent tier.
func unmarshalOverride(data []byte) *models.SettingsOverride {
	if len(data) == 0 || string(data) == "{}" || string(data) == "null" {
		return nil
	}
	var override models.SettingsOverride
	if err := json.Unmarshal(data, &override); err != nil {
		return nil
	}
	return &override
}
