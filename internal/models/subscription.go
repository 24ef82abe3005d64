package models

import "time"

// UserFeedSubscription joins a user to a feed. Deleting the feed or the user
// cascades; deleting a category only un-assigns it.
type UserFeedSubscription struct {
	ID            string            `json:"id"`
	UserID        string            `json:"userId"`
	FeedID        string            `json:"feedId"`
	TitleOverride string            `json:"titleOverride,omitempty"`
	CategoryID    string            `json:"categoryId,omitempty"`
	Settings      *SettingsOverride `json:"settings,omitempty"`
	SubscribedAt  time.Time         `json:"subscribedAt"`
}

// UserCategory is a user-owned grouping whose settings act as a default tier
// between the user's global defaults and a subscription's own override.
type UserCategory struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Name      string            `json:"name"`
	Settings  *SettingsOverride `json:"settings,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

// SubscriptionSettings is a subscription row joined with the settings blobs
// of every cascade tier, as the refresh driver consumes it.
type SubscriptionSettings struct {
	UserID           string            `json:"userId"`
	FeedID           string            `json:"feedId"`
	UserDefaults     *SettingsOverride `json:"userDefaults,omitempty"`
	CategorySettings *SettingsOverride `json:"categorySettings,omitempty"`
	FeedSettings     *SettingsOverride `json:"feedSettings,omitempty"`
}
