// Package settings resolves the layered configuration cascade: user global
// defaults < category settings < feed-subscription overrides, over hardcoded
// system fallbacks.
package settings

import "github.com/madpin/Neureed-sub002/internal/models"

// System-wide fallbacks used when no tier sets a field.
const (
	DefaultRefreshIntervalMinutes = 60
	DefaultSummarizeMinWords      = 300
	DefaultMaxAgeDays             = 90
	DefaultMaxArticlesPerFeed     = 500
)

// Defaults returns the hardcoded system fallbacks an empty cascade yields.
func Defaults() models.EffectiveSettings {
	return models.EffectiveSettings{
		RefreshIntervalMinutes: DefaultRefreshIntervalMinutes,
		ExtractionMethod:       models.ExtractionSourceNative,
		MergeStrategy:          models.MergeReplace,
		SummarizeEnabled:       false,
		SummarizeMinWords:      DefaultSummarizeMinWords,
		MaxAgeDays:             DefaultMaxAgeDays,
		MaxArticlesPerFeed:     DefaultMaxArticlesPerFeed,
		PreserveStarred:        true,
	}
}

// Resolve layers the tiers over the defaults, later tiers winning field by
// field. A nil field at any tier is skipped, never an override of "unset".
func Resolve(user, category, feed *models.SettingsOverride) models.EffectiveSettings {
	effective := Defaults()
	for _, tier := range []*models.SettingsOverride{user, category, feed} {
		apply(&effective, tier)
	}
	return effective
}

// ResolveSubscription resolves a joined subscription row.
func ResolveSubscription(sub models.SubscriptionSettings) models.EffectiveSettings {
	return Resolve(sub.UserDefaults, sub.CategorySettings, sub.FeedSettings)
}

func apply(effective *models.EffectiveSettings, tier *models.SettingsOverride) {
	if tier == nil {
		return
	}
	if tier.RefreshIntervalMinutes != nil {
		effective.RefreshIntervalMinutes = *tier.RefreshIntervalMinutes
	}
	if tier.ExtractionMethod != nil {
		effective.ExtractionMethod = *tier.ExtractionMethod
	}
	if tier.MergeStrategy != nil {
		effective.MergeStrategy = *tier.MergeStrategy
	}
	if tier.SummarizeEnabled != nil {
		effective.SummarizeEnabled = *tier.SummarizeEnabled
	}
	if tier.SummarizeMinWords != nil {
		effective.SummarizeMinWords = *tier.SummarizeMinWords
	}
	if tier.MaxAgeDays != nil {
		effective.MaxAgeDays = *tier.MaxAgeDays
	}
	if tier.MaxArticlesPerFeed != nil {
		effective.MaxArticlesPerFeed = *tier.MaxArticlesPerFeed
	}
	if tier.PreserveStarred != nil {
		effective.PreserveStarred = *tier.PreserveStarred
	}
}
