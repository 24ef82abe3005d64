package models

// Extraction methods. "source-native" keeps the feed's own content; anything
// else asks the extractor to fetch and parse the article page.
const (
	ExtractionSourceNative = "source-native"
	ExtractionReadability  = "readability"
	ExtractionSelector     = "selector"
)

// Merge strategies for combining extracted and feed-native bodies.
const (
	MergeReplace = "replace"
	MergePrepend = "prepend"
	MergeAppend  = "append"
)

// SettingsOverride is one cascade tier. Every field is optional: a nil field
// is skipped during resolution, it is not an override of "unset".
type SettingsOverride struct {
	RefreshIntervalMinutes *int    `json:"refreshIntervalMinutes,omitempty"`
	ExtractionMethod       *string `json:"extractionMethod,omitempty"`
	MergeStrategy          *string `json:"mergeStrategy,omitempty"`
	SummarizeEnabled       *bool   `json:"summarizeEnabled,omitempty"`
	SummarizeMinWords      *int    `json:"summarizeMinWords,omitempty"`
	MaxAgeDays             *int    `json:"maxAgeDays,omitempty"`
	MaxArticlesPerFeed     *int    `json:"maxArticlesPerFeed,omitempty"`
	PreserveStarred        *bool   `json:"preserveStarred,omitempty"`
}

// EffectiveSettings is the fully resolved configuration for one (user, feed)
// pair. Every field is concrete; absent tiers fall back to system defaults.
type EffectiveSettings struct {
	RefreshIntervalMinutes int    `json:"refreshIntervalMinutes"`
	ExtractionMethod       string `json:"extractionMethod"`
	MergeStrategy          string `json:"mergeStrategy"`
	SummarizeEnabled       bool   `json:"summarizeEnabled"`
	SummarizeMinWords      int    `json:"summarizeMinWords"`
	MaxAgeDays             int    `json:"maxAgeDays"`
	MaxArticlesPerFeed     int    `json:"maxArticlesPerFeed"`
	PreserveStarred        bool   `json:"preserveStarred"`
}
