package models

// RefreshResult is the terminal outcome of one feed's refresh attempt.
type RefreshResult struct {
	FeedID              string         `json:"feedId"`
	Success             bool           `json:"success"`
	NewCount            int            `json:"newCount"`
	UpdatedCount        int            `json:"updatedCount"`
	SkippedCount        int            `json:"skippedCount"`
	Error               string         `json:"error,omitempty"`
	DurationMs          int64          `json:"durationMs"`
	EmbeddingsGenerated int            `json:"embeddingsGenerated,omitempty"`
	Cleanup             *CleanupResult `json:"cleanup,omitempty"`
}

// BatchError pairs a failed feed with its error text.
type BatchError struct {
	FeedID string `json:"feedId"`
	Error  string `json:"error"`
}

// BatchStats aggregates a batch of per-feed refresh results. Always derived
// by reducing the result list, never accumulated incrementally.
type BatchStats struct {
	TotalFeeds           int          `json:"totalFeeds"`
	Successful           int          `json:"successful"`
	Failed               int          `json:"failed"`
	TotalNewArticles     int          `json:"totalNewArticles"`
	TotalUpdatedArticles int          `json:"totalUpdatedArticles"`
	AverageDurationMs    int64        `json:"averageDurationMs"`
	Errors               []BatchError `json:"errors,omitempty"`
}

// CleanupResult reports what the retention engine removed. An article
// deleted by both rules is counted once in Deleted.
type CleanupResult struct {
	Deleted int `json:"deleted"`
	ByAge   int `json:"byAge"`
	ByCount int `json:"byCount"`
}

// EmbeddingBatchResult summarizes one embedding backfill run.
type EmbeddingBatchResult struct {
	Processed        int `json:"processed"`
	Failed           int `json:"failed"`
	TotalTokens      int `json:"totalTokens"`
	BatchesProcessed int `json:"batchesProcessed"`
}
