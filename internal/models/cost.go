package models

import "time"

// CostLedgerEntry records one embedding or summarization call's usage.
// Append-only; aggregated on demand, never mutated after creation.
type CostLedgerEntry struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	PromptTokens int       `json:"promptTokens"`
	TotalTokens  int       `json:"totalTokens"`
	CostUSD      float64   `json:"costUsd"`
	UserID       string    `json:"userId,omitempty"`
	ArticleID    string    `json:"articleId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CostWindow aggregates usage over a rolling time window.
type CostWindow struct {
	Calls   int     `json:"calls"`
	Tokens  int64   `json:"tokens"`
	CostUSD float64 `json:"costUsd"`
}

// CostSummary is the on-read aggregation of the cost ledger.
type CostSummary struct {
	TotalCalls  int                   `json:"totalCalls"`
	TotalTokens int64                 `json:"totalTokens"`
	TotalCost   float64               `json:"totalCostUsd"`
	ByProvider  map[string]CostWindow `json:"byProvider"`
	ByUser      map[string]CostWindow `json:"byUser,omitempty"`
	Last24h     CostWindow            `json:"last24h"`
	Last7d      CostWindow            `json:"last7d"`
	Last30d     CostWindow            `json:"last30d"`
}
