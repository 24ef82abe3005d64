package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/madpin/Neureed-sub002/internal/models"
)

// CostLedgerStore persists the append-only usage ledger. Entries are never
// mutated; all aggregation happens on read.
type CostLedgerStore struct {
	db *DB
}

func NewCostLedgerStore(db *DB) *CostLedgerStore {
	return &CostLedgerStore{db: db}
}

// Append records one backend call's usage.
func (s *CostLedgerStore) Append(ctx context.Context, entry *models.CostLedgerEntry) error {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO cost_ledger (provider, model, prompt_tokens, total_tokens, cost_usd, user_id, article_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))
		RETURNING id, created_at`,
		entry.Provider, entry.Model, entry.PromptTokens, entry.TotalTokens,
		entry.CostUSD, entry.UserID, entry.ArticleID,
	)
	if err := row.Scan(&entry.ID, &entry.CreatedAt); err != nil {
		return fmt.Errorf("append cost ledger entry: %w", err)
	}
	return nil
}

// Summary aggregates the whole ledger: totals, per-provider and per-user
// breakdowns, and rolling 24h/7d/30d windows.
func (s *CostLedgerStore) Summary(ctx context.Context) (*models.CostSummary, error) {
	summary := &models.CostSummary{
		ByProvider: make(map[string]models.CostWindow),
		ByUser:     make(map[string]models.CostWindow),
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM cost_ledger`,
	).Scan(&summary.TotalCalls, &summary.TotalTokens, &summary.TotalCost)
	if err != nil {
		return nil, fmt.Errorf("cost ledger totals: %w", err)
	}

	if err := s.groupBy(ctx, `provider`, summary.ByProvider); err != nil {
		return nil, err
	}
	if err := s.groupBy(ctx, `user_id::text`, summary.ByUser); err != nil {
		return nil, err
	}

	now := time.Now()
	windows := []struct {
		since time.Time
		dest  *models.CostWindow
	}{
		{now.Add(-24 * time.Hour), &summary.Last24h},
		{now.Add(-7 * 24 * time.Hour), &summary.Last7d},
		{now.Add(-30 * 24 * time.Hour), &summary.Last30d},
	}
	for _, w := range windows {
		if err := s.window(ctx, w.since, w.dest); err != nil {
			return nil, err
		}
	}

	return summary, nil
}

func (s *CostLedgerStore) groupBy(ctx context.Context, column string, dest map[string]models.CostWindow) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM cost_ledger
		GROUP BY %s`, column, column),
	)
	if err != nil {
		return fmt.Errorf("cost ledger group by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key sql.NullString
		var win models.CostWindow
		if err := rows.Scan(&key, &win.Calls, &win.Tokens, &win.CostUSD); err != nil {
			return fmt.Errorf("scan cost ledger group: %w", err)
		}
		if !key.Valid || key.String == "" {
			continue
		}
		dest[key.String] = win
	}
	return rows.Err()
}

func (s *CostLedgerStore) window(ctx context.Context, since time.Time, dest *models.CostWindow) error {
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost_usd), 0)
		FROM cost_ledger
		WHERE created_at >= $1`,
		since,
	).Scan(&dest.Calls, &dest.Tokens, &dest.CostUSD)
	if err != nil {
		return fmt.Errorf("cost ledger window: %w", err)
	}
	return nil
}
