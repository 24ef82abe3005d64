package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/madpin/Neureed-sub002/internal/models"
)

// JobRunStore persists job audit records.
type JobRunStore struct {
	db *DB
}

func NewJobRunStore(db *DB) *JobRunStore {
	return &JobRunStore{db: db}
}

// Create inserts a RUNNING row for a starting job and fills in the id.
func (s *JobRunStore) Create(ctx context.Context, run *models.JobRun) error {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO job_runs (job_name, status, triggered_by, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		run.JobName, run.Status, run.TriggeredBy, run.StartedAt,
	)
	if err := row.Scan(&run.ID); err != nil {
		return fmt.Errorf("create job run: %w", err)
	}
	return nil
}

// Finalize transitions a run to its terminal status. Called exactly once per
// run, success or failure.
func (s *JobRunStore) Finalize(ctx context.Context, id, status string, completedAt time.Time, durationMs int64, stats map[string]interface{}, errMsg string) error {
	statsJSON, err := json.Marshal(statsOrEmpty(stats))
	if err != nil {
		return fmt.Errorf("marshal job stats: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE job_runs
		SET status = $2, completed_at = $3, duration_ms = $4, stats = $5, error = $6
		WHERE id = $1`,
		id, status, completedAt, durationMs, statsJSON, errMsg,
	)
	if err != nil {
		return fmt.Errorf("finalize job run: %w", err)
	}
	return requireRow(res)
}

// List returns recent runs, newest first, optionally filtered by job name.
func (s *JobRunStore) List(ctx context.Context, jobName string, limit int) ([]models.JobRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, job_name, status, triggered_by, started_at, completed_at,
			duration_ms, stats, error
		FROM job_runs`
	args := []interface{}{limit}
	if jobName != "" {
		query += ` WHERE job_name = $2`
		args = append(args, jobName)
	}
	query += ` ORDER BY started_at DESC LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list job runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.JobRun, 0)
	for rows.Next() {
		var run models.JobRun
		var completedAt sql.NullTime
		var statsJSON []byte

		if err := rows.Scan(
			&run.ID,
			&run.JobName,
			&run.Status,
			&run.TriggeredBy,
			&run.StartedAt,
			&completedAt,
			&run.DurationMs,
			&statsJSON,
			&run.Error,
		); err != nil {
			return nil, fmt.Errorf("scan job run: %w", err)
		}

		if completedAt.Valid {
			t := completedAt.Time
			run.CompletedAt = &t
		}
		if len(statsJSON) > 0 && string(statsJSON) != "{}" {
			_ = json.Unmarshal(statsJSON, &run.Stats)
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job runs: %w", err)
	}

	return runs, nil
}

func statsOrEmpty(stats map[string]interface{}) map[string]interface{} {
	if stats == nil {
		return map[string]interface{}{}
	}
	return stats
}
