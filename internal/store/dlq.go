package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridianfm/meridian/internal/domain"
)

// ListDLQ returns dead letter queue entries not yet reviewed, oldest first,
// for operator triage (§4.1, §8).
func (s *Store) ListDLQ(ctx context.Context, limit int) ([]domain.DLQEntry, error) {
	const q = `
SELECT id, original_job_id, type, payload, failure_reason, failure_details, attempts_made,
    created_at, reviewed_at, resolution
FROM dead_letter_queue WHERE reviewed_at IS NULL ORDER BY created_at ASC LIMIT $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list dlq: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DLQEntry, error) {
		var e domain.DLQEntry
		var payload []byte
		if err := row.Scan(&e.ID, &e.OriginalJobID, &e.Type, &payload, &e.FailureReason,
			&e.FailureDetails, &e.AttemptsMade, &e.CreatedAt, &e.ReviewedAt, &e.Resolution); err != nil {
			return domain.DLQEntry{}, err
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return domain.DLQEntry{}, fmt.Errorf("unmarshal dlq payload: %w", err)
			}
		}
		return e, nil
	})
}

// ReplayDLQ re-enqueues a DLQ entry's original job and marks the entry
// reviewed with resolution "retried" (§9 dead-letter replay example). The
// DLQ row persists for audit; it is never deleted.
func (s *Store) ReplayDLQ(ctx context.Context, dlqID domain.ID, priority int) (domain.ID, error) {
	var (
		jobType string
		payload []byte
	)
	const selectQ = `SELECT type, payload FROM dead_letter_queue WHERE id = $1 AND reviewed_at IS NULL`
	if err := s.pool.QueryRow(ctx, selectQ, dlqID).Scan(&jobType, &payload); err != nil {
		return domain.ID{}, fmt.Errorf("store: replay dlq: select: %w", err)
	}

	var payloadMap map[string]any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &payloadMap); err != nil {
			return domain.ID{}, fmt.Errorf("store: replay dlq: unmarshal payload: %w", err)
		}
	}

	newJobID, err := s.Enqueue(ctx, jobType, payloadMap, priority, 0)
	if err != nil {
		return domain.ID{}, fmt.Errorf("store: replay dlq: enqueue: %w", err)
	}

	const updateQ = `UPDATE dead_letter_queue SET reviewed_at = now(), resolution = 'retried' WHERE id = $1`
	if _, err := s.pool.Exec(ctx, updateQ, dlqID); err != nil {
		return domain.ID{}, fmt.Errorf("store: replay dlq: mark reviewed: %w", err)
	}

	return newJobID, nil
}

// ResolveDLQ marks a DLQ entry reviewed without replaying it, for an
// operator who decides the failed job should not be retried.
func (s *Store) ResolveDLQ(ctx context.Context, dlqID domain.ID, resolution string) error {
	const q = `UPDATE dead_letter_queue SET reviewed_at = now(), resolution = $1 WHERE id = $2 AND reviewed_at IS NULL`
	tag, err := s.pool.Exec(ctx, q, resolution, dlqID)
	if err != nil {
		return fmt.Errorf("store: resolve dlq: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("store: resolve dlq: entry %s not found or already reviewed", dlqID)
	}
	return nil
}

// DLQBacklogSize reports the number of unreviewed DLQ entries, used by the
// health check's DLQ-backlog signal (§8).
func (s *Store) DLQBacklogSize(ctx context.Context) (int, error) {
	var n int
	const q = `SELECT count(*) FROM dead_letter_queue WHERE reviewed_at IS NULL`
	if err := s.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: dlq backlog size: %w", err)
	}
	return n, nil
}

// PruneReviewedDLQ deletes reviewed DLQ entries older than olderThan,
// bounding the audit table's growth. Not part of §4.1's core contract but a
// reasonable operational supplement; neither the claim loop nor any
// meridian subcommand calls it.
func (s *Store) PruneReviewedDLQ(ctx context.Context, olderThan time.Duration) (int, error) {
	const q = `DELETE FROM dead_letter_queue WHERE reviewed_at IS NOT NULL AND reviewed_at < now() - $1 * interval '1 second'`
	tag, err := s.pool.Exec(ctx, q, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("store: prune reviewed dlq: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
