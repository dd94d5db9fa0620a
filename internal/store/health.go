package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridianfm/meridian/internal/domain"
)

// Heartbeat upserts a worker's liveness row, called every ~30s by the claim
// loop (§4.3 claim-loop discipline).
func (s *Store) Heartbeat(ctx context.Context, workerType, instanceID, status string) error {
	const q = `
INSERT INTO health_checks (worker_type, instance_id, status, last_heartbeat)
VALUES ($1, $2, $3, now())
ON CONFLICT (worker_type, instance_id) DO UPDATE SET status = EXCLUDED.status, last_heartbeat = now()`
	if _, err := s.pool.Exec(ctx, q, workerType, instanceID, status); err != nil {
		return fmt.Errorf("store: heartbeat: %w", err)
	}
	return nil
}

// ListHealthChecks returns every worker's most recent heartbeat (§8). The
// readiness endpoint does not call it.
func (s *Store) ListHealthChecks(ctx context.Context) ([]domain.HealthCheck, error) {
	const q = `SELECT worker_type, instance_id, status, last_heartbeat FROM health_checks`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: list health checks: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.HealthCheck, error) {
		var h domain.HealthCheck
		if err := row.Scan(&h.WorkerType, &h.InstanceID, &h.Status, &h.LastHeartbeat); err != nil {
			return domain.HealthCheck{}, err
		}
		return h, nil
	})
}

// GCStaleHealthChecks deletes heartbeat rows that have not been refreshed
// within staleAfter, a supplemented operational feature keeping the
// health_checks table from accumulating rows for workers that were
// decommissioned rather than crashed (crashed workers are instead caught by
// the staleness check itself via last_heartbeat age). Intended to run on a
// ~120s cadence alongside SweepStaleLocks.
func (s *Store) GCStaleHealthChecks(ctx context.Context, staleAfter time.Duration) (int, error) {
	const q = `DELETE FROM health_checks WHERE last_heartbeat < now() - $1 * interval '1 second'`
	tag, err := s.pool.Exec(ctx, q, staleAfter.Seconds())
	if err != nil {
		return 0, fmt.Errorf("store: gc stale health checks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
