package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridianfm/meridian/internal/domain"
)

// ErrInvalidPriority is returned by Enqueue when priority falls outside
// [1,10] (§4.1).
var ErrInvalidPriority = errors.New("store: priority must be in [1,10]")

// backoffBase is the exponential-backoff base delay: the nth retry is
// scheduled base * 2^(attempts-1) seconds out (§4.1, §9 propagation policy).
const backoffBase = 300 * time.Second

// Enqueue inserts a new job of the given type and returns its id. If
// delay == 0 it also issues a NOTIFY on channel "new_job_<type>" carrying the
// job id, so idle claim-loops waiting on that channel wake immediately.
func (s *Store) Enqueue(ctx context.Context, jobType string, payload map[string]any, priority int, delay time.Duration) (domain.ID, error) {
	if priority < 1 || priority > 10 {
		return domain.ID{}, ErrInvalidPriority
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return domain.ID{}, fmt.Errorf("store: marshal payload: %w", err)
	}

	id := domain.NewID()
	scheduledFor := time.Now().Add(delay)

	const q = `
INSERT INTO jobs (id, type, payload, state, priority, scheduled_for, max_attempts)
VALUES ($1, $2, $3, 'pending', $4, $5, $6)`

	if _, err := s.pool.Exec(ctx, q, id, jobType, payloadJSON, priority, scheduledFor, defaultMaxAttempts); err != nil {
		return domain.ID{}, fmt.Errorf("store: enqueue: %w", err)
	}

	if delay == 0 {
		if _, err := s.pool.Exec(ctx, "SELECT pg_notify($1, $2)", newJobChannel(jobType), id.String()); err != nil {
			return domain.ID{}, fmt.Errorf("store: notify: %w", err)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordJobEnqueued(ctx, jobType)
	}

	return id, nil
}

// defaultMaxAttempts is the max_attempts Enqueue writes for every job type,
// kb_index included; §4.1 example traces use 3. The schema's column default
// of 5 applies only to rows inserted without Enqueue.
const defaultMaxAttempts = 3

// newJobChannel returns the change-notification channel name for a job type
// per §4.1/§8: "new_job_<type>".
func newJobChannel(jobType string) string {
	return "new_job_" + jobType
}

// Claim atomically selects the single eligible job of the given type with
// the highest priority and oldest age whose lease has expired or is null,
// whose scheduled_for has passed, and whose attempts are below max_attempts;
// marks it processing, sets the lease, and increments attempts. Returns nil,
// nil if no eligible job exists. Concurrent claimants never block each other
// — FOR UPDATE SKIP LOCKED makes losers move on to the next candidate row.
//
// The tie-break among same-priority jobs is created_at, not scheduled_for
// (§4.1): a retried job's scheduled_for is pushed into the future by
// exponential backoff (Fail), so ordering on it would let a once-retried
// job cut in front of, or starve behind, a genuinely older never-retried
// job at the same priority.
func (s *Store) Claim(ctx context.Context, jobType, workerID string, lease time.Duration) (*domain.Job, error) {
	const q = `
UPDATE jobs SET
    state        = 'processing',
    locked_until = now() + $1 * interval '1 second',
    locked_by    = $2,
    attempts     = attempts + 1,
    started_at   = COALESCE(started_at, now()),
    updated_at   = now()
WHERE id = (
    SELECT id FROM jobs
    WHERE type = $3
      AND attempts < max_attempts
      AND scheduled_for <= now()
      AND (state = 'pending' OR (state = 'processing' AND locked_until < now()))
    ORDER BY priority DESC, created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING id, type, payload, state, priority, scheduled_for, locked_until, locked_by,
          attempts, max_attempts, started_at, created_at, updated_at`

	row := s.pool.QueryRow(ctx, q, lease.Seconds(), workerID, jobType)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: claim: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordJobClaimed(ctx, jobType)
	}
	return job, nil
}

// Complete transitions a job from processing to completed and clears its
// lease. Idempotent on an already-completed job; a no-op on a job not
// currently processing (it may have been reclaimed by a competing worker
// after this worker's lease expired, in which case that worker's own
// complete/fail call is authoritative).
func (s *Store) Complete(ctx context.Context, jobID domain.ID) (bool, error) {
	const q = `
UPDATE jobs SET state = 'completed', locked_until = NULL, updated_at = now()
WHERE id = $1 AND state IN ('processing', 'completed')`

	tag, err := s.pool.Exec(ctx, q, jobID)
	if err != nil {
		return false, fmt.Errorf("store: complete: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FailOutcome reports what Fail did with the job: it either rescheduled it
// for retry, or moved it to the dead letter queue.
type FailOutcome string

const (
	FailOutcomeRetry FailOutcome = "retry"
	FailOutcomeDLQ   FailOutcome = "dlq"
)

// Fail records a failure against a processing job. If attempts remain below
// max_attempts, the job is reset to pending with an exponential backoff
// scheduled_for. Otherwise a dead_letter_queue row is inserted with the full
// payload and failure history, and the job row is deleted (§4.1, §9).
func (s *Store) Fail(ctx context.Context, jobID domain.ID, reason, details string) (FailOutcome, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("store: fail: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		jobType  string
		payload  []byte
		attempts int
		maxAtt   int
	)
	const selectQ = `SELECT type, payload, attempts, max_attempts FROM jobs WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, selectQ, jobID).Scan(&jobType, &payload, &attempts, &maxAtt); err != nil {
		return "", fmt.Errorf("store: fail: select: %w", err)
	}

	if attempts < maxAtt {
		backoff := backoffBase * time.Duration(1<<uint(attempts-1))
		const retryQ = `
UPDATE jobs SET state = 'pending', locked_until = NULL, locked_by = '',
    scheduled_for = now() + $2 * interval '1 second', updated_at = now()
WHERE id = $1`
		if _, err := tx.Exec(ctx, retryQ, jobID, backoff.Seconds()); err != nil {
			return "", fmt.Errorf("store: fail: retry update: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return "", fmt.Errorf("store: fail: commit: %w", err)
		}
		if s.metrics != nil {
			s.metrics.RecordJobFailed(ctx, jobType, "retry")
		}
		return FailOutcomeRetry, nil
	}

	dlqID := domain.NewID()
	const insertDLQ = `
INSERT INTO dead_letter_queue (id, original_job_id, type, payload, failure_reason, failure_details, attempts_made)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insertDLQ, dlqID, jobID, jobType, payload, reason, details, attempts); err != nil {
		return "", fmt.Errorf("store: fail: insert dlq: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, jobID); err != nil {
		return "", fmt.Errorf("store: fail: delete job: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("store: fail: commit: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordJobFailed(ctx, jobType, "dlq")
	}
	return FailOutcomeDLQ, nil
}

// SweepStaleLocks reclaims jobs whose lease has expired by resetting them to
// pending, defensively covering workers that crashed without calling Fail
// (§4.1 failure model). Intended to run at least every 60s. Returns the
// number of jobs reclaimed.
func (s *Store) SweepStaleLocks(ctx context.Context) (int, error) {
	const q = `
UPDATE jobs SET state = 'pending', locked_until = NULL, locked_by = '', updated_at = now()
WHERE state = 'processing' AND locked_until < now()`

	tag, err := s.pool.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("store: sweep stale locks: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// WaitForJob blocks until a NOTIFY arrives on the new_job_<type> channel or
// timeout elapses, per the claim-loop discipline of §4.3/§9: claim, and if
// none, wait for a change-notification or timeout (<=5s) then retry.
func (s *Store) WaitForJob(ctx context.Context, jobType string, timeout time.Duration) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("store: wait for job: acquire: %w", err)
	}
	defer conn.Release()

	channel := newJobChannel(jobType)
	if _, err := conn.Exec(ctx, "LISTEN \""+channel+"\""); err != nil {
		return fmt.Errorf("store: wait for job: listen: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err = conn.Conn().WaitForNotification(waitCtx)
	if err != nil && waitCtx.Err() != nil {
		return nil // timed out, caller retries the claim loop
	}
	return err
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		j         domain.Job
		payload   []byte
		scheduled time.Time
	)
	if err := row.Scan(
		&j.ID, &j.Type, &payload, &j.State, &j.Priority, &scheduled,
		&j.LockedUntil, &j.LockedBy, &j.Attempts, &j.MaxAttempts,
		&j.StartedAt, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		return nil, err
	}
	j.ScheduledFor = scheduled
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &j.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &j, nil
}
