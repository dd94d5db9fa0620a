package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/meridianfm/meridian/internal/domain"
)

// ErrIllegalTransition is returned by Transition when (from, to) is not an
// edge of the segment state machine, or when the current row state does not
// match the caller's expected `from` (§4.2).
var ErrIllegalTransition = errors.New("store: illegal segment state transition")

// ErrRetriesExhausted is returned by Transition when a failed->queued
// transition is attempted but retry_count >= max_retries.
var ErrRetriesExhausted = errors.New("store: segment retries exhausted")

// CreateSegments inserts a batch of segment rows in a single transaction,
// used by the scheduler when materializing a format clock onto concrete
// broadcast times (§4.3 step 5). Rows with an idempotency_key that already
// exists are skipped rather than erroring, so a re-run of the scheduler is
// safe.
func (s *Store) CreateSegments(ctx context.Context, segments []domain.Segment) ([]domain.ID, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: create segments: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
INSERT INTO segments (id, program_id, slot_type, state, scheduled_start_ts, conversation_format,
    participant_count, language, max_retries, idempotency_key)
VALUES ($1, $2, $3, 'queued', $4, $5, $6, $7, $8, $9)
ON CONFLICT (idempotency_key) DO NOTHING
RETURNING id`

	var created []domain.ID
	for i := range segments {
		seg := &segments[i]
		if seg.ID == (domain.ID{}) {
			seg.ID = domain.NewID()
		}
		if seg.MaxRetries == 0 {
			seg.MaxRetries = 3
		}
		row := tx.QueryRow(ctx, q, seg.ID, seg.ProgramID, seg.SlotType, seg.ScheduledStartTS,
			seg.ConversationFormat, seg.ParticipantCount, seg.Language, seg.MaxRetries, seg.IdempotencyKey)
		var id domain.ID
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				continue // idempotency conflict: already materialized
			}
			return nil, fmt.Errorf("store: create segments: insert: %w", err)
		}
		created = append(created, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("store: create segments: commit: %w", err)
	}
	return created, nil
}

// GetSegment loads a segment by id.
func (s *Store) GetSegment(ctx context.Context, id domain.ID) (*domain.Segment, error) {
	const q = `
SELECT id, program_id, slot_type, state, scheduled_start_ts, script, asset_id, conversation_format,
    participant_count, language, retry_count, max_retries, last_error, tone_score, optimism_pct,
    realism_pct, wonder_pct, idempotency_key, duration_sec, aired_at, created_at, updated_at
FROM segments WHERE id = $1`
	return scanSegment(s.pool.QueryRow(ctx, q, id))
}

// CountSegmentsInRange returns the total segment count and the count of
// those in a terminal "ready or beyond" state, for segments whose
// scheduled_start_ts falls in [from, to). Backs the scheduler's readiness
// check (§4.3).
func (s *Store) CountSegmentsInRange(ctx context.Context, from, to time.Time) (total, ready int, err error) {
	const q = `
SELECT count(*), count(*) FILTER (WHERE state IN ('ready', 'airing', 'aired', 'archived'))
FROM segments WHERE scheduled_start_ts >= $1 AND scheduled_start_ts < $2`
	if err := s.pool.QueryRow(ctx, q, from, to).Scan(&total, &ready); err != nil {
		return 0, 0, fmt.Errorf("store: count segments in range: %w", err)
	}
	return total, ready, nil
}

// ListReadySegments returns segments in the ready state ordered by their
// shifted scheduled_start_ts, the set the playout bridge serves (§4.6).
func (s *Store) ListReadySegments(ctx context.Context, limit int) ([]domain.Segment, error) {
	const q = `
SELECT id, program_id, slot_type, state, scheduled_start_ts, script, asset_id, conversation_format,
    participant_count, language, retry_count, max_retries, last_error, tone_score, optimism_pct,
    realism_pct, wonder_pct, idempotency_key, duration_sec, aired_at, created_at, updated_at
FROM segments WHERE state = 'ready' ORDER BY scheduled_start_ts ASC LIMIT $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list ready segments: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Segment, error) {
		seg, err := scanSegment(row)
		if err != nil {
			return domain.Segment{}, err
		}
		return *seg, nil
	})
}

// Transition moves a segment from its current state to `to`, enforcing the
// fixed transition table of §4.2. The expected current state is supplied by
// the caller (not re-derived) so a stale in-memory segment cannot silently
// clobber a concurrent advance: the UPDATE's WHERE clause pins `state = from`,
// and zero rows affected means either the transition is illegal or the row
// moved under us — both reported as ErrIllegalTransition.
func (s *Store) Transition(ctx context.Context, id domain.ID, from, to domain.SegmentState) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	if from == domain.SegmentFailed && to == domain.SegmentQueued {
		return s.retryFailedSegment(ctx, id)
	}

	const q = `UPDATE segments SET state = $1, updated_at = now() WHERE id = $2 AND state = $3`
	tag, err := s.pool.Exec(ctx, q, to, id, from)
	if err != nil {
		return fmt.Errorf("store: transition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s -> %s (id=%s)", ErrIllegalTransition, from, to, id)
	}

	if s.metrics != nil {
		s.metrics.RecordSegmentTransition(ctx, string(from), string(to))
	}
	return nil
}

func (s *Store) retryFailedSegment(ctx context.Context, id domain.ID) error {
	const q = `
UPDATE segments SET state = 'queued', retry_count = retry_count + 1, last_error = '', updated_at = now()
WHERE id = $1 AND state = 'failed' AND retry_count < max_retries`
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("store: retry failed segment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var retryCount, maxRetries int
		var state string
		if scanErr := s.pool.QueryRow(ctx, `SELECT state, retry_count, max_retries FROM segments WHERE id = $1`, id).
			Scan(&state, &retryCount, &maxRetries); scanErr == nil && state == "failed" && retryCount >= maxRetries {
			return ErrRetriesExhausted
		}
		return ErrIllegalTransition
	}
	if s.metrics != nil {
		s.metrics.RecordSegmentTransition(ctx, string(domain.SegmentFailed), string(domain.SegmentQueued))
	}
	return nil
}

// MarkFailed transitions a segment to failed and records the error, used by
// generator/mastering workers on an unrecoverable stage error (§4.4, §9).
func (s *Store) MarkFailed(ctx context.Context, id domain.ID, from domain.SegmentState, reason string) error {
	if !domain.CanTransition(from, domain.SegmentFailed) {
		return fmt.Errorf("%w: %s -> failed", ErrIllegalTransition, from)
	}
	const q = `UPDATE segments SET state = 'failed', last_error = $1, updated_at = now() WHERE id = $2 AND state = $3`
	tag, err := s.pool.Exec(ctx, q, reason, id, from)
	if err != nil {
		return fmt.Errorf("store: mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrIllegalTransition
	}
	if s.metrics != nil {
		s.metrics.RecordSegmentTransition(ctx, string(from), string(domain.SegmentFailed))
	}
	return nil
}

// UpdateScript persists the generated script, tone scores, and citations for
// a segment, used by the generator after the script/tone/consistency stages
// succeed but before the state transition to rendering.
func (s *Store) UpdateScript(ctx context.Context, id domain.ID, script string, tone domain.ToneReport, citations []domain.ChunkCitation) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: update script: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
UPDATE segments SET script = $1, tone_score = $2, optimism_pct = $3, realism_pct = $4, wonder_pct = $5, updated_at = now()
WHERE id = $6`
	if _, err := tx.Exec(ctx, q, script, tone.Score, tone.OptimismPct, tone.RealismPct, tone.WonderPct, id); err != nil {
		return fmt.Errorf("store: update script: update: %w", err)
	}

	const citeQ = `INSERT INTO segment_citations (segment_id, chunk_id, final_score) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	for _, c := range citations {
		if _, err := tx.Exec(ctx, citeQ, id, c.ChunkID, c.FinalScore); err != nil {
			return fmt.Errorf("store: update script: insert citation: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: update script: commit: %w", err)
	}
	return nil
}

// AttachAsset records the finished asset and duration against a segment,
// used by the mastering worker on completion of the normalizing stage.
func (s *Store) AttachAsset(ctx context.Context, id, assetID domain.ID, durationSec float64) error {
	const q = `UPDATE segments SET asset_id = $1, duration_sec = $2, updated_at = now() WHERE id = $3`
	if _, err := s.pool.Exec(ctx, q, assetID, durationSec, id); err != nil {
		return fmt.Errorf("store: attach asset: %w", err)
	}
	return nil
}

// MarkAired stamps aired_at on a segment transitioning airing -> aired.
func (s *Store) MarkAired(ctx context.Context, id domain.ID, airedAt time.Time) error {
	if err := s.Transition(ctx, id, domain.SegmentAiring, domain.SegmentAired); err != nil {
		return err
	}
	const q = `UPDATE segments SET aired_at = $1, updated_at = now() WHERE id = $2`
	if _, err := s.pool.Exec(ctx, q, airedAt, id); err != nil {
		return fmt.Errorf("store: mark aired: %w", err)
	}
	if s.metrics != nil {
		s.metrics.SegmentsAired.Add(ctx, 1)
	}
	return nil
}

func scanSegment(row pgx.Row) (*domain.Segment, error) {
	var seg domain.Segment
	var assetID *domain.ID
	if err := row.Scan(
		&seg.ID, &seg.ProgramID, &seg.SlotType, &seg.State, &seg.ScheduledStartTS, &seg.Script,
		&assetID, &seg.ConversationFormat, &seg.ParticipantCount, &seg.Language, &seg.RetryCount,
		&seg.MaxRetries, &seg.LastError, &seg.ToneScore, &seg.OptimismPct, &seg.RealismPct,
		&seg.WonderPct, &seg.IdempotencyKey, &seg.DurationSec, &seg.AiredAt, &seg.CreatedAt, &seg.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("store: scan segment: %w", err)
	}
	seg.AssetID = assetID
	return &seg, nil
}
