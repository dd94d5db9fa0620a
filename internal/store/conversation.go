package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/meridianfm/meridian/internal/domain"
)

// ListParticipants returns a segment's conversation participants ordered by
// speaking order, used to check whether they need to be derived from
// program_djs (§4.4.2).
func (s *Store) ListParticipants(ctx context.Context, segmentID domain.ID) ([]domain.ConversationParticipant, error) {
	const q = `
SELECT id, segment_id, dj_id, role, "order", character_name, background
FROM conversation_participants WHERE segment_id = $1 ORDER BY "order"`
	rows, err := s.pool.Query(ctx, q, segmentID)
	if err != nil {
		return nil, fmt.Errorf("store: list participants: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ConversationParticipant, error) {
		var p domain.ConversationParticipant
		var role string
		if err := row.Scan(&p.ID, &p.SegmentID, &p.DJID, &role, &p.Order, &p.CharacterName, &p.Background); err != nil {
			return domain.ConversationParticipant{}, err
		}
		p.Role = domain.ProgramDJRole(role)
		return p, nil
	})
}

// CreateParticipants inserts the given conversation participants for a
// segment; the generator derives them from program_djs when the segment
// has none yet (§4.4.2).
func (s *Store) CreateParticipants(ctx context.Context, participants []domain.ConversationParticipant) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: create participants: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
INSERT INTO conversation_participants (id, segment_id, dj_id, role, "order", character_name, background)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for i := range participants {
		p := &participants[i]
		if p.ID == (domain.ID{}) {
			p.ID = domain.NewID()
		}
		if _, err := tx.Exec(ctx, q, p.ID, p.SegmentID, p.DJID, p.Role, p.Order, p.CharacterName, p.Background); err != nil {
			return fmt.Errorf("store: create participants: insert: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: create participants: commit: %w", err)
	}
	return nil
}

// CreateTurns persists the parsed, synthesized conversation turns for a
// multi-speaker segment (§4.4.2).
func (s *Store) CreateTurns(ctx context.Context, turns []domain.ConversationTurn) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: create turns: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const q = `
INSERT INTO conversation_turns (id, segment_id, participant_id, turn_number, speaker_name, text, audio_path, duration_sec)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (segment_id, turn_number) DO UPDATE SET
    speaker_name = EXCLUDED.speaker_name, text = EXCLUDED.text,
    audio_path = EXCLUDED.audio_path, duration_sec = EXCLUDED.duration_sec`
	for i := range turns {
		t := &turns[i]
		if t.ID == (domain.ID{}) {
			t.ID = domain.NewID()
		}
		if _, err := tx.Exec(ctx, q, t.ID, t.SegmentID, t.ParticipantID, t.TurnNumber, t.SpeakerName, t.Text, t.AudioPath, t.DurationSec); err != nil {
			return fmt.Errorf("store: create turns: insert: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: create turns: commit: %w", err)
	}
	return nil
}

// ListTurns returns a segment's conversation turns in turn-number order.
func (s *Store) ListTurns(ctx context.Context, segmentID domain.ID) ([]domain.ConversationTurn, error) {
	const q = `
SELECT id, segment_id, participant_id, turn_number, speaker_name, text, audio_path, duration_sec
FROM conversation_turns WHERE segment_id = $1 ORDER BY turn_number`
	rows, err := s.pool.Query(ctx, q, segmentID)
	if err != nil {
		return nil, fmt.Errorf("store: list turns: %w", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ConversationTurn, error) {
		var t domain.ConversationTurn
		if err := row.Scan(&t.ID, &t.SegmentID, &t.ParticipantID, &t.TurnNumber, &t.SpeakerName, &t.Text, &t.AudioPath, &t.DurationSec); err != nil {
			return domain.ConversationTurn{}, err
		}
		return t, nil
	})
}
