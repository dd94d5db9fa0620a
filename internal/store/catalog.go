package store

import (
	"context"
	"fmt"
	"time"

	"github.com/meridianfm/meridian/internal/domain"
)

// catalog.go holds CRUD for the operator-authored catalog (voices, DJs,
// programs, format clocks/slots, schedule entries) — the relatively static,
// struct-shaped tables best served by sqlx's struct scanning rather than
// pgx's lower-level Scan, mirroring the split the DOMAIN STACK assigns
// jmoiron/sqlx for this concern and pgx/pgxpool for the high-churn
// job/segment tables.

type voiceRow struct {
	ID          domain.ID `db:"id"`
	Name        string    `db:"name"`
	ModelID     string    `db:"model_id"`
	Language    string    `db:"language"`
	Locale      string    `db:"locale"`
	Gender      string    `db:"gender"`
	QualityTier string    `db:"quality_tier"`
	Available   bool      `db:"available"`
}

// UpsertVoice inserts or replaces a voice row by name.
func (s *Store) UpsertVoice(ctx context.Context, v domain.Voice) (domain.ID, error) {
	if v.ID == (domain.ID{}) {
		v.ID = domain.NewID()
	}
	const q = `
INSERT INTO voices (id, name, model_id, language, locale, gender, quality_tier, available)
VALUES (:id, :name, :model_id, :language, :locale, :gender, :quality_tier, :available)
ON CONFLICT (name) DO UPDATE SET
    model_id = EXCLUDED.model_id, language = EXCLUDED.language, locale = EXCLUDED.locale,
    gender = EXCLUDED.gender, quality_tier = EXCLUDED.quality_tier, available = EXCLUDED.available
RETURNING id`
	row := voiceRow{ID: v.ID, Name: v.Name, ModelID: v.ModelID, Language: v.Language, Locale: v.Locale,
		Gender: v.Gender, QualityTier: v.QualityTier, Available: v.Available}
	rows, err := s.catalog.NamedQueryContext(ctx, q, row)
	if err != nil {
		return domain.ID{}, fmt.Errorf("store: upsert voice: %w", err)
	}
	defer rows.Close()
	var id domain.ID
	if rows.Next() {
		if err := rows.Scan(&id); err != nil {
			return domain.ID{}, fmt.Errorf("store: upsert voice: scan: %w", err)
		}
	}
	return id, nil
}

// GetVoice loads a single voice by id, used by the generator to resolve a
// DJ's TTS model identifier before synthesis.
func (s *Store) GetVoice(ctx context.Context, id domain.ID) (*domain.Voice, error) {
	var r voiceRow
	const q = `SELECT id, name, model_id, language, locale, gender, quality_tier, available FROM voices WHERE id = $1`
	if err := s.catalog.GetContext(ctx, &r, q, id); err != nil {
		return nil, fmt.Errorf("store: get voice: %w", err)
	}
	return &domain.Voice{ID: r.ID, Name: r.Name, ModelID: r.ModelID, Language: r.Language,
		Locale: r.Locale, Gender: r.Gender, QualityTier: r.QualityTier, Available: r.Available}, nil
}

// ListVoices returns every catalog voice.
func (s *Store) ListVoices(ctx context.Context) ([]domain.Voice, error) {
	var rows []struct {
		ID          domain.ID `db:"id"`
		Name        string    `db:"name"`
		ModelID     string    `db:"model_id"`
		Language    string    `db:"language"`
		Locale      string    `db:"locale"`
		Gender      string    `db:"gender"`
		QualityTier string    `db:"quality_tier"`
		Available   bool      `db:"available"`
	}
	if err := s.catalog.SelectContext(ctx, &rows, `SELECT id, name, model_id, language, locale, gender, quality_tier, available FROM voices`); err != nil {
		return nil, fmt.Errorf("store: list voices: %w", err)
	}
	voices := make([]domain.Voice, len(rows))
	for i, r := range rows {
		voices[i] = domain.Voice{ID: r.ID, Name: r.Name, ModelID: r.ModelID, Language: r.Language,
			Locale: r.Locale, Gender: r.Gender, QualityTier: r.QualityTier, Available: r.Available}
	}
	return voices, nil
}

// djRow mirrors domain.DJ for sqlx struct scanning.
type djRow struct {
	ID              domain.ID `db:"id"`
	Name            string    `db:"name"`
	Bio             string    `db:"bio"`
	Personality     string    `db:"personality"`
	Specializations []string  `db:"specializations"`
	VoiceID         domain.ID `db:"voice_id"`
	SpeechSpeed     float64   `db:"speech_speed"`
	Language        string    `db:"language"`
	Active          bool      `db:"active"`
}

// GetDJ loads a single DJ by id, used by the generator to resolve a
// program's speaking roster.
func (s *Store) GetDJ(ctx context.Context, id domain.ID) (*domain.DJ, error) {
	var r djRow
	const q = `SELECT id, name, bio, personality, specializations, voice_id, speech_speed, language, active FROM djs WHERE id = $1`
	if err := s.catalog.GetContext(ctx, &r, q, id); err != nil {
		return nil, fmt.Errorf("store: get dj: %w", err)
	}
	return &domain.DJ{ID: r.ID, Name: r.Name, Bio: r.Bio, Personality: r.Personality,
		Specializations: r.Specializations, VoiceID: r.VoiceID, SpeechSpeed: r.SpeechSpeed,
		Language: r.Language, Active: r.Active}, nil
}

// ListDJsForProgram returns the DJs assigned to a program, ordered by their
// speaking order within it.
func (s *Store) ListDJsForProgram(ctx context.Context, programID domain.ID) ([]domain.ProgramDJ, error) {
	var rows []struct {
		ProgramID domain.ID `db:"program_id"`
		DJID      domain.ID `db:"dj_id"`
		Role      string    `db:"role"`
		Order     int       `db:"order"`
	}
	const q = `SELECT program_id, dj_id, role, "order" FROM program_djs WHERE program_id = $1 ORDER BY "order"`
	if err := s.catalog.SelectContext(ctx, &rows, q, programID); err != nil {
		return nil, fmt.Errorf("store: list djs for program: %w", err)
	}
	out := make([]domain.ProgramDJ, len(rows))
	for i, r := range rows {
		out[i] = domain.ProgramDJ{ProgramID: r.ProgramID, DJID: r.DJID, Role: domain.ProgramDJRole(r.Role), Order: r.Order}
	}
	return out, nil
}

// GetProgram loads a program by id.
func (s *Store) GetProgram(ctx context.Context, id domain.ID) (*domain.Program, error) {
	var r struct {
		ID                 domain.ID `db:"id"`
		Name               string    `db:"name"`
		FormatClockID      domain.ID `db:"format_clock_id"`
		SchedulingHints    string    `db:"scheduling_hints"`
		ConversationFormat string    `db:"conversation_format"`
		Active             bool      `db:"active"`
	}
	const q = `SELECT id, name, format_clock_id, scheduling_hints, conversation_format, active FROM programs WHERE id = $1`
	if err := s.catalog.GetContext(ctx, &r, q, id); err != nil {
		return nil, fmt.Errorf("store: get program: %w", err)
	}
	return &domain.Program{ID: r.ID, Name: r.Name, FormatClockID: r.FormatClockID,
		SchedulingHints: r.SchedulingHints, ConversationFormat: r.ConversationFormat, Active: r.Active}, nil
}

// ListActivePrograms returns every active program, used by the scheduler to
// enumerate what it might materialize segments for.
func (s *Store) ListActivePrograms(ctx context.Context) ([]domain.Program, error) {
	var rows []struct {
		ID                 domain.ID `db:"id"`
		Name               string    `db:"name"`
		FormatClockID      domain.ID `db:"format_clock_id"`
		SchedulingHints    string    `db:"scheduling_hints"`
		ConversationFormat string    `db:"conversation_format"`
		Active             bool      `db:"active"`
	}
	const q = `SELECT id, name, format_clock_id, scheduling_hints, conversation_format, active FROM programs WHERE active = true`
	if err := s.catalog.SelectContext(ctx, &rows, q); err != nil {
		return nil, fmt.Errorf("store: list active programs: %w", err)
	}
	out := make([]domain.Program, len(rows))
	for i, r := range rows {
		out[i] = domain.Program{ID: r.ID, Name: r.Name, FormatClockID: r.FormatClockID,
			SchedulingHints: r.SchedulingHints, ConversationFormat: r.ConversationFormat, Active: r.Active}
	}
	return out, nil
}

// ListScheduleEntries returns the active broadcast schedule entries for a
// program.
func (s *Store) ListScheduleEntries(ctx context.Context, programID domain.ID) ([]domain.BroadcastScheduleEntry, error) {
	var rows []struct {
		ID        domain.ID `db:"id"`
		ProgramID domain.ID `db:"program_id"`
		DayOfWeek *int      `db:"day_of_week"`
		StartTime int64     `db:"start_time_us"`
		EndTime   int64     `db:"end_time_us"`
		Priority  int       `db:"priority"`
		Active    bool      `db:"active"`
	}
	const q = `
SELECT id, program_id, day_of_week,
    (EXTRACT(EPOCH FROM start_time) * 1000000)::bigint AS start_time_us,
    (EXTRACT(EPOCH FROM end_time) * 1000000)::bigint AS end_time_us,
    priority, active
FROM broadcast_schedule_entries WHERE program_id = $1 AND active = true`
	if err := s.catalog.SelectContext(ctx, &rows, q, programID); err != nil {
		return nil, fmt.Errorf("store: list schedule entries: %w", err)
	}
	out := make([]domain.BroadcastScheduleEntry, len(rows))
	for i, r := range rows {
		e := domain.BroadcastScheduleEntry{
			ID:        r.ID,
			ProgramID: r.ProgramID,
			Priority:  r.Priority,
			Active:    r.Active,
			StartTime: time.Duration(r.StartTime) * time.Microsecond,
			EndTime:   time.Duration(r.EndTime) * time.Microsecond,
		}
		if r.DayOfWeek != nil {
			d := time.Weekday(*r.DayOfWeek)
			e.DayOfWeek = &d
		}
		out[i] = e
	}
	return out, nil
}

// GetFormatClock loads a format clock and its ordered slots.
func (s *Store) GetFormatClock(ctx context.Context, id domain.ID) (*domain.FormatClock, []domain.FormatSlot, error) {
	var c struct {
		ID            domain.ID `db:"id"`
		Name          string    `db:"name"`
		Description   string    `db:"description"`
		TotalDuration int       `db:"total_duration"`
	}
	const clockQ = `SELECT id, name, description, total_duration FROM format_clocks WHERE id = $1`
	if err := s.catalog.GetContext(ctx, &c, clockQ, id); err != nil {
		return nil, nil, fmt.Errorf("store: get format clock: %w", err)
	}

	var slotRows []struct {
		ID          domain.ID `db:"id"`
		ClockID     domain.ID `db:"clock_id"`
		SlotType    string    `db:"slot_type"`
		DurationSec int       `db:"duration_sec"`
		OrderIndex  int       `db:"order_index"`
	}
	const slotQ = `SELECT id, clock_id, slot_type, duration_sec, order_index FROM format_slots WHERE clock_id = $1 ORDER BY order_index`
	if err := s.catalog.SelectContext(ctx, &slotRows, slotQ, id); err != nil {
		return nil, nil, fmt.Errorf("store: get format clock: slots: %w", err)
	}

	clock := &domain.FormatClock{ID: c.ID, Name: c.Name, Description: c.Description, TotalDuration: c.TotalDuration}
	slots := make([]domain.FormatSlot, len(slotRows))
	for i, r := range slotRows {
		slots[i] = domain.FormatSlot{ID: r.ID, ClockID: r.ClockID, SlotType: r.SlotType, DurationSec: r.DurationSec, OrderIndex: r.OrderIndex}
	}
	return clock, slots, nil
}
