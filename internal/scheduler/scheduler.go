// Package scheduler materializes the next broadcast day's format clocks
// into concrete segment rows and enqueues a generation job per row (§4.3).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/meridianfm/meridian/internal/domain"
	"github.com/meridianfm/meridian/internal/store"
)

// Mode selects the scheduler's run pattern.
type Mode string

const (
	ModeOnce       Mode = "once"
	ModeContinuous Mode = "continuous"
)

// ReadyThreshold is the ready-fraction below which continuous mode
// regenerates tomorrow's segments (§4.3).
const ReadyThreshold = 0.80

// Scheduler materializes broadcast segments ahead of their airing time.
type Scheduler struct {
	store            *store.Store
	futureYearOffset int
}

// New builds a Scheduler. futureYearOffset is FUTURE_YEAR_OFFSET (§5, §6).
func New(st *store.Store, futureYearOffset int) *Scheduler {
	return &Scheduler{store: st, futureYearOffset: futureYearOffset}
}

// toFutureYear shifts t into the broadcast's time-shifted year, the hard
// invariant that scheduled_start_ts is never a wall-clock time (§5).
func (s *Scheduler) toFutureYear(t time.Time) time.Time {
	return t.AddDate(s.futureYearOffset, 0, 0)
}

// Run executes the scheduler according to mode. "once" materializes
// tomorrow and returns. "continuous" materializes at startup, then blocks
// running daily at 02:00 local until ctx is cancelled, skipping a day when
// tomorrow's readiness is already >= ReadyThreshold.
func (s *Scheduler) Run(ctx context.Context, mode Mode) error {
	if err := s.materializeDay(ctx, time.Now().AddDate(0, 0, 1)); err != nil {
		return fmt.Errorf("scheduler: initial run: %w", err)
	}
	if mode == ModeOnce {
		return nil
	}

	for {
		next := nextTwoAM(time.Now())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Until(next)):
		}

		target := time.Now().AddDate(0, 0, 1)
		ready, err := s.Readiness(ctx, target)
		if err != nil {
			slog.Error("scheduler: readiness check failed", "error", err)
			continue
		}
		if ready >= ReadyThreshold {
			slog.Info("scheduler: tomorrow already sufficiently ready, skipping", "ready_fraction", ready)
			continue
		}
		if err := s.materializeDay(ctx, target); err != nil {
			slog.Error("scheduler: regeneration failed", "error", err)
		}
	}
}

func nextTwoAM(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), 2, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Readiness returns ready/total over all segments whose scheduled_start_ts
// falls inside targetDate, after shifting to the broadcast future year
// (§4.3).
func (s *Scheduler) Readiness(ctx context.Context, targetDate time.Time) (float64, error) {
	dayStart := s.toFutureYear(startOfDay(targetDate))
	dayEnd := dayStart.Add(24 * time.Hour)

	total, ready, err := s.store.CountSegmentsInRange(ctx, dayStart, dayEnd)
	if err != nil {
		return 0, fmt.Errorf("scheduler: readiness: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(ready) / float64(total), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// clockCache memoizes format-clock loads across hours within one
// materialization pass, since most hours in a day share the same clock.
type clockCache struct {
	store *store.Store
	clock map[domain.ID]*domain.FormatClock
	slots map[domain.ID][]domain.FormatSlot
}

func newClockCache(st *store.Store) *clockCache {
	return &clockCache{store: st, clock: map[domain.ID]*domain.FormatClock{}, slots: map[domain.ID][]domain.FormatSlot{}}
}

func (c *clockCache) get(ctx context.Context, id domain.ID) (*domain.FormatClock, []domain.FormatSlot, error) {
	if clock, ok := c.clock[id]; ok {
		return clock, c.slots[id], nil
	}
	clock, slots, err := c.store.GetFormatClock(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	c.clock[id] = clock
	c.slots[id] = slots
	return clock, slots, nil
}

// materializeDay implements the §4.3 algorithm for a single calendar date
// (in wall-clock terms; shifted to the future year at segment-row time).
func (s *Scheduler) materializeDay(ctx context.Context, targetDate time.Time) error {
	programs, err := s.store.ListActivePrograms(ctx)
	if err != nil {
		return fmt.Errorf("load active programs: %w", err)
	}
	if len(programs) == 0 {
		slog.Warn("scheduler: no active programs configured")
		return nil
	}
	programByID := make(map[domain.ID]domain.Program, len(programs))
	for _, p := range programs {
		programByID[p.ID] = p
	}
	fallback := programs[0]

	type scheduleAssignment struct {
		programID domain.ID
		priority  int
	}
	byHour := make([]*scheduleAssignment, 24)

	dayStart := startOfDay(targetDate)
	weekday := dayStart.Weekday()

	for _, p := range programs {
		entries, err := s.store.ListScheduleEntries(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("load schedule entries for program %s: %w", p.ID, err)
		}
		for _, e := range entries {
			if e.DayOfWeek != nil && *e.DayOfWeek != weekday {
				continue
			}
			for hour := 0; hour < 24; hour++ {
				hourOffset := time.Duration(hour) * time.Hour
				if !scheduleCovers(e.StartTime, e.EndTime, hourOffset) {
					continue
				}
				cur := byHour[hour]
				if cur == nil || e.Priority > cur.priority {
					byHour[hour] = &scheduleAssignment{programID: p.ID, priority: e.Priority}
				}
			}
		}
	}

	cache := newClockCache(s.store)
	var toInsert []domain.Segment

	for hour := 0; hour < 24; hour++ {
		var program domain.Program
		if a := byHour[hour]; a != nil {
			program = programByID[a.programID]
		} else {
			program = fallback
		}

		if program.FormatClockID == (domain.ID{}) {
			slog.Warn("scheduler: program has no format clock, skipping hour", "program", program.Name, "hour", hour)
			continue
		}
		_, slots, err := cache.get(ctx, program.FormatClockID)
		if err != nil {
			return fmt.Errorf("load format clock for program %s: %w", program.Name, err)
		}
		if len(slots) == 0 {
			slog.Warn("scheduler: format clock has no slots, skipping hour", "program", program.Name, "hour", hour)
			continue
		}

		djs, err := s.store.ListDJsForProgram(ctx, program.ID)
		if err != nil {
			return fmt.Errorf("load djs for program %s: %w", program.Name, err)
		}
		participantCount := len(djs)
		if participantCount == 0 {
			participantCount = 1
		}

		hourStart := dayStart.Add(time.Duration(hour) * time.Hour)
		cursorMinutes := 0
		for _, slot := range slots {
			startTS := s.toFutureYear(hourStart.Add(time.Duration(cursorMinutes) * time.Minute))
			seg := domain.Segment{
				ProgramID:          program.ID,
				SlotType:           slot.SlotType,
				State:              domain.SegmentQueued,
				ScheduledStartTS:   startTS,
				ConversationFormat: program.ConversationFormat,
				ParticipantCount:   participantCount,
				Language:           "en",
				MaxRetries:         3,
				IdempotencyKey:     fmt.Sprintf("%s:%s", program.ID, startTS.UTC().Format(time.RFC3339)),
			}
			toInsert = append(toInsert, seg)
			cursorMinutes += int(math.Ceil(float64(slot.DurationSec) / 60))
		}
	}

	if len(toInsert) == 0 {
		return nil
	}

	created, err := s.store.CreateSegments(ctx, toInsert)
	if err != nil {
		return fmt.Errorf("create segments: %w", err)
	}

	for _, id := range created {
		if _, err := s.store.Enqueue(ctx, "segment_make", map[string]any{"segment_id": id.String()}, 5, 0); err != nil {
			return fmt.Errorf("enqueue segment_make for %s: %w", id, err)
		}
	}

	slog.Info("scheduler: materialized day", "date", dayStart.Format("2006-01-02"), "segments_created", len(created))
	return nil
}

// scheduleCovers reports whether hourOffset falls within [start, end),
// treating end <= start as a midnight-crossing range that wraps (§4.3 edge
// cases): "hour >= start OR hour < end".
func scheduleCovers(start, end, hourOffset time.Duration) bool {
	if end <= start {
		return hourOffset >= start || hourOffset < end
	}
	return hourOffset >= start && hourOffset < end
}
