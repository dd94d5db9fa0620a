// Package domain holds the entity types shared across Meridian's store,
// scheduler, generator, mastering, and playout components. Types here mirror
// the station's data model: programs and DJs that front them, format clocks
// that template an hour of broadcast, and the segments/assets produced as
// that template is filled in by the content-production pipeline.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ID is an opaque 128-bit identifier shared by every entity in the system.
type ID = uuid.UUID

// NewID generates a fresh random identifier.
func NewID() ID { return uuid.New() }

// Voice is a synthesizable speaking voice, created by an operator and
// referenced by one or more DJs. Immutable once a segment has been recorded
// with it.
type Voice struct {
	ID           ID
	Name         string
	ModelID      string // provider-specific TTS voice/model identifier
	Language     string
	Locale       string
	Gender       string
	QualityTier  string
	Available    bool
	CreatedAt    time.Time
}

// DJ is an on-air personality: a persona description, speaking voice, and
// speech parameters referenced by the programs it hosts.
type DJ struct {
	ID              ID
	Name            string
	Bio             string
	Personality     string
	Specializations []string
	VoiceID         ID
	SpeechSpeed     float64 // 0.5-2.0, 1.0 = provider default
	Language        string
	Active          bool
	CreatedAt       time.Time
}

// Program is a named show that airs according to a BroadcastScheduleEntry and
// follows the structure of a FormatClock.
type Program struct {
	ID                 ID
	Name               string
	FormatClockID      ID
	SchedulingHints    string
	ConversationFormat string // e.g. "interview"; empty = monologue
	Active             bool
	CreatedAt          time.Time
}

// ProgramDJRole is the speaking role a DJ plays within a program.
type ProgramDJRole string

const (
	RoleHost     ProgramDJRole = "host"
	RoleCoHost   ProgramDJRole = "co-host"
	RoleGuest    ProgramDJRole = "guest"
	RolePanelist ProgramDJRole = "panelist"
)

// ProgramDJ is the join entity between Program and DJ: a (program, dj) pair
// is unique, carrying the DJ's role and speaking order within the program.
type ProgramDJ struct {
	ProgramID ID
	DJID      ID
	Role      ProgramDJRole
	Order     int
}

// FormatClock is a reusable hour-long template listing the slot types and
// durations that make up a broadcast hour. TotalDuration must equal 3600s at
// authoring time; this is descriptive at schedule time (§4.3 edge cases).
type FormatClock struct {
	ID            ID
	Name          string
	Description   string
	TotalDuration int // seconds, should be 3600
	CreatedAt     time.Time
}

// FormatSlot is one ordered entry within a FormatClock.
type FormatSlot struct {
	ID            ID
	ClockID       ID
	SlotType      string
	DurationSec   int
	OrderIndex    int
}

// BroadcastScheduleEntry maps a program onto a recurring time window.
// DayOfWeek is nil for a daily entry. Conflicts between overlapping entries
// are resolved by Priority (higher wins).
type BroadcastScheduleEntry struct {
	ID        ID
	ProgramID ID
	DayOfWeek *time.Weekday
	StartTime time.Duration // offset into the day
	EndTime   time.Duration
	Priority  int
	Active    bool
}

// SegmentState is a node in the fixed state-machine DAG described in §4.2.
type SegmentState string

const (
	SegmentQueued      SegmentState = "queued"
	SegmentRetrieving  SegmentState = "retrieving"
	SegmentGenerating  SegmentState = "generating"
	SegmentRendering   SegmentState = "rendering"
	SegmentNormalizing SegmentState = "normalizing"
	SegmentReady       SegmentState = "ready"
	SegmentAiring      SegmentState = "airing"
	SegmentAired       SegmentState = "aired"
	SegmentArchived    SegmentState = "archived"
	SegmentFailed      SegmentState = "failed"
)

// segmentTransitions enumerates every legal (from, to) edge of the segment
// state machine. Any pair absent from this map is rejected by the store layer
// (§4.2). failed -> queued additionally requires retry_count < max_retries,
// checked separately by the caller.
var segmentTransitions = map[SegmentState]map[SegmentState]bool{
	SegmentQueued:      {SegmentRetrieving: true},
	SegmentRetrieving:  {SegmentGenerating: true, SegmentFailed: true},
	SegmentGenerating:  {SegmentRendering: true, SegmentFailed: true},
	SegmentRendering:   {SegmentNormalizing: true, SegmentFailed: true},
	SegmentNormalizing: {SegmentReady: true, SegmentFailed: true},
	SegmentReady:       {SegmentAiring: true},
	SegmentAiring:      {SegmentAired: true},
	SegmentAired:       {SegmentArchived: true},
	SegmentFailed:      {SegmentQueued: true},
}

// CanTransition reports whether moving a segment from `from` to `to` is a
// legal edge in the state machine, independent of any additional guard (such
// as the failed->queued retry-count check, which the caller must apply).
func CanTransition(from, to SegmentState) bool {
	edges, ok := segmentTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// TerminalStates are the states in which a segment's sequence of transitions
// may legitimately come to rest absent an operator retry (§8).
var TerminalStates = map[SegmentState]bool{
	SegmentReady:    true,
	SegmentAiring:   true,
	SegmentAired:    true,
	SegmentArchived: true,
	SegmentFailed:   true,
}

// Segment is a concrete, scheduled instance of a FormatSlot for a program at
// a specific (shifted) broadcast time.
type Segment struct {
	ID                 ID
	ProgramID          ID
	SlotType           string
	State              SegmentState
	ScheduledStartTS   time.Time // in the shifted broadcast year; never wall time
	Script             string
	Citations          []ChunkCitation
	AssetID            *ID
	ConversationFormat string
	ParticipantCount   int
	Language           string
	RetryCount         int
	MaxRetries         int
	LastError          string
	ToneScore          float64
	OptimismPct        float64
	RealismPct         float64
	WonderPct          float64
	IdempotencyKey     string
	DurationSec        float64
	AiredAt            *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ChunkCitation is a persisted reference to a knowledge chunk used as source
// material for a segment's script.
type ChunkCitation struct {
	ChunkID    ID
	FinalScore float64
}

// ConversationParticipant is a speaker in a multi-voice segment.
type ConversationParticipant struct {
	ID        ID
	SegmentID ID
	DJID      ID
	Role      ProgramDJRole
	Order     int
	CharacterName string
	Background    string
}

// ConversationTurn is a single synthesized utterance within a multi-speaker
// segment. TurnNumber is unique per segment.
type ConversationTurn struct {
	ID            ID
	SegmentID     ID
	ParticipantID ID
	TurnNumber    int
	SpeakerName   string
	Text          string
	AudioPath     string
	DurationSec   float64
}

// AssetValidationStatus tracks an Asset through the mastering quality gate.
type AssetValidationStatus string

const (
	AssetPending   AssetValidationStatus = "pending"
	AssetPassed    AssetValidationStatus = "passed"
	AssetFailed    AssetValidationStatus = "failed"
)

// Asset is a stored audio file. ContentHash is globally unique; re-storing
// identical bytes returns the existing row (§4.4.5, §8).
type Asset struct {
	ID                ID
	StoragePath       string
	RawStoragePath    string
	ContentType       string
	ContentHash       string
	IntegratedLoudness float64 // LUFS
	PeakLevel          float64 // dBFS
	DurationSec        float64
	SizeBytes          int64
	ValidationStatus   AssetValidationStatus
	CreatedAt          time.Time
}

// KnowledgeChunk is a retrievable fragment of the worldbuilding corpus.
type KnowledgeChunk struct {
	ID         ID
	SourceRef  string // document id or event id
	Text       string
	OrderIndex int
	Language   string
	CreatedAt  time.Time
}

// JobState is the lifecycle state of a durable queue entry (§4.1).
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Job is a durable unit of work claimed by exactly one worker at a time via a
// time-bounded lease.
type Job struct {
	ID           ID
	Type         string
	Payload      map[string]any
	State        JobState
	Priority     int // 1-10
	ScheduledFor time.Time
	LockedUntil  *time.Time
	LockedBy     string
	Attempts     int
	MaxAttempts  int
	StartedAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// DLQEntry is the terminal record for a job that exhausted its retries.
type DLQEntry struct {
	ID             ID
	OriginalJobID  ID
	Type           string
	Payload        map[string]any
	FailureReason  string
	FailureDetails string
	AttemptsMade   int
	CreatedAt      time.Time
	ReviewedAt     *time.Time
	Resolution     string
}

// HealthCheck is a liveness row upserted periodically by each live worker.
type HealthCheck struct {
	WorkerType    string
	InstanceID    string
	Status        string
	LastHeartbeat time.Time
}

// ToneIssue is a single concern raised by the tone analyzer (§4.4.3).
type ToneIssue struct {
	Category string
	Detail   string
}

// ToneReport is the full output of the tone analyzer.
type ToneReport struct {
	OptimismPct float64
	RealismPct  float64
	WonderPct   float64
	Score       float64
	Issues      []ToneIssue
	Suggestions []string
}

// Acceptable reports whether the tone score clears the §4.4.3 threshold.
func (r ToneReport) Acceptable() bool { return r.Score >= 70 }

// ConsistencySeverity ranks a lore contradiction by how serious it is.
type ConsistencySeverity string

const (
	SeverityMinor    ConsistencySeverity = "minor"
	SeverityModerate ConsistencySeverity = "moderate"
	SeverityMajor    ConsistencySeverity = "major"
)

// ConsistencyIssue is a single detected contradiction against the canon
// facts table (§4.4.4).
type ConsistencyIssue struct {
	Category string
	Key      string
	Severity ConsistencySeverity
	Detail   string
}

// HasMajor reports whether any issue in the slice is a major contradiction,
// which halts segment generation (§4.4.1 step 6).
func HasMajor(issues []ConsistencyIssue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityMajor {
			return true
		}
	}
	return false
}

// CanonFact is one row of the lore consistency checker's canonical-facts
// table.
type CanonFact struct {
	Category string
	Key      string
	Value    string
	Type     string // "number", "string", "enum"
	Min      *float64
	Max      *float64
	Allowed  []string
}
