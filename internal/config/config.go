// Package config provides Meridian's two configuration layers: a YAML
// station-definition file (programs, DJs, voices, format clocks, schedule
// entries) loaded and validated the way the teacher's NPC roster was, and an
// environment-variable layer for runtime/infrastructure settings (§6).
package config

import "time"

// Station is the root of the YAML station-definition file. It is typically
// loaded via [Load] or [LoadFromReader].
type Station struct {
	// StationName and StyleGuide are the prompt-level material the
	// generator has no other source for (§4.4.1): the station's on-air
	// identity and the tone/house-style instructions threaded into every
	// script prompt.
	StationName string `yaml:"station_name"`
	StyleGuide  string `yaml:"style_guide"`

	Voices       []VoiceConfig       `yaml:"voices"`
	DJs          []DJConfig          `yaml:"djs"`
	FormatClocks []FormatClockConfig `yaml:"format_clocks"`
	Programs     []ProgramConfig     `yaml:"programs"`
	Schedule     []ScheduleConfig    `yaml:"schedule"`
}

// VoiceConfig declares a synthesizable voice available to DJs.
type VoiceConfig struct {
	Name        string `yaml:"name"`
	ModelID     string `yaml:"model_id"`
	Language    string `yaml:"language"`
	Locale      string `yaml:"locale"`
	Gender      string `yaml:"gender"`
	QualityTier string `yaml:"quality_tier"`
}

// DJConfig declares an on-air personality.
type DJConfig struct {
	Name            string   `yaml:"name"`
	Bio             string   `yaml:"bio"`
	Personality     string   `yaml:"personality"`
	Specializations []string `yaml:"specializations"`
	Voice           string   `yaml:"voice"` // references VoiceConfig.Name
	SpeechSpeed     float64  `yaml:"speech_speed"`
	Language        string   `yaml:"language"`
}

// FormatClockConfig declares a reusable hour-long content template.
type FormatClockConfig struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Slots       []FormatSlotSpec `yaml:"slots"`
}

// FormatSlotSpec is one ordered entry within a FormatClockConfig.
type FormatSlotSpec struct {
	SlotType    string `yaml:"slot_type"`
	DurationSec int    `yaml:"duration_sec"`
}

// ProgramDJSpec attaches a DJ to a program with a role and speaking order.
type ProgramDJSpec struct {
	DJ    string `yaml:"dj"` // references DJConfig.Name
	Role  string `yaml:"role"`
	Order int    `yaml:"order"`
}

// ProgramConfig declares a named show.
type ProgramConfig struct {
	Name               string          `yaml:"name"`
	FormatClock        string          `yaml:"format_clock"` // references FormatClockConfig.Name
	SchedulingHints    string          `yaml:"scheduling_hints"`
	ConversationFormat string          `yaml:"conversation_format"`
	DJs                []ProgramDJSpec `yaml:"djs"`
}

// ScheduleConfig declares a recurring broadcast window for a program.
type ScheduleConfig struct {
	Program   string `yaml:"program"` // references ProgramConfig.Name
	DayOfWeek string `yaml:"day_of_week"` // "" = daily; else "monday".."sunday"
	StartTime string `yaml:"start_time"`  // "HH:MM"
	EndTime   string `yaml:"end_time"`    // "HH:MM"
	Priority  int    `yaml:"priority"`
}

// EnvConfig is the runtime/infrastructure configuration loaded from
// environment variables exactly as listed in spec §6. Every field has a
// default so the process can start in a development environment with no
// environment at all configured beyond the store DSN.
type EnvConfig struct {
	// PostgresDSN is the relational store's connection string, read from
	// SUPABASE_DB_URL, falling back to SUPABASE_URL.
	PostgresDSN string

	// SupabaseURL is the project base URL used to build object-store REST
	// calls (§6 "Object store").
	SupabaseURL string

	// SupabaseServiceRoleKey authenticates object-store REST calls.
	SupabaseServiceRoleKey string

	// ObjectStoreBucket is the single bucket holding raw/final/music/jingle
	// audio, prefixed by path per §6.
	ObjectStoreBucket string

	// AnthropicAPIKey authenticates the default LLM backend.
	AnthropicAPIKey string

	// OpenAIAPIKey authenticates the LLM fallback backend and the
	// embeddings provider (§6).
	OpenAIAPIKey string

	// PiperTTSURL is the base URL of the Piper TTS HTTP service.
	PiperTTSURL string

	// PiperModelsPath is the local filesystem path Piper loads voice models from.
	PiperModelsPath string

	// PiperCacheDir caches synthesized audio fragments across restarts.
	PiperCacheDir string

	// MaxCacheSizeMB bounds the Piper cache directory's size. Default 10240.
	MaxCacheSizeMB int

	// FutureYearOffset is how many years the broadcast clock runs ahead of
	// real time. Default 500.
	FutureYearOffset int

	// SchedulerMode selects "once" or "continuous" operation (§4.3).
	SchedulerMode string

	// MaxConcurrentJobs bounds per-process in-flight jobs per worker pool (§5).
	MaxConcurrentJobs int

	// LogLevel controls slog verbosity: debug, info, warn, error.
	LogLevel string

	// ListenAddr is the TCP address the playout bridge HTTP server binds to.
	ListenAddr string

	// SignedURLTTL is how long a playout signed URL remains valid. Default 3600s.
	SignedURLTTL time.Duration
}

// SchedulerMode values.
const (
	SchedulerOnce       = "once"
	SchedulerContinuous = "continuous"
)
