package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML station definition at path and returns a validated
// [Station]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Station, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	st, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return st, nil
}

// LoadFromReader decodes a YAML station definition from r and validates the
// result. Useful in tests where stations are constructed from string
// literals.
func LoadFromReader(r io.Reader) (*Station, error) {
	st := &Station{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(st); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(st); err != nil {
		return nil, err
	}
	return st, nil
}

// Validate checks that st contains a coherent station definition. It returns
// a joined error listing every validation failure found. Format-clock slot
// sums that don't equal 3600s are a warning only (§4.3 edge cases: "durations
// are descriptive, not enforced at run-time").
func Validate(st *Station) error {
	var errs []error

	voiceNames := make(map[string]bool, len(st.Voices))
	for i, v := range st.Voices {
		prefix := fmt.Sprintf("voices[%d]", i)
		if v.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if voiceNames[v.Name] {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate", prefix, v.Name))
		}
		voiceNames[v.Name] = true
	}

	djNames := make(map[string]bool, len(st.DJs))
	for i, dj := range st.DJs {
		prefix := fmt.Sprintf("djs[%d]", i)
		if dj.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		djNames[dj.Name] = true
		if dj.Voice != "" && !voiceNames[dj.Voice] {
			errs = append(errs, fmt.Errorf("%s.voice %q does not reference a declared voice", prefix, dj.Voice))
		}
		if dj.SpeechSpeed != 0 && (dj.SpeechSpeed < 0.5 || dj.SpeechSpeed > 2.0) {
			errs = append(errs, fmt.Errorf("%s.speech_speed %.2f is out of range [0.5, 2.0]", prefix, dj.SpeechSpeed))
		}
	}

	clockNames := make(map[string]bool, len(st.FormatClocks))
	for i, c := range st.FormatClocks {
		prefix := fmt.Sprintf("format_clocks[%d]", i)
		if c.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		clockNames[c.Name] = true
		sum := 0
		for _, s := range c.Slots {
			sum += s.DurationSec
		}
		if sum != 3600 {
			slog.Warn("format clock slot durations do not sum to 3600s; scheduling will proceed anyway",
				"clock", c.Name, "sum_seconds", sum)
		}
	}

	programNames := make(map[string]bool, len(st.Programs))
	for i, p := range st.Programs {
		prefix := fmt.Sprintf("programs[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		programNames[p.Name] = true
		if p.FormatClock != "" && !clockNames[p.FormatClock] {
			errs = append(errs, fmt.Errorf("%s.format_clock %q does not reference a declared clock", prefix, p.FormatClock))
		}
		if p.ConversationFormat != "" && len(p.DJs) < 2 {
			errs = append(errs, fmt.Errorf("%s: conversation_format %q requires at least 2 djs", prefix, p.ConversationFormat))
		}
		for j, pd := range p.DJs {
			if pd.DJ != "" && !djNames[pd.DJ] {
				errs = append(errs, fmt.Errorf("%s.djs[%d].dj %q does not reference a declared dj", prefix, j, pd.DJ))
			}
			if pd.Role != "" && !validRole(pd.Role) {
				errs = append(errs, fmt.Errorf("%s.djs[%d].role %q is invalid; valid values: host, co-host, guest, panelist", prefix, j, pd.Role))
			}
		}
	}

	for i, s := range st.Schedule {
		prefix := fmt.Sprintf("schedule[%d]", i)
		if s.Program != "" && !programNames[s.Program] {
			errs = append(errs, fmt.Errorf("%s.program %q does not reference a declared program", prefix, s.Program))
		}
		if s.StartTime != "" {
			if _, err := parseClockTime(s.StartTime); err != nil {
				errs = append(errs, fmt.Errorf("%s.start_time %q is invalid: %w", prefix, s.StartTime, err))
			}
		}
		if s.EndTime != "" {
			if _, err := parseClockTime(s.EndTime); err != nil {
				errs = append(errs, fmt.Errorf("%s.end_time %q is invalid: %w", prefix, s.EndTime, err))
			}
		}
	}

	return errors.Join(errs...)
}

func validRole(r string) bool {
	switch r {
	case "host", "co-host", "guest", "panelist":
		return true
	}
	return false
}

// parseClockTime parses an "HH:MM" string into a duration offset into the day.
func parseClockTime(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// ParseClockTime exposes parseClockTime for use by the scheduler.
func ParseClockTime(s string) (time.Duration, error) { return parseClockTime(s) }

// LoadEnv reads [EnvConfig] from the process environment, applying the
// defaults named in spec §6.
func LoadEnv() EnvConfig {
	cfg := EnvConfig{
		PostgresDSN:            firstNonEmpty(os.Getenv("SUPABASE_DB_URL"), os.Getenv("SUPABASE_URL")),
		SupabaseURL:            os.Getenv("SUPABASE_URL"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		ObjectStoreBucket:      envOr("MERIDIAN_OBJECT_STORE_BUCKET", "meridian-audio"),
		AnthropicAPIKey:        os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:           os.Getenv("OPENAI_API_KEY"),
		PiperTTSURL:            envOr("PIPER_TTS_URL", "http://localhost:5000"),
		PiperModelsPath:        envOr("PIPER_MODELS_PATH", "/var/lib/meridian/piper-models"),
		PiperCacheDir:          envOr("PIPER_CACHE_DIR", "/var/lib/meridian/piper-cache"),
		MaxCacheSizeMB:         envOrInt("MAX_CACHE_SIZE_MB", 10240),
		FutureYearOffset:       envOrInt("FUTURE_YEAR_OFFSET", 500),
		SchedulerMode:          envOr("SCHEDULER_MODE", SchedulerOnce),
		MaxConcurrentJobs:      envOrInt("MAX_CONCURRENT_JOBS", 2),
		LogLevel:               envOr("MERIDIAN_LOG_LEVEL", "info"),
		ListenAddr:             envOr("MERIDIAN_LISTEN_ADDR", ":8080"),
		SignedURLTTL:           time.Duration(envOrInt("MERIDIAN_SIGNED_URL_TTL_SECONDS", 3600)) * time.Second,
	}
	if cfg.PostgresDSN == "" {
		slog.Warn("no store DSN configured (SUPABASE_URL / SUPABASE_DB_URL); store operations will fail")
	}
	if cfg.SupabaseServiceRoleKey == "" {
		slog.Warn("SUPABASE_SERVICE_ROLE_KEY is empty; object store uploads will fail")
	}
	if cfg.AnthropicAPIKey == "" {
		slog.Warn("ANTHROPIC_API_KEY is empty; LLM script generation will fail")
	}
	if cfg.OpenAIAPIKey == "" {
		slog.Warn("OPENAI_API_KEY is empty; LLM fallback and embeddings will fail")
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
