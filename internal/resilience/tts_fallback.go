package resilience

import (
	"context"

	"github.com/meridianfm/meridian/internal/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple TTS backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders req against the first healthy provider.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (*tts.Audio, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) (*tts.Audio, error) {
		return p.Synthesize(ctx, req)
	})
}

// ListModels returns available voice models from the first healthy provider.
func (f *TTSFallback) ListModels(ctx context.Context) ([]tts.VoiceModel, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) ([]tts.VoiceModel, error) {
		return p.ListModels(ctx)
	})
}

// Health checks the first healthy provider.
func (f *TTSFallback) Health(ctx context.Context) error {
	return f.group.Execute(ctx, func(p tts.Provider) error {
		return p.Health(ctx)
	})
}

// Name identifies the primary backend.
func (f *TTSFallback) Name() string {
	if len(f.group.entries) > 0 {
		return f.group.entries[0].value.Name()
	}
	return ""
}
