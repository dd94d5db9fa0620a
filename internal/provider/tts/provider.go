// Package tts defines the Provider interface for the Text-to-Speech backend
// behind segment rendering (§4.4.1 step 4). Unlike the teacher's streaming
// NPC-voice interface, Meridian synthesizes a whole script turn at a time and
// hands the result to the mastering stage, matching the batch
// POST /synthesize contract described in spec §6.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// VoiceModel describes one synthesizable voice as reported by the provider.
type VoiceModel struct {
	ID       string
	Name     string
	Language string
}

// SynthesizeRequest carries one turn of script text to render.
type SynthesizeRequest struct {
	Text       string
	VoiceModel string
	Speed      float64 // 0.5-2.0, 1.0 = provider default
}

// Audio is raw synthesized audio together with the metadata the mastering
// stage needs before it runs loudness normalization.
type Audio struct {
	PCM         []byte
	SampleRate  int
	Channels    int
	DurationSec float64
}

// Provider is the abstraction over any TTS backend (Piper, ElevenLabs, ...).
type Provider interface {
	// Synthesize renders req.Text in req.VoiceModel and returns the audio in
	// full; there is no streaming contract for Meridian scripts.
	Synthesize(ctx context.Context, req SynthesizeRequest) (*Audio, error)

	// ListModels returns the voice models currently available from this
	// provider, mirroring GET /models (§6).
	ListModels(ctx context.Context) ([]VoiceModel, error)

	// Health reports whether the backend is reachable and ready to
	// synthesize, mirroring GET /health (§6).
	Health(ctx context.Context) error

	// Name identifies the provider for logging and fallback-chain reporting.
	Name() string
}
