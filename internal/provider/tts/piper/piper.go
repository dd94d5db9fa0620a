// Package piper implements tts.Provider against a Piper TTS HTTP service
// (spec §6: PIPER_TTS_URL), the station's default synthesis backend. Piper
// serves a simple batch HTTP API, so this client follows the teacher's
// net/http-client style (elevenlabs.go's ListVoices) rather than its
// WebSocket streaming path.
package piper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/meridianfm/meridian/internal/provider/tts"
)

const defaultSampleRate = 22050

// Provider implements tts.Provider against a Piper HTTP service.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs a Piper Provider pointed at baseURL (e.g.
// "http://localhost:5000").
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("piper: baseURL must not be empty")
	}
	p := &Provider{baseURL: baseURL, httpClient: &http.Client{}}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient overrides the default *http.Client, for tests.
func WithHTTPClient(c *http.Client) Option { return func(p *Provider) { p.httpClient = c } }

type synthesizeRequestBody struct {
	Text    string  `json:"text"`
	Voice   string  `json:"voice_model"`
	Speed   float64 `json:"speed,omitempty"`
}

type synthesizeResponseBody struct {
	AudioBase64 string  `json:"audio_base64"`
	SampleRate  int     `json:"sample_rate"`
	Channels    int     `json:"channels"`
	DurationSec float64 `json:"duration_sec"`
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.SynthesizeRequest) (*tts.Audio, error) {
	if req.Text == "" {
		return nil, fmt.Errorf("piper: text must not be empty")
	}
	if req.VoiceModel == "" {
		return nil, fmt.Errorf("piper: voice_model must not be empty")
	}

	body := synthesizeRequestBody{Text: req.Text, Voice: req.VoiceModel, Speed: req.Speed}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("piper: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/synthesize", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("piper: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("piper: synthesize HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("piper: synthesize: unexpected status %d: %s", resp.StatusCode, detail)
	}

	// Piper streams raw PCM in the response body; duration/sample-rate
	// metadata rides in response headers set by the service (not JSON,
	// to avoid base64-inflating the body for multi-minute segments).
	sampleRate := defaultSampleRate
	if sr := resp.Header.Get("X-Sample-Rate"); sr != "" {
		fmt.Sscanf(sr, "%d", &sampleRate)
	}
	channels := 1
	if ch := resp.Header.Get("X-Channels"); ch != "" {
		fmt.Sscanf(ch, "%d", &channels)
	}
	var durationSec float64
	fmt.Sscanf(resp.Header.Get("X-Duration-Seconds"), "%f", &durationSec)

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("piper: read audio body: %w", err)
	}

	return &tts.Audio{
		PCM:         pcm,
		SampleRate:  sampleRate,
		Channels:    channels,
		DurationSec: durationSec,
	}, nil
}

type modelsResponseBody struct {
	Models []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Language string `json:"language"`
	} `json:"models"`
}

// ListModels implements tts.Provider.
func (p *Provider) ListModels(ctx context.Context) ([]tts.VoiceModel, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("piper: build list models request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("piper: list models HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("piper: list models: unexpected status %d", resp.StatusCode)
	}

	var body modelsResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("piper: decode list models: %w", err)
	}

	models := make([]tts.VoiceModel, 0, len(body.Models))
	for _, m := range body.Models {
		models = append(models, tts.VoiceModel{ID: m.ID, Name: m.Name, Language: m.Language})
	}
	return models, nil
}

// Health implements tts.Provider.
func (p *Provider) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("piper: build health request: %w", err)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("piper: health HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("piper: health: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Name implements tts.Provider.
func (p *Provider) Name() string { return "piper" }
