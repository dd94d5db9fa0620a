package main

import (
	"fmt"

	"github.com/meridianfm/meridian/internal/config"
	"github.com/meridianfm/meridian/internal/observe"
	"github.com/meridianfm/meridian/internal/provider/embeddings"
	"github.com/meridianfm/meridian/internal/provider/embeddings/openai"
	"github.com/meridianfm/meridian/internal/provider/llm"
	"github.com/meridianfm/meridian/internal/provider/llm/anyllm"
	"github.com/meridianfm/meridian/internal/provider/tts"
	"github.com/meridianfm/meridian/internal/provider/tts/piper"
	"github.com/meridianfm/meridian/internal/resilience"
)

const (
	anthropicModel = "claude-3-5-sonnet-latest"
	openAIModel    = "gpt-4o-mini"
	embeddingModel = "text-embedding-3-small"
)

// newRegistry builds the provider registry and registers the factories
// wired into Meridian, generalizing the teacher's config.Registry pattern
// to the three provider kinds this spec needs.
func newRegistry() *config.Registry {
	reg := config.NewRegistry()

	reg.RegisterLLM("anthropic", func(e config.ProviderEntry) (llm.Provider, error) {
		return anyllm.NewAnthropic(firstNonEmptyStr(e.Model, anthropicModel))
	})
	reg.RegisterLLM("openai", func(e config.ProviderEntry) (llm.Provider, error) {
		return anyllm.NewOpenAI(firstNonEmptyStr(e.Model, openAIModel))
	})

	reg.RegisterTTS("piper", func(e config.ProviderEntry) (tts.Provider, error) {
		return piper.New(e.BaseURL)
	})

	reg.RegisterEmbeddings("openai", func(e config.ProviderEntry) (embeddings.Provider, error) {
		return openai.New(e.APIKey, firstNonEmptyStr(e.Model, embeddingModel))
	})

	return reg
}

// buildLLM wires the anthropic/openai LLM providers behind a
// resilience.LLMFallback, mirroring the teacher's CircuitBreaker-per-backend
// pattern (§6: "LLM and TTS providers are external and rate-limited;
// workers treat their failures as retryable").
func buildLLM(reg *config.Registry, env config.EnvConfig, metrics *observe.Metrics) (llm.Provider, error) {
	primary, err := reg.CreateLLM(config.ProviderEntry{Name: "anthropic", Model: anthropicModel})
	if err != nil {
		return nil, fmt.Errorf("build llm: primary: %w", err)
	}
	fb := resilience.NewLLMFallback(primary, "anthropic", resilience.FallbackConfig{Metrics: metrics, Kind: "llm"})

	if env.OpenAIAPIKey != "" {
		fallback, err := reg.CreateLLM(config.ProviderEntry{Name: "openai", Model: openAIModel})
		if err != nil {
			return nil, fmt.Errorf("build llm: fallback: %w", err)
		}
		fb.AddFallback("openai", fallback)
	}
	return fb, nil
}

// buildTTS wires the Piper TTS provider behind a resilience.TTSFallback.
// Piper is the station's only configured backend today; the fallback
// wrapper still buys circuit-breaking on the single entry.
func buildTTS(reg *config.Registry, env config.EnvConfig, metrics *observe.Metrics) (tts.Provider, error) {
	primary, err := reg.CreateTTS(config.ProviderEntry{Name: "piper", BaseURL: env.PiperTTSURL})
	if err != nil {
		return nil, fmt.Errorf("build tts: primary: %w", err)
	}
	return resilience.NewTTSFallback(primary, "piper", resilience.FallbackConfig{Metrics: metrics, Kind: "tts"}), nil
}

// buildEmbeddings wires the OpenAI embeddings provider used for both
// knowledge-chunk indexing and script-generation retrieval.
func buildEmbeddings(reg *config.Registry, env config.EnvConfig) (embeddings.Provider, error) {
	p, err := reg.CreateEmbeddings(config.ProviderEntry{Name: "openai", APIKey: env.OpenAIAPIKey, Model: embeddingModel})
	if err != nil {
		return nil, fmt.Errorf("build embeddings: %w", err)
	}
	return p, nil
}

func firstNonEmptyStr(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
